// Package bot implements the conversational state machine on top of the
// content snapshots and the retrieval scan. The package is transport
// agnostic: the Telegram adapter feeds it plain text and renders the
// replies it returns.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hrygo/kulturbot/ai"
	"github.com/hrygo/kulturbot/content"
	"github.com/hrygo/kulturbot/ledger"
	"github.com/hrygo/kulturbot/metrics"
	"github.com/hrygo/kulturbot/retrieval"
	"github.com/hrygo/kulturbot/store"
)

// ContentSource is the slice of the content store the engine needs.
type ContentSource interface {
	Sections() *content.SectionSnapshot
	Posts() *content.PostSnapshot
	Refresh(ctx context.Context) error
}

// Reply is one outgoing message. Menu, when set, replaces the user's
// keyboard. ImageURL, when set, attaches a remote photo.
type Reply struct {
	Text     string
	Menu     *Menu
	ImageURL string
}

// Config carries the engine knobs.
type Config struct {
	OwnerSecret     string
	CompressQueries bool
	// MaxSymbols is the fallback query length cap when the owner account
	// cannot be read.
	MaxSymbols int
}

// Engine drives one dialog turn per incoming message.
type Engine struct {
	cfg      Config
	provider ai.Provider
	content  ContentSource
	ledger   *ledger.Ledger
	accounts *store.Store
	sessions *SessionStore
	logger   *slog.Logger
}

// NewEngine wires the engine. The session store is owned by the caller.
func NewEngine(cfg Config, provider ai.Provider, src ContentSource, ldg *ledger.Ledger, accounts *store.Store, sessions *SessionStore, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:      cfg,
		provider: provider,
		content:  src,
		ledger:   ldg,
		accounts: accounts,
		sessions: sessions,
		logger:   logger,
	}
}

// HandleMessage runs one dialog turn. It never returns an error: handler
// failures are logged, the session is reset to idle, and the user gets a
// generic failure notice.
func (e *Engine) HandleMessage(ctx context.Context, sessionID int64, text string) []Reply {
	sess := e.sessions.GetOrCreate(sessionID)
	normalized := strings.ToLower(strings.TrimSpace(text))

	// Menu commands work from any state and bypass the rate window, so a
	// throttled user can always navigate back to the menu.
	if replies, ok := e.dispatchCommand(ctx, sess, normalized); ok {
		metrics.MessagesProcessed.WithLabelValues("command").Inc()
		return replies
	}

	// The access-code exchange is short and never spends provider tokens.
	if sess.State() != StateAwaitingAccessCode {
		if !sess.allow(time.Now()) {
			metrics.ThrottledMessages.Inc()
			metrics.MessagesProcessed.WithLabelValues("throttled").Inc()
			return []Reply{{Text: msgThrottled}}
		}
	}

	replies, err := e.dispatchState(ctx, sess, strings.TrimSpace(text))
	if err != nil {
		e.logger.Error("message handling failed",
			"session", sessionID,
			"state", sess.State().String(),
			"error", err)
		notice := msgGenericError
		switch sess.State() {
		case StateAwaitingSectionQuery, StateAwaitingPostQuery, StateAwaitingCombinedQuery,
			StateAwaitingSiteQuestion, StateAwaitingPostQuestion, StateAwaitingCombinedQuestion:
			notice = msgSearchError
		}
		sess.SetState(StateIdle)
		metrics.MessagesProcessed.WithLabelValues("error").Inc()
		return []Reply{{Text: notice, Menu: &MainMenu}}
	}
	metrics.MessagesProcessed.WithLabelValues("ok").Inc()
	return replies
}

// dispatchCommand matches normalized input against the menu tokens. The
// second return is false when the input is not a command for the session's
// current privilege tier.
func (e *Engine) dispatchCommand(ctx context.Context, sess *Session, normalized string) ([]Reply, bool) {
	switch normalized {
	case cmdStart, "/start":
		sess.SetState(StateIdle)
		return []Reply{{Text: msgWelcome, Menu: &MainMenu}}, true
	case cmdFindSection:
		sess.SetState(StateAwaitingSectionQuery)
		return []Reply{{Text: msgEnterQuery}}, true
	case cmdFindPost:
		sess.SetState(StateAwaitingPostQuery)
		return []Reply{{Text: msgEnterQuery}}, true
	case cmdCombinedSearch:
		sess.SetState(StateAwaitingCombinedQuery)
		return []Reply{{Text: msgEnterQuery}}, true
	case cmdSiteQuestion:
		sess.SetState(StateAwaitingSiteQuestion)
		return []Reply{{Text: msgEnterQuestion}}, true
	case cmdPostQuestion:
		sess.SetState(StateAwaitingPostQuestion)
		return []Reply{{Text: msgEnterQuestion}}, true
	case cmdCombinedQuestion:
		sess.SetState(StateAwaitingCombinedQuestion)
		return []Reply{{Text: msgEnterQuestion}}, true
	case cmdStaff:
		sess.SetState(StateAwaitingAccessCode)
		return []Reply{{Text: msgEnterCode}}, true
	}

	// Privileged tokens are commands only inside their tier; anywhere else
	// they fall through and are treated as ordinary content.
	switch sess.State() {
	case StateAuthenticatedOwner:
		switch normalized {
		case cmdCreateWorker:
			return e.guard(ctx, sess, StateAuthenticatedOwner, e.handleCreateWorker), true
		case cmdOwnerMessages:
			return e.guard(ctx, sess, StateAuthenticatedOwner, e.handleOwnerMessages), true
		case cmdResetTokens:
			return e.guard(ctx, sess, StateAuthenticatedOwner, e.handleResetTokens), true
		case cmdStats:
			return e.guard(ctx, sess, StateAuthenticatedOwner, e.handleStats), true
		}
	case StateAuthenticatedWorker:
		switch normalized {
		case cmdComposeMessage:
			sess.SetState(StateAwaitingWorkerMessage)
			return []Reply{{Text: msgEnterMessage}}, true
		case cmdRefreshData:
			return e.guard(ctx, sess, StateAuthenticatedWorker, e.handleRefreshData), true
		}
	}
	return nil, false
}

type handlerFunc func(ctx context.Context, sess *Session) ([]Reply, error)

// guard runs a privileged handler under the same error boundary as the
// state dispatch, but recovers into the given state instead of idle.
func (e *Engine) guard(ctx context.Context, sess *Session, fallback DialogState, h handlerFunc) []Reply {
	replies, err := h(ctx, sess)
	if err != nil {
		e.logger.Error("command handling failed",
			"state", sess.State().String(),
			"error", err)
		sess.SetState(fallback)
		return []Reply{{Text: msgGenericError}}
	}
	return replies
}

func (e *Engine) dispatchState(ctx context.Context, sess *Session, input string) ([]Reply, error) {
	switch sess.State() {
	case StateAwaitingSectionQuery:
		return e.handleSectionQuery(ctx, sess, input)
	case StateAwaitingPostQuery:
		return e.handlePostQuery(ctx, sess, input)
	case StateAwaitingCombinedQuery:
		return e.handleCombinedQuery(ctx, sess, input)
	case StateAwaitingSiteQuestion:
		return e.handleSiteQuestion(ctx, sess, input)
	case StateAwaitingPostQuestion:
		return e.handlePostQuestion(ctx, sess, input)
	case StateAwaitingCombinedQuestion:
		return e.handleCombinedQuestion(ctx, sess, input)
	case StateAwaitingAccessCode:
		return e.handleAccessCode(ctx, sess, input)
	case StateAwaitingWorkerMessage:
		return e.handleWorkerMessage(ctx, sess, input)
	case StateAuthenticatedOwner:
		return []Reply{{Text: msgChooseAction, Menu: &OwnerMenu}}, nil
	case StateAuthenticatedWorker:
		return []Reply{{Text: msgChooseAction, Menu: &WorkerMenu}}, nil
	default:
		return []Reply{{Text: msgUseMenu, Menu: &MainMenu}}, nil
	}
}

// maxSymbols reads the owner's configured query cap, falling back to the
// static default when the account is unreadable.
func (e *Engine) maxSymbols(ctx context.Context) int {
	owner, err := e.accounts.GetOwner(ctx, e.cfg.OwnerSecret)
	if err != nil || owner == nil {
		return e.cfg.MaxSymbols
	}
	return owner.RequestMaxSymbols
}

// embedQuery turns user text into a query vector. With compression enabled
// the text is first distilled to keywords by the chat model; those tokens
// are accounted as synthesis spend.
func (e *Engine) embedQuery(ctx context.Context, query string) (vec []float32, embedTokens, synthTokens int, err error) {
	text := query
	if e.cfg.CompressQueries {
		res, cerr := e.provider.Complete(ctx, compressSystemPrompt, query)
		if cerr != nil {
			return nil, 0, 0, fmt.Errorf("compress query: %w", cerr)
		}
		if compressed := strings.TrimSpace(res.Text); compressed != "" {
			text = compressed
		}
		synthTokens = res.Tokens
	}
	emb, err := e.provider.Embed(ctx, text)
	if err != nil {
		return nil, 0, synthTokens, fmt.Errorf("embed query: %w", err)
	}
	return emb.Vector, emb.Tokens, synthTokens, nil
}

func (e *Engine) handleSectionQuery(ctx context.Context, sess *Session, query string) ([]Reply, error) {
	if limit := e.maxSymbols(ctx); len([]rune(query)) > limit {
		sess.SetState(StateIdle)
		return []Reply{{Text: fmt.Sprintf(msgQueryTooLong, limit), Menu: &MainMenu}}, nil
	}

	vec, embedTokens, synthTokens, err := e.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	snap := e.content.Sections()
	match, err := retrieval.BestMatch(e.provider.Dimensions(), vec, snap.Items, sectionVector)
	if err != nil {
		return nil, err
	}
	sess.SetState(StateIdle)
	if match == nil {
		return []Reply{{Text: msgNothingFound, Menu: &MainMenu}}, nil
	}
	if err := e.ledger.RecordUsage(ctx, ledger.KindSectionSearch, query, embedTokens, synthTokens); err != nil {
		return nil, err
	}
	return []Reply{{
		Text:     fmt.Sprintf(msgSectionMatch, match.Item.Name, match.Item.UserURL),
		Menu:     &MainMenu,
		ImageURL: match.Item.ImageURL,
	}}, nil
}

func (e *Engine) handlePostQuery(ctx context.Context, sess *Session, query string) ([]Reply, error) {
	if limit := e.maxSymbols(ctx); len([]rune(query)) > limit {
		sess.SetState(StateIdle)
		return []Reply{{Text: fmt.Sprintf(msgQueryTooLong, limit), Menu: &MainMenu}}, nil
	}

	vec, embedTokens, synthTokens, err := e.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	snap := e.content.Posts()
	match, err := retrieval.BestMatch(e.provider.Dimensions(), vec, snap.Items, postVector)
	if err != nil {
		return nil, err
	}
	sess.SetState(StateIdle)
	if match == nil {
		return []Reply{{Text: msgNothingFound, Menu: &MainMenu}}, nil
	}
	if err := e.ledger.RecordUsage(ctx, ledger.KindPostSearch, query, embedTokens, synthTokens); err != nil {
		return nil, err
	}
	return postReplies(match.Item), nil
}

func (e *Engine) handleCombinedQuery(ctx context.Context, sess *Session, query string) ([]Reply, error) {
	if limit := e.maxSymbols(ctx); len([]rune(query)) > limit {
		sess.SetState(StateIdle)
		return []Reply{{Text: fmt.Sprintf(msgQueryTooLong, limit), Menu: &MainMenu}}, nil
	}

	vec, embedTokens, synthTokens, err := e.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	sections := e.content.Sections()
	posts := e.content.Posts()
	secMatch, postMatch, usePost, err := retrieval.BestOfTwo(
		e.provider.Dimensions(), vec,
		sections.Items, sectionVector,
		posts.Items, postVector,
	)
	if err != nil {
		return nil, err
	}
	sess.SetState(StateIdle)
	if secMatch == nil && postMatch == nil {
		return []Reply{{Text: msgNothingFound, Menu: &MainMenu}}, nil
	}
	if err := e.ledger.RecordUsage(ctx, ledger.KindCombinedSearch, query, embedTokens, synthTokens); err != nil {
		return nil, err
	}
	if usePost {
		return postReplies(postMatch.Item), nil
	}
	return []Reply{{
		Text:     fmt.Sprintf(msgSectionMatch, secMatch.Item.Name, secMatch.Item.UserURL),
		Menu:     &MainMenu,
		ImageURL: secMatch.Item.ImageURL,
	}}, nil
}

func (e *Engine) handleSiteQuestion(ctx context.Context, sess *Session, question string) ([]Reply, error) {
	if limit := e.maxSymbols(ctx); len([]rune(question)) > limit {
		sess.SetState(StateIdle)
		return []Reply{{Text: fmt.Sprintf(msgQueryTooLong, limit), Menu: &MainMenu}}, nil
	}

	vec, embedTokens, synthTokens, err := e.embedQuery(ctx, question)
	if err != nil {
		return nil, err
	}

	snap := e.content.Sections()
	match, err := retrieval.BestMatch(e.provider.Dimensions(), vec, snap.Items, sectionVector)
	if err != nil {
		return nil, err
	}
	sess.SetState(StateIdle)
	if match == nil {
		return []Reply{{Text: msgNothingFound, Menu: &MainMenu}}, nil
	}

	answer, tokens, err := e.synthesize(ctx, e.sectionContext(snap, match.Item), question)
	if err != nil {
		return nil, err
	}
	synthTokens += tokens
	if err := e.ledger.RecordUsage(ctx, ledger.KindSiteQuestion, question, embedTokens, synthTokens); err != nil {
		return nil, err
	}
	return textReplies(answer), nil
}

func (e *Engine) handlePostQuestion(ctx context.Context, sess *Session, question string) ([]Reply, error) {
	if limit := e.maxSymbols(ctx); len([]rune(question)) > limit {
		sess.SetState(StateIdle)
		return []Reply{{Text: fmt.Sprintf(msgQueryTooLong, limit), Menu: &MainMenu}}, nil
	}

	vec, embedTokens, synthTokens, err := e.embedQuery(ctx, question)
	if err != nil {
		return nil, err
	}

	snap := e.content.Posts()
	match, err := retrieval.BestMatch(e.provider.Dimensions(), vec, snap.Items, postVector)
	if err != nil {
		return nil, err
	}
	sess.SetState(StateIdle)
	if match == nil {
		return []Reply{{Text: msgNothingFound, Menu: &MainMenu}}, nil
	}

	answer, tokens, err := e.synthesize(ctx, match.Item.Content, question)
	if err != nil {
		return nil, err
	}
	synthTokens += tokens
	if err := e.ledger.RecordUsage(ctx, ledger.KindPostQuestion, question, embedTokens, synthTokens); err != nil {
		return nil, err
	}
	return textReplies(answer), nil
}

func (e *Engine) handleCombinedQuestion(ctx context.Context, sess *Session, question string) ([]Reply, error) {
	if limit := e.maxSymbols(ctx); len([]rune(question)) > limit {
		sess.SetState(StateIdle)
		return []Reply{{Text: fmt.Sprintf(msgQueryTooLong, limit), Menu: &MainMenu}}, nil
	}

	vec, embedTokens, synthTokens, err := e.embedQuery(ctx, question)
	if err != nil {
		return nil, err
	}

	sections := e.content.Sections()
	posts := e.content.Posts()
	secMatch, postMatch, usePost, err := retrieval.BestOfTwo(
		e.provider.Dimensions(), vec,
		sections.Items, sectionVector,
		posts.Items, postVector,
	)
	if err != nil {
		return nil, err
	}
	sess.SetState(StateIdle)
	if secMatch == nil && postMatch == nil {
		return []Reply{{Text: msgNothingFound, Menu: &MainMenu}}, nil
	}

	var source string
	if usePost {
		source = postMatch.Item.Content
	} else {
		source = e.sectionContext(sections, secMatch.Item)
	}
	answer, tokens, err := e.synthesize(ctx, source, question)
	if err != nil {
		return nil, err
	}
	synthTokens += tokens
	if err := e.ledger.RecordUsage(ctx, ledger.KindCombinedQuestion, question, embedTokens, synthTokens); err != nil {
		return nil, err
	}
	return textReplies(answer), nil
}

// sectionContext picks the synthesis source for a section question. Answers
// about a time-sensitive section draw on every temporal section at once, so
// an event question can be answered from the calendar and the news too.
func (e *Engine) sectionContext(snap *content.SectionSnapshot, matched content.Section) string {
	if matched.Temporal {
		if combined := snap.TemporalContext(); combined != "" {
			return combined
		}
	}
	return matched.Content
}

func (e *Engine) synthesize(ctx context.Context, source, question string) (string, int, error) {
	res, err := e.provider.Complete(ctx, answerSystemPrompt, fmt.Sprintf(answerUserPromptFmt, source, question))
	if err != nil {
		return "", 0, fmt.Errorf("synthesize answer: %w", err)
	}
	return res.Text, res.Tokens, nil
}

func (e *Engine) handleAccessCode(ctx context.Context, sess *Session, code string) ([]Reply, error) {
	if code == e.cfg.OwnerSecret {
		report, err := e.ledger.Report(ctx)
		if err != nil {
			if errors.Is(err, store.ErrOwnerNotFound) {
				sess.SetState(StateIdle)
				return []Reply{{Text: msgOwnerMissing, Menu: &MainMenu}}, nil
			}
			return nil, err
		}
		sess.SetState(StateAuthenticatedOwner)
		return []Reply{{Text: formatReport("Добро пожаловать, администратор!", report), Menu: &OwnerMenu}}, nil
	}

	worker, err := e.accounts.GetWorker(ctx, code)
	if err != nil {
		return nil, err
	}
	if worker == nil {
		sess.SetState(StateIdle)
		return []Reply{{Text: msgBadAccessCode, Menu: &MainMenu}}, nil
	}
	if worker.OwnerID == "" {
		sess.SetState(StateIdle)
		return []Reply{{Text: msgUnlinkedWorker, Menu: &MainMenu}}, nil
	}
	sess.SetState(StateAuthenticatedWorker)
	sess.SetWorkerCode(worker.Code)
	return []Reply{{Text: msgChooseAction, Menu: &WorkerMenu}}, nil
}

func (e *Engine) handleCreateWorker(ctx context.Context, _ *Session) ([]Reply, error) {
	code := uuid.NewString()
	if err := e.accounts.CreateWorker(ctx, &store.Worker{
		Code:      code,
		OwnerID:   e.cfg.OwnerSecret,
		CreatedTs: time.Now().Unix(),
	}); err != nil {
		return nil, err
	}
	return []Reply{{Text: fmt.Sprintf(msgWorkerCreated, code), Menu: &OwnerMenu}}, nil
}

func (e *Engine) handleOwnerMessages(ctx context.Context, _ *Session) ([]Reply, error) {
	messages, err := e.accounts.ListWorkerMessages(ctx, e.cfg.OwnerSecret)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return []Reply{{Text: msgNoMessages, Menu: &OwnerMenu}}, nil
	}

	var b strings.Builder
	for i, msg := range messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		ts := time.Unix(msg.CreatedTs, 0).Format("02.01.2006 15:04")
		fmt.Fprintf(&b, "[%s] Рабочий %s:\n%s", ts, msg.WorkerCode, msg.Body)
	}
	return textRepliesWithMenu(b.String(), &OwnerMenu), nil
}

func (e *Engine) handleResetTokens(ctx context.Context, _ *Session) ([]Reply, error) {
	if err := e.ledger.ResetCounters(ctx); err != nil {
		return nil, err
	}
	return []Reply{{Text: msgTokensReset, Menu: &OwnerMenu}}, nil
}

func (e *Engine) handleStats(ctx context.Context, _ *Session) ([]Reply, error) {
	report, err := e.ledger.Report(ctx)
	if err != nil {
		return nil, err
	}
	return []Reply{{Text: formatReport("Статистика использования:", report), Menu: &OwnerMenu}}, nil
}

func (e *Engine) handleRefreshData(ctx context.Context, _ *Session) ([]Reply, error) {
	if err := e.content.Refresh(ctx); err != nil {
		e.logger.Error("worker-triggered refresh failed", "error", err)
		return []Reply{{Text: msgRefreshError, Menu: &WorkerMenu}}, nil
	}
	return []Reply{{Text: msgDataRefreshed, Menu: &WorkerMenu}}, nil
}

func (e *Engine) handleWorkerMessage(ctx context.Context, sess *Session, body string) ([]Reply, error) {
	code := sess.WorkerCode()
	worker, err := e.accounts.GetWorker(ctx, code)
	if err != nil {
		return nil, err
	}
	if worker == nil || worker.OwnerID == "" {
		sess.SetState(StateIdle)
		return []Reply{{Text: msgUnlinkedWorker, Menu: &MainMenu}}, nil
	}
	if _, err := e.accounts.CreateWorkerMessage(ctx, &store.WorkerMessage{
		OwnerID:    worker.OwnerID,
		WorkerCode: worker.Code,
		Body:       body,
		CreatedTs:  time.Now().Unix(),
	}); err != nil {
		return nil, err
	}
	sess.SetState(StateAuthenticatedWorker)
	return []Reply{{Text: msgMessageSent, Menu: &WorkerMenu}}, nil
}

func sectionVector(s content.Section) []float32 { return s.Vector }
func postVector(p content.Post) []float32       { return p.Vector }

func postReplies(p content.Post) []Reply {
	text := fmt.Sprintf(msgPostMatch, p.Name, p.Content, p.URL)
	return textReplies(text)
}

// textReplies splits an arbitrary-length text into transport-sized chunks
// and attaches the main menu to the last one.
func textReplies(text string) []Reply {
	return textRepliesWithMenu(text, &MainMenu)
}

func textRepliesWithMenu(text string, menu *Menu) []Reply {
	chunks := splitMessage(text, maxMessageLength)
	replies := make([]Reply, 0, len(chunks))
	for i, chunk := range chunks {
		r := Reply{Text: chunk}
		if i == len(chunks)-1 {
			r.Menu = menu
		}
		replies = append(replies, r)
	}
	return replies
}
