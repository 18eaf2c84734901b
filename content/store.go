// Package content maintains the change-aware embedding cache over the
// tracked website sections and the social-feed posts. Snapshots are
// immutable and swapped atomically, so readers ranking against a snapshot
// never observe a half-finished refresh.
//
// The two refresh paths intentionally cache differently: sections reuse a
// vector only when the extracted text is byte-for-byte unchanged; feed posts
// reuse a vector whenever the post id was seen before, regardless of text.
// Posts are treated as immutable once observed.
package content

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hrygo/kulturbot/ai"
	"github.com/hrygo/kulturbot/content/extract"
	"github.com/hrygo/kulturbot/content/feed"
	"github.com/hrygo/kulturbot/metrics"
)

// Section is one tracked website section with its cached text and vector.
type Section struct {
	Key         string
	Name        string
	Description string
	URL         string
	UserURL     string
	ImageURL    string
	Temporal    bool
	Content     string
	Vector      []float32 // nil until first embedded; always dim-wide after
}

// Post is one cached feed post.
type Post struct {
	ID      int64
	Name    string // display name, first part of the text
	URL     string
	Content string
	Vector  []float32
}

// SectionSnapshot is the full ordered section collection as of one completed
// refresh. Immutable once published.
type SectionSnapshot struct {
	Items       []Section
	RefreshedAt time.Time
}

// PostSnapshot is the full post collection as of one completed refresh.
type PostSnapshot struct {
	Items       []Post
	RefreshedAt time.Time
}

// UsageRecorder receives refresh-cycle embedding spend.
type UsageRecorder interface {
	RecordRefresh(ctx context.Context, embeddingTokens int) error
}

// Embedder is the slice of the provider the store needs.
type Embedder interface {
	Embed(ctx context.Context, text string) (*ai.EmbedResult, error)
	Dimensions() int
}

// Extractor is the slice of the content extractor the store needs.
type Extractor interface {
	FetchText(ctx context.Context, rawURL string, mode extract.Mode) (string, error)
}

const postNameLimit = 100

// Store holds the published snapshots and runs the refresh cycles.
type Store struct {
	catalog   []Source
	extractor Extractor
	feed      feed.Source
	embedder  Embedder
	recorder  UsageRecorder

	sections atomic.Pointer[SectionSnapshot]
	posts    atomic.Pointer[PostSnapshot]

	// refreshMu serializes refresh cycles; readers are lock-free.
	refreshMu sync.Mutex
}

// NewStore creates a content store. Snapshots start empty until the first
// refresh completes.
func NewStore(catalog []Source, extractor Extractor, feedSource feed.Source, embedder Embedder, recorder UsageRecorder) (*Store, error) {
	if err := ValidateCatalog(catalog); err != nil {
		return nil, err
	}

	s := &Store{
		catalog:   catalog,
		extractor: extractor,
		feed:      feedSource,
		embedder:  embedder,
		recorder:  recorder,
	}
	s.sections.Store(&SectionSnapshot{})
	s.posts.Store(&PostSnapshot{})
	return s, nil
}

// Sections returns the currently published section snapshot.
func (s *Store) Sections() *SectionSnapshot {
	return s.sections.Load()
}

// Posts returns the currently published post snapshot.
func (s *Store) Posts() *PostSnapshot {
	return s.posts.Load()
}

// Refresh runs one full refresh cycle: sections first, then posts. A failure
// on any single source fails the whole cycle and leaves the previously
// published snapshots in place.
func (s *Store) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	started := time.Now()
	if err := s.refreshSections(ctx); err != nil {
		metrics.RefreshFailures.Inc()
		return fmt.Errorf("refresh sections: %w", err)
	}
	if s.feed != nil {
		if err := s.refreshPosts(ctx); err != nil {
			metrics.RefreshFailures.Inc()
			return fmt.Errorf("refresh posts: %w", err)
		}
	}

	metrics.RefreshCycles.Inc()
	slog.Info("content refresh completed", "duration", time.Since(started))
	return nil
}

// refreshSections fetches every section concurrently and re-embeds only the
// ones whose extracted text changed. When nothing changed (zero token
// spend), neither the snapshot nor the ledger is touched.
func (s *Store) refreshSections(ctx context.Context) error {
	prev := s.sections.Load()
	prevByKey := make(map[string]*Section, len(prev.Items))
	for i := range prev.Items {
		prevByKey[prev.Items[i].Key] = &prev.Items[i]
	}

	items := make([]Section, len(s.catalog))
	tokens := make([]int, len(s.catalog))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range s.catalog {
		g.Go(func() error {
			text, err := s.extractor.FetchText(gctx, src.URL, src.Mode)
			if err != nil {
				return fmt.Errorf("section %q: %w", src.Key, err)
			}

			item := Section{
				Key:         src.Key,
				Name:        src.Name,
				Description: src.Description,
				URL:         src.URL,
				UserURL:     src.UserURL,
				ImageURL:    src.ImageURL,
				Temporal:    src.Temporal,
				Content:     text,
			}

			if prevSec, ok := prevByKey[src.Key]; ok && prevSec.Vector != nil && prevSec.Content == text {
				// Unchanged: carry the vector forward, zero spend.
				item.Vector = prevSec.Vector
			} else {
				result, err := s.embedder.Embed(gctx, src.Name+" "+src.Description+" "+text)
				if err != nil {
					return fmt.Errorf("embed section %q: %w", src.Key, err)
				}
				item.Vector = result.Vector
				tokens[i] = result.Tokens
				slog.Debug("section re-embedded", "key", src.Key, "tokens", result.Tokens)
			}

			items[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	spent := 0
	for _, t := range tokens {
		spent += t
	}
	if spent == 0 {
		slog.Debug("no section changes detected, keeping published snapshot")
		return nil
	}

	s.sections.Store(&SectionSnapshot{Items: items, RefreshedAt: time.Now()})
	metrics.EmbeddingTokens.Add(float64(spent))

	if s.recorder != nil {
		if err := s.recorder.RecordRefresh(ctx, spent); err != nil {
			return fmt.Errorf("record section refresh spend: %w", err)
		}
	}
	slog.Info("section snapshot published", "sections", len(items), "tokens", spent)
	return nil
}

// refreshPosts fetches the current feed and embeds only posts whose id was
// not present in the previous snapshot. The post snapshot is republished
// every cycle; the ledger is touched only when something was embedded.
func (s *Store) refreshPosts(ctx context.Context) error {
	raw, err := s.feed.FetchPosts(ctx)
	if err != nil {
		return err
	}

	prev := s.posts.Load()
	prevByID := make(map[int64]*Post, len(prev.Items))
	for i := range prev.Items {
		prevByID[prev.Items[i].ID] = &prev.Items[i]
	}

	items := make([]Post, len(raw))
	tokens := make([]int, len(raw))

	g, gctx := errgroup.WithContext(ctx)
	for i, rp := range raw {
		item := Post{
			ID:      rp.ID,
			Name:    postName(rp.Text),
			URL:     rp.URL,
			Content: rp.Text,
		}

		if prevPost, ok := prevByID[rp.ID]; ok && prevPost.Vector != nil {
			// Seen id: reuse the vector unconditionally, no content diff.
			item.Vector = prevPost.Vector
			items[i] = item
			continue
		}

		items[i] = item
		g.Go(func() error {
			result, err := s.embedder.Embed(gctx, items[i].Name+" "+items[i].Content)
			if err != nil {
				return fmt.Errorf("embed post %d: %w", items[i].ID, err)
			}
			items[i].Vector = result.Vector
			tokens[i] = result.Tokens
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	spent := 0
	for _, t := range tokens {
		spent += t
	}

	s.posts.Store(&PostSnapshot{Items: items, RefreshedAt: time.Now()})

	if spent > 0 {
		metrics.EmbeddingTokens.Add(float64(spent))
		if s.recorder != nil {
			if err := s.recorder.RecordRefresh(ctx, spent); err != nil {
				return fmt.Errorf("record post refresh spend: %w", err)
			}
		}
	}
	slog.Info("post snapshot published", "posts", len(items), "new_tokens", spent)
	return nil
}

// postName derives a short display name from the post text.
func postName(text string) string {
	runes := []rune(text)
	if len(runes) <= postNameLimit {
		return text
	}
	return string(runes[:postNameLimit]) + "..."
}

// TemporalContext concatenates the text of every temporal section in the
// snapshot. Used as wide synthesis context for time-sensitive questions.
func (snap *SectionSnapshot) TemporalContext() string {
	var parts []string
	for i := range snap.Items {
		if snap.Items[i].Temporal {
			parts = append(parts, snap.Items[i].Name+": "+snap.Items[i].Content)
		}
	}
	return strings.Join(parts, "\n\n")
}
