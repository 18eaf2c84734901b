// Package ledger keeps the owner's running usage counters and the
// append-only request log. All writes go through a single mutex so
// concurrent sessions never lose increments.
package ledger

import (
	"context"
	"sync"

	"github.com/hrygo/kulturbot/metrics"
	"github.com/hrygo/kulturbot/store"
)

// Kind classifies a billable interaction.
type Kind string

const (
	KindSectionSearch    Kind = "section_search"
	KindPostSearch       Kind = "post_search"
	KindCombinedSearch   Kind = "combined_search"
	KindSiteQuestion     Kind = "site_question"
	KindPostQuestion     Kind = "post_question"
	KindCombinedQuestion Kind = "combined_question"
)

// Report is a point-in-time view of the owner's usage counters.
type Report struct {
	TotalRequests     int64
	EmbeddingTokens   int64
	SynthesisTokens   int64
	RequestMaxSymbols int
}

// Ledger accounts provider spend against the owner account.
type Ledger struct {
	mu      sync.Mutex
	store   *store.Store
	ownerID string
}

// New creates a Ledger for the given owner.
func New(st *store.Store, ownerID string) *Ledger {
	return &Ledger{store: st, ownerID: ownerID}
}

// RecordUsage increments the owner counters and appends one request-log
// entry. Called exactly once per successfully completed interaction.
func (l *Ledger) RecordUsage(ctx context.Context, kind Kind, topic string, embeddingTokens, synthesisTokens int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.store.UpdateOwner(ctx, l.ownerID, &store.OwnerDelta{
		AddRequests:        1,
		AddEmbeddingTokens: int64(embeddingTokens),
		AddSynthesisTokens: int64(synthesisTokens),
	}); err != nil {
		return err
	}

	if err := l.store.CreateRequestRecord(ctx, &store.RequestRecord{
		OwnerID:         l.ownerID,
		Topic:           topic,
		Kind:            string(kind),
		EmbeddingTokens: embeddingTokens,
		SynthesisTokens: synthesisTokens,
	}); err != nil {
		return err
	}

	metrics.EmbeddingTokens.Add(float64(embeddingTokens))
	metrics.SynthesisTokens.Add(float64(synthesisTokens))
	return nil
}

// RecordRefresh accounts a refresh cycle's embedding spend. Refreshes are
// not user requests: the request count and the request log stay untouched.
func (l *Ledger) RecordRefresh(ctx context.Context, embeddingTokens int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.store.UpdateOwner(ctx, l.ownerID, &store.OwnerDelta{
		AddEmbeddingTokens: int64(embeddingTokens),
	})
	return err
}

// ResetCounters zeroes the two cumulative token counters. The request count
// and the request log are deliberately kept.
func (l *Ledger) ResetCounters(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.store.UpdateOwner(ctx, l.ownerID, &store.OwnerDelta{ResetTokens: true})
	return err
}

// Report returns the owner's current counters.
func (l *Ledger) Report(ctx context.Context) (*Report, error) {
	owner, err := l.store.GetOwner(ctx, l.ownerID)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, store.ErrOwnerNotFound
	}
	return &Report{
		TotalRequests:     owner.TotalRequests,
		EmbeddingTokens:   owner.EmbeddingTokens,
		SynthesisTokens:   owner.SynthesisTokens,
		RequestMaxSymbols: owner.RequestMaxSymbols,
	}, nil
}
