// Package metrics exports Prometheus metrics for the bot core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesProcessed counts incoming chat messages handled by the engine.
	MessagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kulturbot",
		Name:      "messages_processed_total",
		Help:      "Incoming chat messages handled, by resulting outcome.",
	}, []string{"outcome"})

	// EmbeddingTokens counts tokens spent on embedding calls.
	EmbeddingTokens = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "kulturbot",
		Name:      "embedding_tokens_total",
		Help:      "Tokens spent on embedding provider calls.",
	})

	// SynthesisTokens counts tokens spent on completion calls.
	SynthesisTokens = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "kulturbot",
		Name:      "synthesis_tokens_total",
		Help:      "Tokens spent on completion provider calls.",
	})

	// RefreshCycles counts completed content refresh cycles.
	RefreshCycles = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "kulturbot",
		Name:      "refresh_cycles_total",
		Help:      "Completed content refresh cycles.",
	})

	// RefreshFailures counts aborted content refresh cycles.
	RefreshFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "kulturbot",
		Name:      "refresh_failures_total",
		Help:      "Content refresh cycles aborted by an extraction or provider error.",
	})

	// ThrottledMessages counts messages rejected by the per-session rate window.
	ThrottledMessages = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "kulturbot",
		Name:      "throttled_messages_total",
		Help:      "Messages rejected by the per-session rate limit.",
	})
)
