package store

import (
	"context"
	"errors"
)

// ErrOwnerNotFound is returned when the configured owner account is missing.
var ErrOwnerNotFound = errors.New("owner account not found")

// Owner is the single content-owner account. Its ID doubles as the owner
// access code.
type Owner struct {
	ID                string
	RequestMaxSymbols int
	TotalRequests     int64
	EmbeddingTokens   int64
	SynthesisTokens   int64
}

// OwnerDelta describes an atomic owner-counter update.
type OwnerDelta struct {
	AddRequests        int64
	AddEmbeddingTokens int64
	AddSynthesisTokens int64
	// ResetTokens zeroes both token counters. It never touches
	// TotalRequests or the request log.
	ResetTokens bool
}

// Worker is a privileged access code linked to an owner.
type Worker struct {
	Code      string
	OwnerID   string
	CreatedTs int64
}

// WorkerMessage is a free-text message composed by a worker for the owner.
type WorkerMessage struct {
	ID         int64
	OwnerID    string
	WorkerCode string
	Body       string
	CreatedTs  int64
}

// RequestRecord is one append-only request-log entry.
type RequestRecord struct {
	ID              int64
	OwnerID         string
	Ts              int64
	Topic           string
	Kind            string
	EmbeddingTokens int
	SynthesisTokens int
}

// Driver is an interface for store driver.
// Get* methods return (nil, nil) when the row does not exist.
type Driver interface {
	GetOwner(ctx context.Context, id string) (*Owner, error)
	UpsertOwner(ctx context.Context, owner *Owner) error
	UpdateOwner(ctx context.Context, id string, delta *OwnerDelta) (*Owner, error)

	GetWorker(ctx context.Context, code string) (*Worker, error)
	CreateWorker(ctx context.Context, worker *Worker) error

	CreateWorkerMessage(ctx context.Context, msg *WorkerMessage) (*WorkerMessage, error)
	ListWorkerMessages(ctx context.Context, ownerID string) ([]*WorkerMessage, error)

	CreateRequestRecord(ctx context.Context, record *RequestRecord) error
	ListRequestRecords(ctx context.Context, ownerID string, limit int) ([]*RequestRecord, error)

	Migrate(ctx context.Context) error
	Close() error
}
