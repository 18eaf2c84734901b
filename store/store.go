// Package store provides database access to accounts and the request log.
// The core depends only on the get/upsert/update contract of Driver, not on
// a particular storage engine.
package store

import (
	"context"
	"log/slog"

	"github.com/hrygo/kulturbot/internal/profile"
)

// Store provides access to all persisted objects.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) Close() error {
	return s.driver.Close()
}

func (s *Store) GetOwner(ctx context.Context, id string) (*Owner, error) {
	return s.driver.GetOwner(ctx, id)
}

func (s *Store) UpdateOwner(ctx context.Context, id string, delta *OwnerDelta) (*Owner, error) {
	return s.driver.UpdateOwner(ctx, id, delta)
}

func (s *Store) GetWorker(ctx context.Context, code string) (*Worker, error) {
	return s.driver.GetWorker(ctx, code)
}

func (s *Store) CreateWorker(ctx context.Context, worker *Worker) error {
	return s.driver.CreateWorker(ctx, worker)
}

func (s *Store) CreateWorkerMessage(ctx context.Context, msg *WorkerMessage) (*WorkerMessage, error) {
	return s.driver.CreateWorkerMessage(ctx, msg)
}

func (s *Store) ListWorkerMessages(ctx context.Context, ownerID string) ([]*WorkerMessage, error) {
	return s.driver.ListWorkerMessages(ctx, ownerID)
}

func (s *Store) CreateRequestRecord(ctx context.Context, record *RequestRecord) error {
	return s.driver.CreateRequestRecord(ctx, record)
}

func (s *Store) ListRequestRecords(ctx context.Context, ownerID string, limit int) ([]*RequestRecord, error) {
	return s.driver.ListRequestRecords(ctx, ownerID, limit)
}

// BootstrapOwner ensures the configured owner account exists, and links the
// static worker code to it when one is configured. Idempotent.
func (s *Store) BootstrapOwner(ctx context.Context) error {
	owner := &Owner{
		ID:                s.profile.OwnerSecret,
		RequestMaxSymbols: s.profile.RequestMaxSymbols,
	}
	if err := s.driver.UpsertOwner(ctx, owner); err != nil {
		return err
	}

	if s.profile.WorkerSecret != "" {
		existing, err := s.driver.GetWorker(ctx, s.profile.WorkerSecret)
		if err != nil {
			return err
		}
		if existing == nil {
			if err := s.driver.CreateWorker(ctx, &Worker{
				Code:    s.profile.WorkerSecret,
				OwnerID: s.profile.OwnerSecret,
			}); err != nil {
				return err
			}
			slog.Info("bootstrapped static worker code")
		}
	}
	return nil
}
