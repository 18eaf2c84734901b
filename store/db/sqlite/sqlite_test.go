package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/kulturbot/internal/profile"
	"github.com/hrygo/kulturbot/store"
)

func newTestDriver(t *testing.T) store.Driver {
	t.Helper()
	driver, err := NewDB(&profile.Profile{
		Mode:   "dev",
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { driver.Close() })
	require.NoError(t, driver.Migrate(context.Background()))
	return driver
}

func TestMigrateIsIdempotent(t *testing.T) {
	driver := newTestDriver(t)
	require.NoError(t, driver.Migrate(context.Background()))
}

func TestOwnerLifecycle(t *testing.T) {
	driver := newTestDriver(t)
	ctx := context.Background()

	missing, err := driver.GetOwner(ctx, "nobody")
	require.NoError(t, err)
	require.Nil(t, missing, "absent owner reads as nil, not an error")

	require.NoError(t, driver.UpsertOwner(ctx, &store.Owner{ID: "boss", RequestMaxSymbols: 110}))
	// Upsert of an existing row keeps the counters.
	require.NoError(t, driver.UpsertOwner(ctx, &store.Owner{ID: "boss", RequestMaxSymbols: 999}))

	owner, err := driver.GetOwner(ctx, "boss")
	require.NoError(t, err)
	require.Equal(t, 110, owner.RequestMaxSymbols)
	require.Zero(t, owner.TotalRequests)
}

func TestUpdateOwnerDeltaAndReset(t *testing.T) {
	driver := newTestDriver(t)
	ctx := context.Background()
	require.NoError(t, driver.UpsertOwner(ctx, &store.Owner{ID: "boss", RequestMaxSymbols: 110}))

	updated, err := driver.UpdateOwner(ctx, "boss", &store.OwnerDelta{
		AddRequests:        2,
		AddEmbeddingTokens: 50,
		AddSynthesisTokens: 30,
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, updated.TotalRequests)
	require.EqualValues(t, 50, updated.EmbeddingTokens)
	require.EqualValues(t, 30, updated.SynthesisTokens)

	reset, err := driver.UpdateOwner(ctx, "boss", &store.OwnerDelta{ResetTokens: true})
	require.NoError(t, err)
	require.Zero(t, reset.EmbeddingTokens)
	require.Zero(t, reset.SynthesisTokens)
	require.EqualValues(t, 2, reset.TotalRequests, "reset never touches the request count")
}

func TestWorkerAndMessages(t *testing.T) {
	driver := newTestDriver(t)
	ctx := context.Background()

	missing, err := driver.GetWorker(ctx, "no-such-code")
	require.NoError(t, err)
	require.Nil(t, missing)

	require.NoError(t, driver.CreateWorker(ctx, &store.Worker{Code: "w-1", OwnerID: "boss", CreatedTs: 100}))
	worker, err := driver.GetWorker(ctx, "w-1")
	require.NoError(t, err)
	require.Equal(t, "boss", worker.OwnerID)

	first, err := driver.CreateWorkerMessage(ctx, &store.WorkerMessage{
		OwnerID: "boss", WorkerCode: "w-1", Body: "первое", CreatedTs: 100,
	})
	require.NoError(t, err)
	require.NotZero(t, first.ID)

	_, err = driver.CreateWorkerMessage(ctx, &store.WorkerMessage{
		OwnerID: "boss", WorkerCode: "w-1", Body: "второе", CreatedTs: 200,
	})
	require.NoError(t, err)

	messages, err := driver.ListWorkerMessages(ctx, "boss")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, "первое", messages[0].Body, "messages are listed oldest first")
	require.Equal(t, "второе", messages[1].Body)
}

func TestRequestRecords(t *testing.T) {
	driver := newTestDriver(t)
	ctx := context.Background()

	for i, topic := range []string{"first", "second", "third"} {
		require.NoError(t, driver.CreateRequestRecord(ctx, &store.RequestRecord{
			OwnerID: "boss",
			Ts:      int64(1000 + i),
			Topic:   topic,
			Kind:    "section_search",
		}))
	}

	records, err := driver.ListRequestRecords(ctx, "boss", 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "third", records[0].Topic, "newest first")
	require.Equal(t, "second", records[1].Topic)
}
