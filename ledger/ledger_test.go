package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/kulturbot/internal/profile"
	"github.com/hrygo/kulturbot/store"
	"github.com/hrygo/kulturbot/store/db"
)

const testOwner = "test-owner"

func newTestLedger(t *testing.T) (*Ledger, *store.Store) {
	t.Helper()

	p := &profile.Profile{
		Mode:              "dev",
		Driver:            "sqlite",
		DSN:               filepath.Join(t.TempDir(), "ledger.db"),
		OwnerSecret:       testOwner,
		RequestMaxSymbols: 110,
	}
	driver, err := db.NewDBDriver(p)
	require.NoError(t, err)
	t.Cleanup(func() { driver.Close() })

	st := store.New(driver, p)
	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))
	require.NoError(t, st.BootstrapOwner(ctx))

	return New(st, testOwner), st
}

func TestRecordUsage(t *testing.T) {
	ldg, st := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, ldg.RecordUsage(ctx, KindSectionSearch, "концерт", 5, 3))
	require.NoError(t, ldg.RecordUsage(ctx, KindSiteQuestion, "когда открыто", 7, 20))

	owner, err := st.GetOwner(ctx, testOwner)
	require.NoError(t, err)
	require.EqualValues(t, 2, owner.TotalRequests)
	require.EqualValues(t, 12, owner.EmbeddingTokens)
	require.EqualValues(t, 23, owner.SynthesisTokens)

	records, err := st.ListRequestRecords(ctx, testOwner, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	// Newest first.
	require.Equal(t, string(KindSiteQuestion), records[0].Kind)
	require.Equal(t, "когда открыто", records[0].Topic)
}

// Refresh spend accumulates tokens but is not a user request: the request
// counter and the per-request log stay untouched.
func TestRecordRefreshIsNotARequest(t *testing.T) {
	ldg, st := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, ldg.RecordRefresh(ctx, 40))

	owner, err := st.GetOwner(ctx, testOwner)
	require.NoError(t, err)
	require.EqualValues(t, 0, owner.TotalRequests)
	require.EqualValues(t, 40, owner.EmbeddingTokens)

	records, err := st.ListRequestRecords(ctx, testOwner, 10)
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestResetCountersKeepsRequestsAndLog(t *testing.T) {
	ldg, st := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, ldg.RecordUsage(ctx, KindPostSearch, "афиша", 5, 0))
	require.NoError(t, ldg.RecordRefresh(ctx, 100))

	require.NoError(t, ldg.ResetCounters(ctx))

	owner, err := st.GetOwner(ctx, testOwner)
	require.NoError(t, err)
	require.Zero(t, owner.EmbeddingTokens)
	require.Zero(t, owner.SynthesisTokens)
	require.EqualValues(t, 1, owner.TotalRequests)

	records, err := st.ListRequestRecords(ctx, testOwner, 10)
	require.NoError(t, err)
	require.Len(t, records, 1, "reset must not erase the request log")
}

func TestReport(t *testing.T) {
	ldg, _ := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, ldg.RecordUsage(ctx, KindCombinedSearch, "выставка", 9, 2))

	report, err := ldg.Report(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, report.TotalRequests)
	require.EqualValues(t, 9, report.EmbeddingTokens)
	require.EqualValues(t, 2, report.SynthesisTokens)
	require.Equal(t, 110, report.RequestMaxSymbols)
}

func TestReportMissingOwner(t *testing.T) {
	_, st := newTestLedger(t)
	ldg := New(st, "nobody")

	_, err := ldg.Report(context.Background())
	require.ErrorIs(t, err, store.ErrOwnerNotFound)
}
