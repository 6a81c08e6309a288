package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/elf59535/TsinghuaDashboard/ledger"
	"github.com/elf59535/TsinghuaDashboard/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestService(t *testing.T) (*ledger.Service, *store.Memory) {
	t.Helper()
	policy := ledger.DefaultPolicy()
	mem := store.NewMemory(ledger.SeedState(policy))
	svc, err := ledger.NewService(context.Background(), mem, policy, zap.NewNop(),
		ledger.WithClock(func() time.Time { return testClock }))
	require.NoError(t, err)
	return svc, mem
}

// failingStore delegates Load and rejects every Save.
type failingStore struct {
	*store.Memory
}

func (f *failingStore) Save(context.Context, *ledger.State, ledger.VersionToken) (ledger.VersionToken, error) {
	return "", ledger.ErrBackendUnavailable
}

// =============================================================================
// SEEDING
// =============================================================================

func TestService_SeedsDefaultGroups(t *testing.T) {
	// GIVEN: An empty backend
	// WHEN: The service loads it
	// THEN: Seven groups exist at 100 total, 25 per dimension, 0 leave

	svc, _ := newTestService(t)

	st := svc.GetState()
	require.Len(t, st.Groups, 7)
	for _, g := range st.Groups {
		assert.True(t, g.Total.Equal(dec(100)))
		assert.True(t, g.Punctuality.Equal(dec(25)))
		assert.True(t, g.Focus.Equal(dec(25)))
		assert.True(t, g.Help.Equal(dec(25)))
		assert.True(t, g.Vitality.Equal(dec(25)))
		assert.True(t, g.LeaveHours.IsZero())
	}
	assert.Empty(t, st.Approvals)
	assert.Empty(t, st.LeaveRecords)
}

func TestService_GetStateReturnsCopy(t *testing.T) {
	svc, _ := newTestService(t)

	st := svc.GetState()
	st.Groups[0].Total = dec(1)
	st.Groups[0].Name = "mutated"

	fresh := svc.GetState()
	assert.Equal(t, "Group 1", fresh.Groups[0].Name)
	assert.True(t, fresh.Groups[0].Total.Equal(dec(100)))
}

// =============================================================================
// PERSIST-BEFORE-COMMIT
// =============================================================================

func TestService_AdjustScorePersists(t *testing.T) {
	// GIVEN: A service over a shared backend
	// WHEN: Adjusting and then loading a second service over the same backend
	// THEN: The second service sees the adjustment and its log line

	svc, mem := newTestService(t)

	g, err := svc.AdjustScore(context.Background(), "Group 1", "punctuality", dec(-5), "late arrival")
	require.NoError(t, err)
	assert.True(t, g.Total.Equal(dec(95)))

	svc2, err := ledger.NewService(context.Background(), mem, ledger.DefaultPolicy(), zap.NewNop())
	require.NoError(t, err)
	st := svc2.GetState()
	assert.True(t, st.Groups[0].Total.Equal(dec(95)))
	require.NotEmpty(t, st.Logs)
	assert.Equal(t, "10:30 | Group 1 punctuality -5 | reason: late arrival", st.Logs[0].Message)
}

func TestService_PersistenceFailureLeavesStateUntouched(t *testing.T) {
	// GIVEN: A backend that rejects every save
	// WHEN: An adjustment is attempted
	// THEN: The error surfaces and the in-memory state is unchanged

	policy := ledger.DefaultPolicy()
	mem := store.NewMemory(ledger.SeedState(policy))
	svc, err := ledger.NewService(context.Background(), &failingStore{Memory: mem}, policy, zap.NewNop())
	require.NoError(t, err)

	_, err = svc.AdjustScore(context.Background(), "Group 1", "focus", dec(-10), "talking")

	assert.ErrorIs(t, err, ledger.ErrBackendUnavailable)
	st := svc.GetState()
	assert.True(t, st.Groups[0].Total.Equal(dec(100)))
	assert.Empty(t, st.Logs)
}

func TestService_VersionConflictPropagatesAndReloadRecovers(t *testing.T) {
	// GIVEN: The backend moved on under the service's feet
	// WHEN: The service tries to save with its stale token
	// THEN: The conflict surfaces; after Reload the retry succeeds

	svc, mem := newTestService(t)
	ctx := context.Background()

	// Out-of-band writer bumps the backend revision.
	other, tok, err := mem.Load(ctx)
	require.NoError(t, err)
	_, err = other.AdjustScore("Group 2", ledger.DimensionHelp, dec(5))
	require.NoError(t, err)
	_, err = mem.Save(ctx, other, tok)
	require.NoError(t, err)

	_, err = svc.AdjustScore(ctx, "Group 1", "help", dec(5), "helping")
	assert.ErrorIs(t, err, ledger.ErrVersionConflict)

	require.NoError(t, svc.Reload(ctx))
	_, err = svc.AdjustScore(ctx, "Group 1", "help", dec(5), "helping")
	require.NoError(t, err)

	st := svc.GetState()
	assert.True(t, st.Groups[0].Total.Equal(dec(105)))
	assert.True(t, st.Groups[1].Total.Equal(dec(105)), "out-of-band write survived")
}

// =============================================================================
// APPROVAL FLOW
// =============================================================================

func TestService_SubmitAndApprove(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	id, err := svc.SubmitApproval(ctx, ledger.ApprovalRequest{
		Kind:      ledger.KindScoreAdjustment,
		Group:     "Group 3",
		Dimension: ledger.DimensionVitality,
		Change:    dec(5),
		Reason:    "energizer",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	st := svc.GetState()
	require.Len(t, st.Approvals, 1)
	assert.Equal(t, testClock, st.Approvals[0].SubmittedAt)
	assert.True(t, st.Groups[2].Total.Equal(dec(100)), "pending request has no effect yet")

	require.NoError(t, svc.DecideApproval(ctx, id, true))

	st = svc.GetState()
	assert.Empty(t, st.Approvals)
	assert.True(t, st.Groups[2].Total.Equal(dec(105)))

	// The id is consumed.
	assert.ErrorIs(t, svc.DecideApproval(ctx, id, true), ledger.ErrNotFound)
}

func TestService_SubmitApprovalValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.SubmitApproval(ctx, ledger.ApprovalRequest{
		Kind:      ledger.KindScoreAdjustment,
		Group:     "Group 1",
		Dimension: ledger.Dimension("speed"),
		Change:    dec(1),
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidDimension)

	_, err = svc.SubmitApproval(ctx, ledger.ApprovalRequest{
		Kind:  ledger.KindLeave,
		Group: "Group 1",
		Name:  "Alice",
		Hours: dec(-1),
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidHours)

	_, err = svc.SubmitApproval(ctx, ledger.ApprovalRequest{
		Kind:      ledger.KindScoreAdjustment,
		Group:     "Nobody",
		Dimension: ledger.DimensionFocus,
		Change:    dec(1),
	})
	assert.ErrorIs(t, err, ledger.ErrUnknownGroup)
}

func TestService_RejectLeavesNoTrace(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	id, err := svc.SubmitApproval(ctx, ledger.ApprovalRequest{
		Kind:  ledger.KindLeave,
		Group: "Group 1",
		Name:  "Alice",
		Hours: dec(3),
	})
	require.NoError(t, err)

	require.NoError(t, svc.DecideApproval(ctx, id, false))

	st := svc.GetState()
	assert.Empty(t, st.Approvals)
	assert.Empty(t, st.LeaveRecords)
	assert.True(t, st.Groups[0].LeaveHours.IsZero())
}

// =============================================================================
// BATCH RULES
// =============================================================================

func TestService_BatchAdjust(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	applied, err := svc.BatchAdjust(ctx, "late", []ledger.BatchRow{
		{Group: "Group 1", Count: 2},
		{Group: "Group 2", Count: 0},
		{Group: "Group 3", Count: 1, Reason: "overslept"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, applied)

	st := svc.GetState()
	assert.True(t, st.Groups[0].Total.Equal(dec(90)), "two late marks at -5 each")
	assert.True(t, st.Groups[1].Total.Equal(dec(100)), "zero count skipped")
	assert.True(t, st.Groups[2].Total.Equal(dec(95)))
	for _, g := range st.Groups {
		assert.True(t, g.Total.Equal(g.SumDimensions()))
	}
}

func TestService_BatchAdjustUnknownRule(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.BatchAdjust(context.Background(), "bogus", []ledger.BatchRow{{Group: "Group 1", Count: 1}})

	assert.Error(t, err)
	assert.True(t, svc.GetState().Groups[0].Total.Equal(dec(100)))
}

// =============================================================================
// DERIVED VIEWS
// =============================================================================

func TestService_AtRiskAndIneligible(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AdjustScore(ctx, "Group 4", "focus", dec(-21), "repeated talking")
	require.NoError(t, err)
	require.NoError(t, svc.RecordLeaveDirect(ctx, "Group 4", "Dave", dec(9)))

	assert.Equal(t, []string{"Group 4"}, svc.AtRisk())

	ineligible := svc.Ineligible()
	require.Len(t, ineligible, 1)
	assert.Equal(t, "Dave", ineligible[0].Name)
	assert.True(t, ineligible[0].Hours.Equal(dec(9)))
}

func TestService_RenameGroup(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.RenameGroup(ctx, "Group 1", "Tigers"))
	assert.ErrorIs(t, svc.RenameGroup(ctx, "Group 2", "Tigers"), ledger.ErrDuplicateName)

	// The rename survived persistence.
	svc2, err := ledger.NewService(ctx, mem, ledger.DefaultPolicy(), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "Tigers", svc2.GetState().Groups[0].Name)
}
