package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/elf59535/TsinghuaDashboard/api"
	"github.com/elf59535/TsinghuaDashboard/ledger"
	"github.com/elf59535/TsinghuaDashboard/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const (
	adminSecret  = "admin-secret"
	leaderSecret = "leader-secret"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	policy := ledger.DefaultPolicy()
	mem := store.NewMemory(ledger.SeedState(policy))
	svc, err := ledger.NewService(context.Background(), mem, policy, zap.NewNop(),
		ledger.WithClock(func() time.Time {
			return time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
		}))
	require.NoError(t, err)

	h := api.NewHandler(svc, zap.NewNop())
	srv := httptest.NewServer(api.NewRouter(h, api.Secrets{Admin: adminSecret, Leader: leaderSecret}))
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, srv *httptest.Server, method, path, secret string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set("X-Access-Secret", secret)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

// =============================================================================
// READ SURFACE
// =============================================================================

func TestGetState(t *testing.T) {
	// GIVEN: A freshly seeded ledger
	// WHEN: GET /api/state without any secret
	// THEN: 200 with seven groups, full progress fraction, and a ranking

	srv := newTestServer(t)

	resp := doRequest(t, srv, http.MethodGet, "/api/state", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var state api.StateDTO
	decodeBody(t, resp, &state)
	require.Len(t, state.Groups, 7)
	assert.Equal(t, "Group 1", state.Groups[0].Name)
	assert.Equal(t, 100.0, state.Groups[0].Total)
	assert.Equal(t, 0.2, state.Groups[0].Progress)
	assert.Len(t, state.Ranking, 7)
}

func TestGetLeave(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, srv, http.MethodGet, "/api/leave", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var leave api.LeaveSummaryDTO
	decodeBody(t, resp, &leave)
	assert.Equal(t, 8.4, leave.CapHours)
	assert.Empty(t, leave.Records)
}

// =============================================================================
// AUTHENTICATION
// =============================================================================

func TestAuth_MutationsRequireSecret(t *testing.T) {
	srv := newTestServer(t)

	cases := []struct {
		name   string
		path   string
		secret string
	}{
		{"submit without secret", "/api/approvals", ""},
		{"submit with wrong secret", "/api/approvals", "wrong"},
		{"adjust without secret", "/api/scores/adjust", ""},
		{"adjust with leader secret", "/api/scores/adjust", leaderSecret},
		{"rename with leader secret", "/api/groups/rename", leaderSecret},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := doRequest(t, srv, http.MethodPost, tc.path, tc.secret, map[string]any{})
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestAuth_AdminSecretOpensLeaderSurface(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, srv, http.MethodPost, "/api/approvals", adminSecret, api.SubmitApprovalRequest{
		Kind:      "score-adjustment",
		Group:     "Group 1",
		Dimension: "help",
		Change:    5,
		Reason:    "helped peers",
	})

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

// =============================================================================
// APPROVAL FLOW
// =============================================================================

func TestSubmitApproveFlow(t *testing.T) {
	// GIVEN: A leader-submitted score request
	// WHEN: The admin approves it
	// THEN: The score moves once; a second approve is 404

	srv := newTestServer(t)

	resp := doRequest(t, srv, http.MethodPost, "/api/approvals", leaderSecret, api.SubmitApprovalRequest{
		Kind:      "score-adjustment",
		Group:     "Group 2",
		Dimension: "vitality",
		Change:    5,
		Reason:    "energizer",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var submitted api.SubmitApprovalResponse
	decodeBody(t, resp, &submitted)
	require.NotEmpty(t, submitted.ID)

	resp = doRequest(t, srv, http.MethodPost, "/api/approvals/"+submitted.ID+"/approve", adminSecret, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, srv, http.MethodGet, "/api/state", "", nil)
	var state api.StateDTO
	decodeBody(t, resp, &state)
	assert.Equal(t, 105.0, state.Groups[1].Total)
	assert.Empty(t, state.Approvals)
	assert.Equal(t, "Group 2", state.Ranking[0])

	resp = doRequest(t, srv, http.MethodPost, "/api/approvals/"+submitted.ID+"/approve", adminSecret, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRejectLeavesStateUntouched(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, srv, http.MethodPost, "/api/approvals", leaderSecret, api.SubmitApprovalRequest{
		Kind:   "leave",
		Group:  "Group 3",
		Name:   "Alice",
		Hours:  2.5,
		Reason: "appointment",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var submitted api.SubmitApprovalResponse
	decodeBody(t, resp, &submitted)

	resp = doRequest(t, srv, http.MethodPost, "/api/approvals/"+submitted.ID+"/reject", adminSecret, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, srv, http.MethodGet, "/api/leave", "", nil)
	var leave api.LeaveSummaryDTO
	decodeBody(t, resp, &leave)
	assert.Empty(t, leave.Records)
	assert.Empty(t, leave.Totals)
}

// =============================================================================
// DIRECT MUTATIONS
// =============================================================================

func TestAdjustScore_StatusMapping(t *testing.T) {
	srv := newTestServer(t)

	cases := []struct {
		name   string
		body   api.AdjustScoreRequest
		status int
	}{
		{"ok", api.AdjustScoreRequest{Group: "Group 1", Dimension: "punctuality", Delta: -5, Reason: "late"}, http.StatusOK},
		{"unknown group", api.AdjustScoreRequest{Group: "Group 99", Dimension: "focus", Delta: 1}, http.StatusNotFound},
		{"invalid dimension", api.AdjustScoreRequest{Group: "Group 1", Dimension: "speed", Delta: 1}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := doRequest(t, srv, http.MethodPost, "/api/scores/adjust", adminSecret, tc.body)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestBatchAdjust(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, srv, http.MethodPost, "/api/scores/batch", adminSecret, api.BatchAdjustRequest{
		Rule: "late",
		Rows: []api.BatchRowDTO{
			{Group: "Group 1", Count: 1},
			{Group: "Group 2", Count: 2},
			{Group: "Group 3", Count: 0},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result api.BatchAdjustResponse
	decodeBody(t, resp, &result)
	assert.Equal(t, 2, result.Applied)

	resp = doRequest(t, srv, http.MethodGet, "/api/state", "", nil)
	var state api.StateDTO
	decodeBody(t, resp, &state)
	assert.Equal(t, 95.0, state.Groups[0].Total)
	assert.Equal(t, 90.0, state.Groups[1].Total)
	assert.Equal(t, 100.0, state.Groups[2].Total)
}

func TestRenameGroup_Conflict(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, srv, http.MethodPost, "/api/groups/rename", adminSecret,
		api.RenameGroupRequest{Old: "Group 1", New: "Tigers"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, srv, http.MethodPost, "/api/groups/rename", adminSecret,
		api.RenameGroupRequest{Old: "Group 2", New: "Tigers"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var errBody api.ErrorResponse
	decodeBody(t, resp, &errBody)
	assert.Contains(t, errBody.Details, "Tigers")
}

func TestWarnings(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, srv, http.MethodPost, "/api/scores/adjust", adminSecret,
		api.AdjustScoreRequest{Group: "Group 6", Dimension: "focus", Delta: -25, Reason: "repeated talking"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, srv, http.MethodGet, "/api/warnings", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var warnings api.WarningsDTO
	decodeBody(t, resp, &warnings)
	assert.Equal(t, []string{"Group 6"}, warnings.AtRisk)
	assert.Empty(t, warnings.Ineligible)
}
