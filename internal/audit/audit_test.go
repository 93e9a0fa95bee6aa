package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"

	"github.com/ziadkadry99/claimwise/internal/db"
	"github.com/ziadkadry99/claimwise/internal/decision"
	"github.com/ziadkadry99/claimwise/internal/query"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func amount(v float64) *float64 { return &v }

func TestLogAndGetByID(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	entry := Entry{
		ID:             "test-1",
		Timestamp:      time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
		UserID:         "alice",
		Query:          "cataract surgery, 30 month policy",
		Outcome:        decision.Approved,
		Amount:         amount(50000),
		CoverageStatus: decision.CoverageFull,
		Justification:  "Covered after 24 months.",
		RuleOverrides:  []string{decision.RuleBaselinePayout},
		ClauseCount:    3,
	}

	id, err := store.Log(ctx, entry)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if id != "test-1" {
		t.Errorf("Log returned id %q, want test-1", id)
	}

	got, err := store.GetByID(ctx, "test-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if diff := cmp.Diff(&entry, got); diff != "" {
		t.Errorf("entry mismatch (-want +got):\n%s", diff)
	}
}

func TestLogGeneratesUUID(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	d := decision.FallbackDecision(query.StructuredQuery{OriginalQuery: "knee claim"}, 0)
	id, err := store.Log(ctx, FromDecision("", d))
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated ID, got empty string")
	}

	got, err := store.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !got.Fallback || got.Amount != nil || got.Outcome != decision.Rejected {
		t.Errorf("unexpected fallback entry: %+v", got)
	}
	if got.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
}

func TestQueryFilters(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	entries := []Entry{
		{UserID: "alice", Outcome: decision.Approved, CoverageStatus: decision.CoverageFull, Amount: amount(1), Timestamp: base},
		{UserID: "bob", Outcome: decision.Rejected, CoverageStatus: decision.CoverageNone, RuleOverrides: []string{decision.RuleWaitingPeriod}, Timestamp: base.Add(time.Hour)},
		{UserID: "alice", Outcome: decision.Rejected, CoverageStatus: decision.CoverageNone, Fallback: true, Timestamp: base.Add(2 * time.Hour)},
	}
	for _, e := range entries {
		if _, err := store.Log(ctx, e); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	yes := true
	since := base.Add(30 * time.Minute)
	tests := []struct {
		name   string
		filter QueryFilter
		want   int
	}{
		{"all", QueryFilter{}, 3},
		{"by user", QueryFilter{UserID: "alice"}, 2},
		{"by outcome", QueryFilter{Outcome: decision.Rejected}, 2},
		{"by rule", QueryFilter{Rule: decision.RuleWaitingPeriod}, 1},
		{"fallback only", QueryFilter{Fallback: &yes}, 1},
		{"since", QueryFilter{Since: &since}, 2},
		{"limit", QueryFilter{Limit: 1}, 1},
		{"offset", QueryFilter{Offset: 2}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Query(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d entries, want %d", len(got), tt.want)
			}
		})
	}

	newest, err := store.Query(ctx, QueryFilter{Limit: 1})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if !newest[0].Fallback {
		t.Error("expected newest entry first")
	}
}

func TestDeleteBefore(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)

	store.Log(ctx, Entry{Outcome: decision.Rejected, CoverageStatus: decision.CoverageNone, Timestamp: old})
	store.Log(ctx, Entry{Outcome: decision.Rejected, CoverageStatus: decision.CoverageNone})

	n, err := store.DeleteBefore(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteBefore: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d entries, want 1", n)
	}
}

func TestRoutes(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	id, _ := store.Log(ctx, Entry{UserID: "alice", Outcome: decision.Approved, CoverageStatus: decision.CoveragePartial, Amount: amount(10)})
	store.Log(ctx, Entry{UserID: "bob", Outcome: decision.Rejected, CoverageStatus: decision.CoverageNone})

	r := chi.NewRouter()
	RegisterRoutes(r, store)

	req := httptest.NewRequest(http.MethodGet, "/api/audit/?decision=approved", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var list []Entry
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 || list[0].UserID != "alice" {
		t.Errorf("unexpected entries: %+v", list)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/audit/"+id, nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("get by id status = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/audit/missing", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing id status = %d, want 404", w.Code)
	}
}

func TestParseFilter(t *testing.T) {
	since := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	q := url.Values{
		"user":     {"alice"},
		"decision": {"rejected"},
		"rule":     {"waiting_period"},
		"fallback": {"false"},
		"since":    {since.Format(time.RFC3339)},
		"limit":    {"10000"},
		"offset":   {"20"},
	}
	got, err := parseFilter(q)
	if err != nil {
		t.Fatalf("parseFilter: %v", err)
	}
	no := false
	want := QueryFilter{
		UserID:   "alice",
		Outcome:  decision.Rejected,
		Rule:     "waiting_period",
		Fallback: &no,
		Since:    &since,
		Limit:    maxPageSize,
		Offset:   20,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("filter mismatch (-want +got):\n%s", diff)
	}

	if f, _ := parseFilter(url.Values{}); f.Limit != 100 {
		t.Errorf("default limit = %d, want 100", f.Limit)
	}

	for _, bad := range []url.Values{
		{"decision": {"maybe"}},
		{"fallback": {"sometimes"}},
		{"until": {"yesterday"}},
		{"limit": {"0"}},
		{"offset": {"-1"}},
	} {
		if _, err := parseFilter(bad); err == nil {
			t.Errorf("parseFilter(%v): expected error", bad)
		}
	}

	r := chi.NewRouter()
	RegisterRoutes(r, setupStore(t))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/audit/?limit=abc", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", w.Code)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/audit/", nil))
	if got := w.Body.String(); got != "[]\n" {
		t.Errorf("empty list body = %q, want []", got)
	}
}
