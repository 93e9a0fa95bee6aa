package audit

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/claimwise/internal/decision"
)

// maxPageSize caps the number of entries returned by one list request.
const maxPageSize = 500

// RegisterRoutes mounts the read-only decision audit API under /api/audit.
//
//	GET /api/audit/      ?user=&decision=&rule=&fallback=&since=&until=&limit=&offset=
//	GET /api/audit/{id}
func RegisterRoutes(r chi.Router, store *Store) {
	r.Route("/api/audit", func(r chi.Router) {
		r.Get("/", handleList(store))
		r.Get("/{id}", handleGet(store))
	})
}

func handleList(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseFilter(r.URL.Query())
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		entries, err := store.Query(r.Context(), filter)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
		if entries == nil {
			entries = []Entry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

func handleGet(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := store.GetByID(r.Context(), chi.URLParam(r, "id"))
		switch {
		case errors.Is(err, sql.ErrNoRows):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "audit entry not found"})
		case err != nil:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		default:
			writeJSON(w, http.StatusOK, entry)
		}
	}
}

// parseFilter reads list filters from query parameters. Malformed values are
// rejected rather than ignored so a typo never widens the result set.
func parseFilter(q url.Values) (QueryFilter, error) {
	filter := QueryFilter{
		UserID: q.Get("user"),
		Rule:   q.Get("rule"),
		Limit:  100,
	}

	if v := q.Get("decision"); v != "" {
		o := decision.Outcome(strings.ToUpper(v))
		if o != decision.Approved && o != decision.Rejected {
			return filter, fmt.Errorf("decision must be APPROVED or REJECTED")
		}
		filter.Outcome = o
	}
	if v := q.Get("fallback"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter, fmt.Errorf("fallback must be true or false")
		}
		filter.Fallback = &b
	}
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"since", &filter.Since}, {"until", &filter.Until}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, fmt.Errorf("%s must be an RFC 3339 timestamp", p.name)
		}
		*p.dst = &t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return filter, fmt.Errorf("limit must be a positive integer")
		}
		filter.Limit = min(n, maxPageSize)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, fmt.Errorf("offset must be a non-negative integer")
		}
		filter.Offset = n
	}
	return filter, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
