package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/claimwise/internal/db"
	"github.com/ziadkadry99/claimwise/internal/decision"
)

// Store provides read and write access to the decision audit trail.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Log inserts a new audit entry. If entry.ID is empty a UUID is generated
// and a zero Timestamp is set to now.
func (s *Store) Log(ctx context.Context, entry Entry) (string, error) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	overrides := entry.RuleOverrides
	if overrides == nil {
		overrides = []string{}
	}
	rules, err := json.Marshal(overrides)
	if err != nil {
		return "", fmt.Errorf("marshalling rule overrides: %w", err)
	}

	var amount sql.NullFloat64
	if entry.Amount != nil {
		amount = sql.NullFloat64{Float64: *entry.Amount, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO decision_audit (
			id, timestamp, user_id, query, outcome, amount,
			coverage_status, justification, rule_overrides, fallback, clauses_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		db.FormatTime(entry.Timestamp),
		entry.UserID,
		entry.Query,
		string(entry.Outcome),
		amount,
		string(entry.CoverageStatus),
		entry.Justification,
		string(rules),
		entry.Fallback,
		entry.ClauseCount,
	)
	if err != nil {
		return "", fmt.Errorf("inserting audit entry: %w", err)
	}
	return entry.ID, nil
}

// GetByID retrieves a single audit entry.
func (s *Store) GetByID(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)
	return scanInto(row)
}

// QueryFilter controls which audit entries are returned by Query.
type QueryFilter struct {
	UserID   string
	Outcome  decision.Outcome
	Rule     string
	Fallback *bool
	Since    *time.Time
	Until    *time.Time
	Limit    int
	Offset   int
}

const selectColumns = `SELECT id, timestamp, user_id, query, outcome, amount, coverage_status,
	justification, rule_overrides, fallback, clauses_count FROM decision_audit`

// Query returns audit entries matching the filter, newest first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Entry, error) {
	var (
		clauses []string
		args    []any
	)

	if filter.UserID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Outcome != "" {
		clauses = append(clauses, "outcome = ?")
		args = append(args, string(filter.Outcome))
	}
	if filter.Rule != "" {
		// JSON array stored as text; match the quoted id.
		clauses = append(clauses, "rule_overrides LIKE ?")
		args = append(args, `%"`+filter.Rule+`"%`)
	}
	if filter.Fallback != nil {
		clauses = append(clauses, "fallback = ?")
		args = append(args, *filter.Fallback)
	}
	if filter.Since != nil {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, db.FormatTime(*filter.Since))
	}
	if filter.Until != nil {
		clauses = append(clauses, "timestamp <= ?")
		args = append(args, db.FormatTime(*filter.Until))
	}

	query := selectColumns
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY timestamp DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		if filter.Limit <= 0 {
			query += " LIMIT -1"
		}
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanInto(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// DeleteBefore removes all audit entries older than the given time.
// Returns the number of deleted rows.
func (s *Store) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM decision_audit WHERE timestamp < ?",
		db.FormatTime(before),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting old audit entries: %w", err)
	}
	return res.RowsAffected()
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanInto(sc scanner) (*Entry, error) {
	var (
		e                 Entry
		ts                string
		outcome, coverage string
		rulesJSON         string
		amount            sql.NullFloat64
	)

	err := sc.Scan(
		&e.ID, &ts, &e.UserID, &e.Query, &outcome, &amount, &coverage,
		&e.Justification, &rulesJSON, &e.Fallback, &e.ClauseCount,
	)
	if err != nil {
		return nil, err
	}

	e.Timestamp = db.ParseTime(ts)
	e.Outcome = decision.Outcome(outcome)
	e.CoverageStatus = decision.CoverageStatus(coverage)
	if amount.Valid {
		v := amount.Float64
		e.Amount = &v
	}
	if err := json.Unmarshal([]byte(rulesJSON), &e.RuleOverrides); err != nil {
		e.RuleOverrides = nil
	}

	return &e, nil
}
