/*
Package sqlite provides the normalized relational backend.

PURPOSE:
  Persists the ledger state split into four tables (groups, logs, approvals,
  leave_records), each reconciled independently with targeted
  insert/update/delete statements inside one SQL transaction.

KEY TABLES:
  groups:        One row per group, keyed by name, five float columns
  logs:          Append-only activity log, auto id, newest = highest id
  approvals:     Pending requests, serialized content keyed by request id
  leave_records: Append-only leave grants, auto id

RECONCILIATION:
  The adapter contract is full-state Save, so each call diffs the incoming
  state against the tables:
    groups        upsert every row, delete names no longer present (rename)
    logs          insert only the new head entries (append-only)
    leave_records insert only the new tail entries (append-only)
    approvals     insert new ids, delete resolved ids
  All inside one transaction; a failure rolls the whole Save back.

CONCURRENCY:
  No version token. Concurrent writers against the same database can
  silently overwrite each other - a documented limitation of this backend,
  carried over deliberately. SupportsVersioning() returns false so callers
  can tell.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging): multiple readers don't
  block, a single writer at a time, better crash recovery.

SEE ALSO:
  - ledger/store.go: The adapter contract
  - store/document: The versioned document backend
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/elf59535/TsinghuaDashboard/ledger"
)

// Store implements ledger.Store on SQLite.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	seed *ledger.State
}

// New opens the database at dbPath (":memory:" works) and migrates the
// schema. The seed state is inserted on first Load when the groups table
// is empty.
func New(dbPath string, seed *ledger.State) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %v", ledger.ErrBackendUnavailable, err)
	}

	s := &Store{db: db, seed: seed}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: migrate: %v", ledger.ErrBackendUnavailable, err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SupportsVersioning reports that this backend cannot detect concurrent
// writers.
func (s *Store) SupportsVersioning() bool { return false }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS groups (
		name TEXT PRIMARY KEY,
		total REAL NOT NULL,
		punctuality REAL NOT NULL,
		focus REAL NOT NULL,
		help REAL NOT NULL,
		vitality REAL NOT NULL,
		leave_hours REAL NOT NULL DEFAULT 0,
		position INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		message TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS approvals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT NOT NULL UNIQUE,
		content TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS leave_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		group_name TEXT NOT NULL,
		person_name TEXT NOT NULL,
		hours REAL NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LOAD
// =============================================================================

// Load reads all four collections, seeding the group set first when the
// store is empty.
func (s *Store) Load(ctx context.Context) (*ledger.State, ledger.VersionToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM groups").Scan(&count); err != nil {
		return nil, "", fmt.Errorf("%w: count groups: %v", ledger.ErrBackendUnavailable, err)
	}
	if count == 0 {
		if err := s.seedLocked(ctx); err != nil {
			return nil, "", err
		}
	}

	st := &ledger.State{}

	groups, err := s.loadGroups(ctx)
	if err != nil {
		return nil, "", err
	}
	st.Groups = groups

	logs, err := s.loadLogs(ctx)
	if err != nil {
		return nil, "", err
	}
	st.Logs = logs

	approvals, err := s.loadApprovals(ctx)
	if err != nil {
		return nil, "", err
	}
	for _, a := range approvals {
		st.Approvals = append(st.Approvals, a.req)
	}

	records, err := s.loadLeaveRecords(ctx)
	if err != nil {
		return nil, "", err
	}
	st.LeaveRecords = records

	return st, "", nil
}

func (s *Store) seedLocked(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin seed: %v", ledger.ErrBackendUnavailable, err)
	}
	defer tx.Rollback()

	for i, g := range s.seed.Groups {
		if err := upsertGroup(ctx, tx, g, i); err != nil {
			return fmt.Errorf("seed group %s: %w", g.Name, err)
		}
	}
	return tx.Commit()
}

func (s *Store) loadGroups(ctx context.Context) ([]ledger.Group, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, total, punctuality, focus, help, vitality, leave_hours
		FROM groups ORDER BY position ASC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}
	defer rows.Close()

	var groups []ledger.Group
	for rows.Next() {
		var g ledger.Group
		var total, punctuality, focus, help, vitality, leaveHours float64
		if err := rows.Scan(&g.Name, &total, &punctuality, &focus, &help, &vitality, &leaveHours); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		g.Total = decimal.NewFromFloat(total)
		g.Punctuality = decimal.NewFromFloat(punctuality)
		g.Focus = decimal.NewFromFloat(focus)
		g.Help = decimal.NewFromFloat(help)
		g.Vitality = decimal.NewFromFloat(vitality)
		g.LeaveHours = decimal.NewFromFloat(leaveHours)
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// loadLogs returns entries newest first (highest id first).
func (s *Store) loadLogs(ctx context.Context) ([]ledger.LogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT message, created_at FROM logs ORDER BY id DESC")
	if err != nil {
		return nil, fmt.Errorf("query logs: %w", err)
	}
	defer rows.Close()

	var logs []ledger.LogEntry
	for rows.Next() {
		var entry ledger.LogEntry
		var createdAt string
		if err := rows.Scan(&entry.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		entry.At, _ = time.Parse(time.RFC3339, createdAt)
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

type approvalRow struct {
	rowID int64
	req   ledger.ApprovalRequest
}

// loadApprovals returns pending requests in submission order.
func (s *Store) loadApprovals(ctx context.Context) ([]approvalRow, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, content FROM approvals ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("query approvals: %w", err)
	}
	defer rows.Close()

	var out []approvalRow
	for rows.Next() {
		var r approvalRow
		var content string
		if err := rows.Scan(&r.rowID, &content); err != nil {
			return nil, fmt.Errorf("scan approval: %w", err)
		}
		if err := json.Unmarshal([]byte(content), &r.req); err != nil {
			return nil, fmt.Errorf("decode approval %d: %w", r.rowID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) loadLeaveRecords(ctx context.Context) ([]ledger.LeaveRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT group_name, person_name, hours FROM leave_records ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("query leave records: %w", err)
	}
	defer rows.Close()

	var records []ledger.LeaveRecord
	for rows.Next() {
		var r ledger.LeaveRecord
		var hours float64
		if err := rows.Scan(&r.Group, &r.Name, &hours); err != nil {
			return nil, fmt.Errorf("scan leave record: %w", err)
		}
		r.Hours = decimal.NewFromFloat(hours)
		records = append(records, r)
	}
	return records, rows.Err()
}

// =============================================================================
// SAVE
// =============================================================================

// Save reconciles all four tables with the incoming state in one SQL
// transaction. The expected token is ignored: this backend does not version.
func (s *Store) Save(ctx context.Context, st *ledger.State, _ ledger.VersionToken) (ledger.VersionToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("%w: begin save: %v", ledger.ErrBackendUnavailable, err)
	}
	defer tx.Rollback()

	if err := saveGroups(ctx, tx, st.Groups); err != nil {
		return "", err
	}
	if err := saveLogs(ctx, tx, st.Logs); err != nil {
		return "", err
	}
	if err := saveApprovals(ctx, tx, st.Approvals); err != nil {
		return "", err
	}
	if err := saveLeaveRecords(ctx, tx, st.LeaveRecords); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("%w: commit save: %v", ledger.ErrBackendUnavailable, err)
	}
	return "", nil
}

func saveGroups(ctx context.Context, tx *sql.Tx, groups []ledger.Group) error {
	keep := make(map[string]bool, len(groups))
	for i, g := range groups {
		keep[g.Name] = true
		if err := upsertGroup(ctx, tx, g, i); err != nil {
			return fmt.Errorf("upsert group %s: %w", g.Name, err)
		}
	}

	// A rename surfaces as a new name plus a vanished old one.
	rows, err := tx.QueryContext(ctx, "SELECT name FROM groups")
	if err != nil {
		return fmt.Errorf("list groups: %w", err)
	}
	var stale []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return fmt.Errorf("scan group name: %w", err)
		}
		if !keep[name] {
			stale = append(stale, name)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	for _, name := range stale {
		if _, err := tx.ExecContext(ctx, "DELETE FROM groups WHERE name = ?", name); err != nil {
			return fmt.Errorf("delete group %s: %w", name, err)
		}
	}
	return nil
}

func upsertGroup(ctx context.Context, tx *sql.Tx, g ledger.Group, position int) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO groups (name, total, punctuality, focus, help, vitality, leave_hours, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			total = excluded.total,
			punctuality = excluded.punctuality,
			focus = excluded.focus,
			help = excluded.help,
			vitality = excluded.vitality,
			leave_hours = excluded.leave_hours,
			position = excluded.position`,
		g.Name,
		g.Total.InexactFloat64(),
		g.Punctuality.InexactFloat64(),
		g.Focus.InexactFloat64(),
		g.Help.InexactFloat64(),
		g.Vitality.InexactFloat64(),
		g.LeaveHours.InexactFloat64(),
		position,
	)
	return err
}

// saveLogs inserts only the new head entries. Logs are append-only and kept
// newest-first in memory, so everything before the stored count is new.
func saveLogs(ctx context.Context, tx *sql.Tx, logs []ledger.LogEntry) error {
	var stored int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM logs").Scan(&stored); err != nil {
		return fmt.Errorf("count logs: %w", err)
	}
	fresh := len(logs) - stored
	if fresh <= 0 {
		return nil
	}

	// Insert oldest-new-entry first so autoincrement ids stay chronological.
	for i := fresh - 1; i >= 0; i-- {
		entry := logs[i]
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO logs (message, created_at) VALUES (?, ?)",
			entry.Message, entry.At.UTC().Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("insert log: %w", err)
		}
	}
	return nil
}

// saveApprovals inserts requests not yet stored and deletes resolved ones.
func saveApprovals(ctx context.Context, tx *sql.Tx, approvals []ledger.ApprovalRequest) error {
	rows, err := tx.QueryContext(ctx, "SELECT id, request_id FROM approvals")
	if err != nil {
		return fmt.Errorf("list approvals: %w", err)
	}
	stored := make(map[string]int64)
	for rows.Next() {
		var rowID int64
		var requestID string
		if err := rows.Scan(&rowID, &requestID); err != nil {
			rows.Close()
			return fmt.Errorf("scan approval id: %w", err)
		}
		stored[requestID] = rowID
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	keep := make(map[string]bool, len(approvals))
	for _, req := range approvals {
		keep[req.ID] = true
		if _, ok := stored[req.ID]; ok {
			continue
		}
		content, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("encode approval %s: %w", req.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO approvals (request_id, content) VALUES (?, ?)",
			req.ID, string(content),
		); err != nil {
			return fmt.Errorf("insert approval %s: %w", req.ID, err)
		}
	}

	for requestID, rowID := range stored {
		if keep[requestID] {
			continue
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM approvals WHERE id = ?", rowID); err != nil {
			return fmt.Errorf("delete approval %s: %w", requestID, err)
		}
	}
	return nil
}

// saveLeaveRecords inserts only the new tail entries. Records are
// append-only and never reordered.
func saveLeaveRecords(ctx context.Context, tx *sql.Tx, records []ledger.LeaveRecord) error {
	var stored int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM leave_records").Scan(&stored); err != nil {
		return fmt.Errorf("count leave records: %w", err)
	}
	if stored >= len(records) {
		return nil
	}
	for _, r := range records[stored:] {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO leave_records (group_name, person_name, hours) VALUES (?, ?, ?)",
			r.Group, r.Name, r.Hours.InexactFloat64(),
		); err != nil {
			return fmt.Errorf("insert leave record: %w", err)
		}
	}
	return nil
}
