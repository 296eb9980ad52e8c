package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"backoffice/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const ruleColumns = `id, owner_id, start_date, end_date, cadence, description, amount, currency, category, note, active`

// ListRecurringRules implements ports.RuleSource
func (r *SQLiteRepository) ListRecurringRules(ctx context.Context, ownerID string) ([]core.RecurringRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM recurring_rules`
	var args []any
	if ownerID != "" {
		query += ` WHERE owner_id = ?`
		args = append(args, ownerID)
	}
	query += ` ORDER BY start_date, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recurring rules: %w", err)
	}
	defer rows.Close()

	var rules []core.RecurringRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recurring rules: %w", err)
	}
	return rules, nil
}

// GetRecurringRule implements ports.RuleSource
func (r *SQLiteRepository) GetRecurringRule(ctx context.Context, id string) (core.RecurringRule, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM recurring_rules WHERE id = ?`, id)
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RecurringRule{}, fmt.Errorf("recurring rule %q: %w", id, core.ErrNotFound)
	}
	return rule, err
}

// SaveRecurringRule implements ports.RuleWriter
func (r *SQLiteRepository) SaveRecurringRule(ctx context.Context, rule core.RecurringRule) (core.RecurringRule, error) {
	if err := rule.Validate(); err != nil {
		return core.RecurringRule{}, err
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO recurring_rules (`+ruleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			owner_id = excluded.owner_id,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			cadence = excluded.cadence,
			description = excluded.description,
			amount = excluded.amount,
			currency = excluded.currency,
			category = excluded.category,
			note = excluded.note,
			active = excluded.active,
			updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`,
		rule.ID, rule.OwnerID, rule.StartDate.String(), nullableDate(rule.EndDate),
		string(rule.Cadence), rule.Description, rule.Amount.String(),
		rule.Currency, rule.Category, rule.Note, rule.Active)
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("save recurring rule: %w", err)
	}

	slog.InfoContext(ctx, "Recurring rule saved to SQLite",
		"id", rule.ID,
		"cadence", rule.Cadence,
		"start_date", rule.StartDate.String())
	return rule, nil
}

const occurrenceColumns = `id, source_id, owner_id, occurrence_date, description, amount, currency, category, note`

// ListOccurrences implements ports.OccurrenceStore
func (r *SQLiteRepository) ListOccurrences(ctx context.Context, sourceID string) ([]core.Occurrence, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+occurrenceColumns+` FROM occurrences WHERE source_id = ? ORDER BY occurrence_date`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("list occurrences: %w", err)
	}
	defer rows.Close()

	var out []core.Occurrence
	for rows.Next() {
		o, err := scanOccurrence(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate occurrences: %w", err)
	}
	return out, nil
}

// GetOccurrence implements ports.OccurrenceStore
func (r *SQLiteRepository) GetOccurrence(ctx context.Context, id string) (core.Occurrence, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+occurrenceColumns+` FROM occurrences WHERE id = ?`, id)
	o, err := scanOccurrence(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Occurrence{}, fmt.Errorf("occurrence %q: %w", id, core.ErrNotFound)
	}
	return o, err
}

// SaveOccurrence implements ports.OccurrenceStore. The unique index on
// (source_id, occurrence_date) makes repeated saves a no-op.
func (r *SQLiteRepository) SaveOccurrence(ctx context.Context, o core.Occurrence) (core.Occurrence, bool, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO occurrences (`+occurrenceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_id, occurrence_date) DO NOTHING`,
		o.ID, o.SourceID, o.OwnerID, o.OccurrenceDate.String(), o.Description,
		o.Amount.String(), o.Currency, o.Category, o.Note)
	if err != nil {
		return core.Occurrence{}, false, fmt.Errorf("insert occurrence: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return core.Occurrence{}, false, fmt.Errorf("insert occurrence rows affected: %w", err)
	}
	if n == 1 {
		slog.InfoContext(ctx, "Occurrence saved to SQLite",
			"id", o.ID,
			"source_id", o.SourceID,
			"occurrence_date", o.OccurrenceDate.String())
		return o, true, nil
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT `+occurrenceColumns+` FROM occurrences WHERE source_id = ? AND occurrence_date = ?`,
		o.SourceID, o.OccurrenceDate.String())
	existing, err := scanOccurrence(row)
	if err != nil {
		return core.Occurrence{}, false, fmt.Errorf("load existing occurrence: %w", err)
	}
	slog.DebugContext(ctx, "Occurrence already recorded",
		"id", existing.ID,
		"source_id", existing.SourceID,
		"occurrence_date", existing.OccurrenceDate.String())
	return existing, false, nil
}

// Get implements ports.KVStore
func (r *SQLiteRepository) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM kv_store WHERE namespace = ? AND key = ?`, namespace, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", namespace, key, err)
	}
	return value, nil
}

// Put implements ports.KVStore
func (r *SQLiteRepository) Put(ctx context.Context, namespace, key string, value []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO kv_store (namespace, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (namespace, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		namespace, key, value, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", namespace, key, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRule(s scanner) (core.RecurringRule, error) {
	var (
		rule                core.RecurringRule
		start, cadence, amt string
		end                 sql.NullString
	)
	err := s.Scan(&rule.ID, &rule.OwnerID, &start, &end, &cadence, &rule.Description,
		&amt, &rule.Currency, &rule.Category, &rule.Note, &rule.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rule, err
		}
		return rule, fmt.Errorf("scan recurring rule: %w", err)
	}

	if rule.StartDate, err = core.ParseDate(start); err != nil {
		return rule, fmt.Errorf("recurring rule %s start date: %w", rule.ID, err)
	}
	if end.Valid && end.String != "" {
		if rule.EndDate, err = core.ParseDate(end.String); err != nil {
			return rule, fmt.Errorf("recurring rule %s end date: %w", rule.ID, err)
		}
	}
	rule.Cadence = core.Cadence(cadence)
	if rule.Amount, err = decimal.NewFromString(amt); err != nil {
		return rule, fmt.Errorf("recurring rule %s amount: %w", rule.ID, err)
	}
	return rule, nil
}

func scanOccurrence(s scanner) (core.Occurrence, error) {
	var (
		o         core.Occurrence
		date, amt string
	)
	err := s.Scan(&o.ID, &o.SourceID, &o.OwnerID, &date, &o.Description,
		&amt, &o.Currency, &o.Category, &o.Note)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return o, err
		}
		return o, fmt.Errorf("scan occurrence: %w", err)
	}
	if o.OccurrenceDate, err = core.ParseDate(date); err != nil {
		return o, fmt.Errorf("occurrence %s date: %w", o.ID, err)
	}
	if o.Amount, err = decimal.NewFromString(amt); err != nil {
		return o, fmt.Errorf("occurrence %s amount: %w", o.ID, err)
	}
	return o, nil
}

func nullableDate(d core.Date) sql.NullString {
	if d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}
