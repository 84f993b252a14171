package rules

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines persistence for the local rule registry.
type Repository interface {
	GetByUID(ctx context.Context, uid string) (*Rule, error)
	List(ctx context.Context) ([]Rule, error)
	ListUIDsByTag(ctx context.Context, tag string) ([]string, error)
	Create(ctx context.Context, rule *Rule) error
	Update(ctx context.Context, rule *Rule) error
	SetEnabled(ctx context.Context, uid string, enabled bool) error
	Delete(ctx context.Context, uid string) error

	// Manual trigger history
	CreateRun(ctx context.Context, run *Run) error
	ListRuns(ctx context.Context, uid string, limit int) ([]Run, error)
}

// Run listing limits.
const (
	defaultRunLimit = 10
	maxRunLimit     = 100
)

// runTimeFormat keeps fixed-width fractional seconds so triggered_at sorts
// lexically.
const runTimeFormat = "2006-01-02T15:04:05.000000Z07:00"

const ruleColumns = `uid, name, description, enabled, conditions, created_at, updated_at`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByUID retrieves a rule and its tags.
func (r *SQLiteRepository) GetByUID(ctx context.Context, uid string) (*Rule, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM rules WHERE uid = ?`, uid)
	rule, err := scanRuleRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, fmt.Errorf("querying rule: %w", err)
	}

	tags, err := r.tagsFor(ctx, uid)
	if err != nil {
		return nil, err
	}
	rule.Tags = tags
	return rule, nil
}

// List retrieves every rule ordered by uid, tags included.
func (r *SQLiteRepository) List(ctx context.Context) ([]Rule, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+ruleColumns+` FROM rules ORDER BY uid`)
	if err != nil {
		return nil, fmt.Errorf("querying rules: %w", err)
	}
	defer rows.Close()

	var list []Rule
	for rows.Next() {
		rule, scanErr := scanRuleRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning rule: %w", scanErr)
		}
		list = append(list, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rules: %w", err)
	}

	tagMap, err := r.allTags(ctx)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if tags, ok := tagMap[list[i].UID]; ok {
			list[i].Tags = tags
		} else {
			list[i].Tags = []string{}
		}
	}
	return list, nil
}

// ListUIDsByTag returns the uids of rules carrying tag, sorted.
func (r *SQLiteRepository) ListUIDsByTag(ctx context.Context, tag string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT rule_uid FROM rule_tags WHERE tag = ? ORDER BY rule_uid`,
		normaliseTag(tag),
	)
	if err != nil {
		return nil, fmt.Errorf("querying rules by tag: %w", err)
	}
	defer rows.Close()

	uids := []string{}
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("scanning rule uid: %w", err)
		}
		uids = append(uids, uid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rule uids: %w", err)
	}
	return uids, nil
}

// Create inserts a rule and its tags in one transaction.
func (r *SQLiteRepository) Create(ctx context.Context, rule *Rule) error {
	conditionsJSON, err := marshalConditions(rule.Conditions)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now
	rule.Tags = normaliseTags(rule.Tags)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rules (uid, name, description, enabled, conditions, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rule.UID,
		rule.Name,
		nullableString(rule.Description),
		boolToInt(rule.Enabled),
		conditionsJSON,
		rule.CreatedAt.Format(time.RFC3339),
		rule.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrRuleExists
		}
		return fmt.Errorf("inserting rule: %w", err)
	}

	if err := insertTags(ctx, tx, rule.UID, rule.Tags); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing rule: %w", err)
	}
	return nil
}

// Update replaces a rule's fields and tags.
func (r *SQLiteRepository) Update(ctx context.Context, rule *Rule) error {
	conditionsJSON, err := marshalConditions(rule.Conditions)
	if err != nil {
		return err
	}

	rule.UpdatedAt = time.Now().UTC()
	rule.Tags = normaliseTags(rule.Tags)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	result, err := tx.ExecContext(ctx, `
		UPDATE rules SET name = ?, description = ?, enabled = ?, conditions = ?, updated_at = ?
		WHERE uid = ?`,
		rule.Name,
		nullableString(rule.Description),
		boolToInt(rule.Enabled),
		conditionsJSON,
		rule.UpdatedAt.Format(time.RFC3339),
		rule.UID,
	)
	if err != nil {
		return fmt.Errorf("updating rule: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 { //nolint:errcheck // SQLite always supports RowsAffected
		return ErrRuleNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM rule_tags WHERE rule_uid = ?`, rule.UID); err != nil {
		return fmt.Errorf("clearing tags: %w", err)
	}
	if err := insertTags(ctx, tx, rule.UID, rule.Tags); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing rule: %w", err)
	}
	return nil
}

// SetEnabled updates only the enabled flag.
func (r *SQLiteRepository) SetEnabled(ctx context.Context, uid string, enabled bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE rules SET enabled = ?, updated_at = ? WHERE uid = ?`,
		boolToInt(enabled),
		time.Now().UTC().Format(time.RFC3339),
		uid,
	)
	if err != nil {
		return fmt.Errorf("setting rule enabled: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 { //nolint:errcheck // SQLite always supports RowsAffected
		return ErrRuleNotFound
	}
	return nil
}

// Delete removes a rule; tags and runs cascade.
func (r *SQLiteRepository) Delete(ctx context.Context, uid string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM rules WHERE uid = ?`, uid)
	if err != nil {
		return fmt.Errorf("deleting rule: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 { //nolint:errcheck // SQLite always supports RowsAffected
		return ErrRuleNotFound
	}
	return nil
}

// CreateRun records a manual trigger.
func (r *SQLiteRepository) CreateRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = GenerateID()
	}
	if run.TriggeredAt.IsZero() {
		run.TriggeredAt = time.Now().UTC()
	}

	inputs := run.Inputs
	if inputs == nil {
		inputs = map[string]any{}
	}
	inputsJSON, err := json.Marshal(inputs)
	if err != nil {
		return fmt.Errorf("marshalling inputs: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO rule_runs (id, rule_uid, inputs, consider_conditions, skipped, source, triggered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.RuleUID,
		string(inputsJSON),
		boolToInt(run.ConsiderConditions),
		boolToInt(run.Skipped),
		nullableString(run.Source),
		run.TriggeredAt.UTC().Format(runTimeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs for a rule, newest first.
// limit is clamped to [1, 100]; zero or negative selects the default of 10.
func (r *SQLiteRepository) ListRuns(ctx context.Context, uid string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = defaultRunLimit
	}
	if limit > maxRunLimit {
		limit = maxRunLimit
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, rule_uid, inputs, consider_conditions, skipped, source, triggered_at
		FROM rule_runs WHERE rule_uid = ?
		ORDER BY triggered_at DESC LIMIT ?`,
		uid, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var inputsJSON, triggeredAt string
		var source sql.NullString
		var consider, skipped int
		if err := rows.Scan(&run.ID, &run.RuleUID, &inputsJSON, &consider, &skipped, &source, &triggeredAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		run.ConsiderConditions = consider != 0
		run.Skipped = skipped != 0
		if source.Valid {
			run.Source = source.String
		}
		if t, parseErr := time.Parse(runTimeFormat, triggeredAt); parseErr == nil {
			run.TriggeredAt = t
		}
		if jsonErr := json.Unmarshal([]byte(inputsJSON), &run.Inputs); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling inputs: %w", jsonErr)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

func (r *SQLiteRepository) tagsFor(ctx context.Context, uid string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT tag FROM rule_tags WHERE rule_uid = ? ORDER BY tag`, uid)
	if err != nil {
		return nil, fmt.Errorf("querying tags: %w", err)
	}
	defer rows.Close()

	tags := []string{}
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tags: %w", err)
	}
	return tags, nil
}

// allTags bulk-loads every rule's tags keyed by uid.
func (r *SQLiteRepository) allTags(ctx context.Context) (map[string][]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT rule_uid, tag FROM rule_tags ORDER BY rule_uid, tag`)
	if err != nil {
		return nil, fmt.Errorf("querying tags: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var uid, tag string
		if err := rows.Scan(&uid, &tag); err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		out[uid] = append(out[uid], tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tags: %w", err)
	}
	return out, nil
}

func insertTags(ctx context.Context, tx *sql.Tx, uid string, tags []string) error {
	for _, tag := range tags {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rule_tags (rule_uid, tag) VALUES (?, ?)`, uid, tag,
		); err != nil {
			return fmt.Errorf("inserting tag %q: %w", tag, err)
		}
	}
	return nil
}

// ─── Row Scanning Helpers ───────────────────────────────────────────────────

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRuleRow(scanner rowScanner) (*Rule, error) {
	var rule Rule
	var description sql.NullString
	var enabled int
	var conditionsJSON, createdAt, updatedAt string

	if err := scanner.Scan(
		&rule.UID,
		&rule.Name,
		&description,
		&enabled,
		&conditionsJSON,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	if description.Valid {
		rule.Description = description.String
	}
	rule.Enabled = enabled != 0
	rule.Status = statusFor(rule.Enabled)

	if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
		rule.CreatedAt = t
	}
	if t, parseErr := time.Parse(time.RFC3339, updatedAt); parseErr == nil {
		rule.UpdatedAt = t
	}

	if conditionsJSON != "" && conditionsJSON != "[]" {
		if err := json.Unmarshal([]byte(conditionsJSON), &rule.Conditions); err != nil {
			return nil, fmt.Errorf("unmarshalling conditions: %w", err)
		}
	}
	return &rule, nil
}

// ─── SQL Helpers ────────────────────────────────────────────────────────────

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func marshalConditions(conditions []Condition) (string, error) {
	if len(conditions) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(conditions)
	if err != nil {
		return "", fmt.Errorf("marshalling conditions: %w", err)
	}
	return string(data), nil
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "primary key")
}
