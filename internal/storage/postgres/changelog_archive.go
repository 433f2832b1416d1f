package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bidvictrix/skillforge/internal/governance"
	"github.com/bidvictrix/skillforge/internal/skill"
)

// ChangeLogArchive stores change-log entries evicted from the bounded
// in-memory ring, preserving the full audit trail. Archived entries are
// read back for audit queries only; rollback operates on the live ring.
type ChangeLogArchive struct {
	db *pgxpool.Pool
}

// NewChangeLogArchive creates a ChangeLogArchive backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewChangeLogArchive(db *pgxpool.Pool) *ChangeLogArchive {
	return &ChangeLogArchive{db: db}
}

// Archive writes one evicted entry. The field diff is stored in its
// tagged wire encoding so the concrete change types survive round-trips.
//
// Precondition: e must be non-nil with a non-empty ID.
func (a *ChangeLogArchive) Archive(ctx context.Context, e *governance.Entry) error {
	diffs, err := skill.MarshalChanges(e.Diffs)
	if err != nil {
		return fmt.Errorf("encoding diffs for entry %q: %w", e.ID, err)
	}
	impact, err := json.Marshal(e.Impact)
	if err != nil {
		return fmt.Errorf("encoding impact for entry %q: %w", e.ID, err)
	}

	_, err = a.db.Exec(ctx,
		`INSERT INTO changelog_archive
		     (id, skill_id, kind, ts, author, diffs, reason, impact, approved, approved_by, rollback_of)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO NOTHING`,
		e.ID, e.SkillID, string(e.Kind), e.Timestamp, e.Author,
		diffs, e.Reason, impact, e.Approved, e.ApprovedBy, e.RollbackOf,
	)
	if err != nil {
		return fmt.Errorf("archiving entry %q: %w", e.ID, err)
	}
	return nil
}

// List returns archived entries for a skill, newest first, capped at
// limit (limit <= 0 means no cap).
//
// Postcondition: Returns a non-nil slice.
func (a *ChangeLogArchive) List(ctx context.Context, skillID string, limit int) ([]*governance.Entry, error) {
	query := `SELECT id, skill_id, kind, ts, author, diffs, reason, impact, approved, approved_by, rollback_of
	          FROM changelog_archive WHERE skill_id = $1 ORDER BY ts DESC`
	args := []any{skillID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := a.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying archive for %q: %w", skillID, err)
	}
	defer rows.Close()

	out := []*governance.Entry{}
	for rows.Next() {
		var e governance.Entry
		var kind string
		var diffs, impact []byte
		if err := rows.Scan(&e.ID, &e.SkillID, &kind, &e.Timestamp, &e.Author,
			&diffs, &e.Reason, &impact, &e.Approved, &e.ApprovedBy, &e.RollbackOf); err != nil {
			return nil, fmt.Errorf("scanning archive row: %w", err)
		}
		e.Kind = governance.ChangeKind(kind)
		if e.Diffs, err = skill.UnmarshalChanges(diffs); err != nil {
			return nil, fmt.Errorf("decoding diffs for entry %q: %w", e.ID, err)
		}
		if err := json.Unmarshal(impact, &e.Impact); err != nil {
			return nil, fmt.Errorf("decoding impact for entry %q: %w", e.ID, err)
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating archive rows: %w", err)
	}
	return out, nil
}
