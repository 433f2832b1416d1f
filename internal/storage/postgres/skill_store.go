package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bidvictrix/skillforge/internal/skill"
)

// SkillStore persists the skill collection as one JSONB document per
// skill. It implements the engine's whole-collection persistence port:
// Save replaces the stored set in a single transaction, so a reader
// never observes a half-written collection.
type SkillStore struct {
	db *pgxpool.Pool
}

// NewSkillStore creates a SkillStore backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewSkillStore(db *pgxpool.Pool) *SkillStore {
	return &SkillStore{db: db}
}

// Load reads the full skill collection.
//
// Postcondition: Returns a non-nil map; an empty table yields an empty
// map, which is valid on first run.
func (s *SkillStore) Load(ctx context.Context) (map[string]*skill.Skill, error) {
	rows, err := s.db.Query(ctx, `SELECT id, doc FROM skills`)
	if err != nil {
		return nil, fmt.Errorf("querying skills: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*skill.Skill)
	for rows.Next() {
		var id string
		var doc []byte
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("scanning skill row: %w", err)
		}
		var sk skill.Skill
		if err := json.Unmarshal(doc, &sk); err != nil {
			return nil, fmt.Errorf("decoding skill %q: %w", id, err)
		}
		out[id] = &sk
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating skill rows: %w", err)
	}
	return out, nil
}

// Save replaces the stored collection with the given one: every skill
// is upserted and rows absent from the collection are removed, all in
// one transaction.
//
// Precondition: skills must not contain nil values.
func (s *SkillStore) Save(ctx context.Context, skills map[string]*skill.Skill) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("beginning save transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ids := make([]string, 0, len(skills))
	for id, sk := range skills {
		doc, err := json.Marshal(sk)
		if err != nil {
			return fmt.Errorf("encoding skill %q: %w", id, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO skills (id, doc, updated_at)
			 VALUES ($1, $2, now())
			 ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()`,
			id, doc,
		); err != nil {
			return fmt.Errorf("upserting skill %q: %w", id, err)
		}
		ids = append(ids, id)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM skills WHERE NOT (id = ANY($1))`, ids); err != nil {
		return fmt.Errorf("pruning removed skills: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing save transaction: %w", err)
	}
	return nil
}
