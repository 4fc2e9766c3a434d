package entry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/RuslanFatikhov/CoffeeLog/internal/db"
)

// PostgresStore persists journal entries in Postgres. Ownership is
// enforced inside every statement: reads and deletes filter on
// owner_key, and the upsert's conflict clause only updates rows whose
// owner_key already matches, so a foreign id can never be overwritten.
type PostgresStore struct {
	db *db.DB
}

func NewPostgresStore(db *db.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const entryColumns = `
	id, owner_key, created_at, brew_date, coffee_name,
	COALESCE(roastery, ''), COALESCE(origin, ''), COALESCE(process, ''),
	COALESCE(brew_method, ''), COALESCE(grind_size, ''),
	water_temp, dose, yield_amount, COALESCE(brew_time, ''),
	aroma, flavor, aftertaste, defects,
	acidity, sweetness, bitterness, body, balance, overall,
	COALESCE(notes, '')
`

const listEntriesQuery = `
	SELECT ` + entryColumns + `
	FROM entries
	WHERE owner_key = $1
	ORDER BY created_at DESC
`

func (s *PostgresStore) ListByOwner(ctx context.Context, owner string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, listEntriesQuery, owner)
	if err != nil {
		return nil, fmt.Errorf("entry: list: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("entry: list: %w", err)
	}
	return entries, nil
}

const getEntryQuery = `
	SELECT ` + entryColumns + `
	FROM entries
	WHERE id = $1 AND owner_key = $2
`

func (s *PostgresStore) Get(ctx context.Context, id string, owner string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, getEntryQuery, id, owner)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

const upsertEntryQuery = `
	INSERT INTO entries (
		id, owner_key, created_at, brew_date, coffee_name,
		roastery, origin, process, brew_method, grind_size,
		water_temp, dose, yield_amount, brew_time,
		aroma, flavor, aftertaste, defects,
		acidity, sweetness, bitterness, body, balance, overall,
		notes
	) VALUES (
		$1, $2, $3, $4, $5,
		NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''),
		$11, $12, $13, NULLIF($14, ''),
		$15, $16, $17, $18,
		$19, $20, $21, $22, $23, $24,
		NULLIF($25, '')
	)
	ON CONFLICT (id) DO UPDATE SET
		created_at  = EXCLUDED.created_at,
		brew_date   = EXCLUDED.brew_date,
		coffee_name = EXCLUDED.coffee_name,
		roastery    = EXCLUDED.roastery,
		origin      = EXCLUDED.origin,
		process     = EXCLUDED.process,
		brew_method = EXCLUDED.brew_method,
		grind_size  = EXCLUDED.grind_size,
		water_temp  = EXCLUDED.water_temp,
		dose        = EXCLUDED.dose,
		yield_amount = EXCLUDED.yield_amount,
		brew_time   = EXCLUDED.brew_time,
		aroma       = EXCLUDED.aroma,
		flavor      = EXCLUDED.flavor,
		aftertaste  = EXCLUDED.aftertaste,
		defects     = EXCLUDED.defects,
		acidity     = EXCLUDED.acidity,
		sweetness   = EXCLUDED.sweetness,
		bitterness  = EXCLUDED.bitterness,
		body        = EXCLUDED.body,
		balance     = EXCLUDED.balance,
		overall     = EXCLUDED.overall,
		notes       = EXCLUDED.notes
	WHERE entries.owner_key = EXCLUDED.owner_key
`

func (s *PostgresStore) UpsertBatch(ctx context.Context, entries []Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("entry: begin upsert: %w", err)
	}
	defer tx.Rollback()

	for _, e := range entries {
		aroma, flavor, aftertaste, defects, err := marshalTagLists(e)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, upsertEntryQuery,
			e.ID, e.OwnerKey, e.CreatedAt, e.BrewDate, e.CoffeeName,
			e.Roastery, e.Origin, e.Process, e.BrewMethod, e.GrindSize,
			e.WaterTemp, e.Dose, e.YieldAmount, e.BrewTime,
			aroma, flavor, aftertaste, defects,
			e.Acidity, e.Sweetness, e.Bitterness, e.Body, e.Balance, e.Overall,
			e.Notes,
		)
		if err != nil {
			return fmt.Errorf("entry: upsert %q: %w", e.ID, err)
		}

		// zero rows means the id exists but the conflict clause refused
		// the update: the entry belongs to another owner
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("entry: upsert %q: %w", e.ID, err)
		}
		if n == 0 {
			return ErrNotFound
		}
	}

	return tx.Commit()
}

const deleteEntryQuery = `
	DELETE FROM entries
	WHERE id = $1 AND owner_key = $2
`

func (s *PostgresStore) Delete(ctx context.Context, id string, owner string) error {
	res, err := s.db.ExecContext(ctx, deleteEntryQuery, id, owner)
	if err != nil {
		return fmt.Errorf("entry: delete %q: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("entry: delete %q: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func marshalTagLists(e Entry) (aroma, flavor, aftertaste, defects []byte, err error) {
	lists := [4][]string{e.Aroma, e.Flavor, e.Aftertaste, e.Defects}
	out := [4][]byte{}
	for i, l := range lists {
		if l == nil {
			l = []string{}
		}
		out[i], err = json.Marshal(l)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("entry: marshal tags for %q: %w", e.ID, err)
		}
	}
	return out[0], out[1], out[2], out[3], nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		e                                  Entry
		aroma, flavor, aftertaste, defects []byte
	)

	err := row.Scan(
		&e.ID, &e.OwnerKey, &e.CreatedAt, &e.BrewDate, &e.CoffeeName,
		&e.Roastery, &e.Origin, &e.Process, &e.BrewMethod, &e.GrindSize,
		&e.WaterTemp, &e.Dose, &e.YieldAmount, &e.BrewTime,
		&aroma, &flavor, &aftertaste, &defects,
		&e.Acidity, &e.Sweetness, &e.Bitterness, &e.Body, &e.Balance, &e.Overall,
		&e.Notes,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("entry: scan: %w", err)
	}

	for dst, raw := range map[*[]string][]byte{
		&e.Aroma:      aroma,
		&e.Flavor:     flavor,
		&e.Aftertaste: aftertaste,
		&e.Defects:    defects,
	} {
		*dst = []string{}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, dst); err != nil {
				return nil, fmt.Errorf("entry: unmarshal tags: %w", err)
			}
		}
	}

	return &e, nil
}
