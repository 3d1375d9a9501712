package journal

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"live-trader/internal/types"
)

// SQLite is a queryable copy of the JSONL ledgers. The ledger files stay the
// source of truth.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

// Mirror inserts the records not yet present for identity and returns how
// many were new.
func (j *SQLite) Mirror(ctx context.Context, identity string, recs []types.PositionSnapshot) (int, error) {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	snap, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO snapshots
		(identity, id, date, action, symbol, amount, price, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer snap.Close()

	hold, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO holdings (identity, id, symbol, qty)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer hold.Close()

	added := 0
	for _, r := range recs {
		res, err := snap.ExecContext(ctx, identity, r.ID, r.Date, string(r.Action.Kind),
			r.Action.Symbol, r.Action.Amount, r.Action.Price, r.Action.Source)
		if err != nil {
			return 0, fmt.Errorf("mirror %s #%d: %w", identity, r.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		if n == 0 {
			continue
		}
		added++
		for sym, qty := range r.Positions {
			if _, err := hold.ExecContext(ctx, identity, r.ID, sym, qty); err != nil {
				return 0, fmt.Errorf("mirror %s #%d %s: %w", identity, r.ID, sym, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return added, nil
}

// Snapshots returns the mirrored records of identity dated on date (any
// label whose date part matches), ordered by id.
func (j *SQLite) Snapshots(ctx context.Context, identity, date string) ([]types.PositionSnapshot, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, date, action, COALESCE(symbol, ''), COALESCE(amount, 0), COALESCE(price, 0), COALESCE(source, '')
		FROM snapshots
		WHERE identity = ? AND substr(date, 1, 10) = ?
		ORDER BY id`, identity, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.PositionSnapshot
	for rows.Next() {
		var (
			s    types.PositionSnapshot
			kind string
		)
		if err := rows.Scan(&s.ID, &s.Date, &kind, &s.Action.Symbol, &s.Action.Amount, &s.Action.Price, &s.Action.Source); err != nil {
			return nil, err
		}
		s.Action.Kind = types.ActionKind(kind)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		pos, err := j.holdings(ctx, identity, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Positions = pos
	}
	return out, nil
}

func (j *SQLite) holdings(ctx context.Context, identity string, id int64) (types.Positions, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT symbol, qty FROM holdings WHERE identity = ? AND id = ?`, identity, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pos := types.Positions{}
	for rows.Next() {
		var (
			sym string
			qty float64
		)
		if err := rows.Scan(&sym, &qty); err != nil {
			return nil, err
		}
		pos[sym] = qty
	}
	return pos, rows.Err()
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
