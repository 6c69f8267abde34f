package docstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// SQLStore persists documents as JSON rows in a sqlite "documents" table
// (see database.Migrate). Batches commit inside one SQL transaction.
type SQLStore struct {
	db   *sql.DB
	opts options
}

func NewSQLStore(db *sql.DB, opts ...Option) *SQLStore {
	return &SQLStore{db: db, opts: newOptions(opts)}
}

func (s *SQLStore) Get(ctx context.Context, path string) (*Snapshot, error) {
	_, id, err := SplitPath(path)
	if err != nil {
		return nil, err
	}

	var raw string
	err = s.db.QueryRowContext(ctx, `SELECT data FROM documents WHERE path = ?`, path).Scan(&raw)
	if err == sql.ErrNoRows {
		return &Snapshot{Path: path, ID: id}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}

	doc, err := decode([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &Snapshot{Path: path, ID: id, Exists: true, Data: doc}, nil
}

func (s *SQLStore) Query(ctx context.Context, collection, field string, value interface{}) ([]*Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, data FROM documents
		WHERE collection = ? AND json_extract(data, ?) = ?
		ORDER BY path
	`, collection, jsonPath(field), value)
	if err != nil {
		return nil, fmt.Errorf("query %s where %s: %w", collection, field, err)
	}
	return scanSnapshots(rows)
}

func (s *SQLStore) List(ctx context.Context, collection string) ([]*Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, data FROM documents WHERE collection = ? ORDER BY path`, collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	return scanSnapshots(rows)
}

func (s *SQLStore) NewBatch() Batch {
	return &batch{commit: s.commit}
}

func (s *SQLStore) commit(ctx context.Context, ops []op) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := s.opts.now()
	for _, o := range ops {
		current, exists, err := loadTx(ctx, tx, o.path)
		if err != nil {
			return err
		}

		next, keep, err := apply(o, current, exists, now)
		if err != nil {
			return err
		}

		switch {
		case o.kind == opRequire:
			continue
		case !keep:
			if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE path = ?`, o.path); err != nil {
				return fmt.Errorf("delete %s: %w", o.path, err)
			}
		default:
			raw, err := encode(next)
			if err != nil {
				return fmt.Errorf("encode %s: %w", o.path, err)
			}
			collection, _, _ := SplitPath(o.path)
			_, err = tx.ExecContext(ctx, `
				INSERT INTO documents (path, collection, data, updated_at) VALUES (?, ?, ?, ?)
				ON CONFLICT(path) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
			`, o.path, collection, string(raw), now.Unix())
			if err != nil {
				return fmt.Errorf("write %s: %w", o.path, err)
			}
		}
	}

	return tx.Commit()
}

func loadTx(ctx context.Context, tx *sql.Tx, path string) (Document, bool, error) {
	var raw string
	err := tx.QueryRowContext(ctx, `SELECT data FROM documents WHERE path = ?`, path).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load %s: %w", path, err)
	}
	doc, err := decode([]byte(raw))
	if err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", path, err)
	}
	return doc, true, nil
}

func scanSnapshots(rows *sql.Rows) ([]*Snapshot, error) {
	defer rows.Close()

	var snaps []*Snapshot
	for rows.Next() {
		var p, raw string
		if err := rows.Scan(&p, &raw); err != nil {
			return nil, err
		}
		_, id, err := SplitPath(p)
		if err != nil {
			return nil, err
		}
		doc, err := decode([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", p, err)
		}
		snaps = append(snaps, &Snapshot{Path: p, ID: id, Exists: true, Data: doc})
	}
	return snaps, rows.Err()
}

// jsonPath quotes a top-level key for json_extract.
func jsonPath(field string) string {
	return `$."` + strings.ReplaceAll(field, `"`, `\"`) + `"`
}
