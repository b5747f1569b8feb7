// Package store keeps catalog files, their per-frame scores and the
// results of time analysis runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/banshee-data/antispoofing.motion/internal/catalog"
	"github.com/banshee-data/antispoofing.motion/internal/decision"
	_ "modernc.org/sqlite"
)

// ErrUnknownFile is returned when scores are stored or read for a file
// that is not in the files table.
var ErrUnknownFile = errors.New("unknown file")

type DB struct {
	*sql.DB
	path string
}

// Open opens (creating if needed) the database at path and migrates it to
// the latest schema.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one connection keeps the pragmas below in force for every query
	sqlDB.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	db := &DB{DB: sqlDB, path: path}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// PutFile inserts f or updates its attributes. Files keep the position of
// their first insertion.
func (db *DB) PutFile(ctx context.Context, f catalog.File) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO files (file_id, path, protocol, support, grp, class)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (file_id) DO UPDATE SET
			path = excluded.path,
			protocol = excluded.protocol,
			support = excluded.support,
			grp = excluded.grp,
			class = excluded.class`,
		f.ID, f.Path, f.Protocol, f.Support, string(f.Group), string(f.Class))
	if err != nil {
		return fmt.Errorf("failed to store file %s: %w", f.ID, err)
	}
	return nil
}

// PutScores replaces the scores of a file. Unknown scores are stored as
// NULL.
func (db *DB) PutScores(ctx context.Context, fileID string, scores []decision.Score) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM files WHERE file_id = ?`, fileID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownFile, fileID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM scores WHERE file_id = ?`, fileID); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO scores (file_id, frame, score) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, s := range scores {
		v := sql.NullFloat64{}
		v.Float64, v.Valid = s.Value()
		if _, err := stmt.ExecContext(ctx, fileID, i, v); err != nil {
			return fmt.Errorf("failed to store score %d of %s: %w", i, fileID, err)
		}
	}
	return tx.Commit()
}

// Scores returns the per-frame scores of a file in frame order.
func (db *DB) Scores(ctx context.Context, fileID string) ([]decision.Score, error) {
	rows, err := db.QueryContext(ctx, `SELECT frame, score FROM scores WHERE file_id = ? ORDER BY frame`, fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []decision.Score
	for rows.Next() {
		var frame int
		var v sql.NullFloat64
		if err := rows.Scan(&frame, &v); err != nil {
			return nil, err
		}
		// frames are dense from 0; gaps mean missing scores
		for len(out) < frame {
			out = append(out, decision.Missing())
		}
		if v.Valid {
			out = append(out, decision.Known(v.Float64))
		} else {
			out = append(out, decision.Missing())
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	if out == nil {
		var n int
		if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files WHERE file_id = ?`, fileID).Scan(&n); err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, fmt.Errorf("%w: %s", ErrUnknownFile, fileID)
		}
	}
	return out, nil
}

// Files implements catalog.Catalog. Files are returned in insertion order.
func (db *DB) Files(ctx context.Context, flt catalog.Filter) ([]catalog.File, error) {
	var where []string
	var args []any
	if flt.Protocol != "" {
		where = append(where, "(protocol = '' OR protocol = ?)")
		args = append(args, flt.Protocol)
	}
	in := func(column string, values []string) {
		if len(values) == 0 {
			return
		}
		where = append(where, fmt.Sprintf("%s IN (?%s)", column, strings.Repeat(", ?", len(values)-1)))
		for _, v := range values {
			args = append(args, v)
		}
	}
	in("support", flt.Supports)
	in("grp", stringsOf(flt.Groups))
	in("class", stringsOf(flt.Classes))

	query := `SELECT file_id, path, protocol, support, grp, class FROM files`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY rowid"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.File
	for rows.Next() {
		var f catalog.File
		var grp, class string
		if err := rows.Scan(&f.ID, &f.Path, &f.Protocol, &f.Support, &grp, &class); err != nil {
			return nil, err
		}
		f.Group, f.Class = catalog.Group(grp), catalog.Class(class)
		out = append(out, f)
	}
	return out, rows.Err()
}

func stringsOf[T ~string](vs []T) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = string(v)
	}
	return out
}
