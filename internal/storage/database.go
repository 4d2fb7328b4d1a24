package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/conorfennell/ankitab/internal/domain"
	"github.com/conorfennell/ankitab/internal/parser"
	"github.com/conorfennell/ankitab/internal/schema"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// DB represents a wrapper around a collection database file.
type DB struct {
	conn    *sql.DB
	path    string
	layout  Layout
	lookups *domain.Lookups
	log     *slog.Logger
}

// Open opens an existing collection and detects its layout.
func Open(path string) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrPathNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat database %s: %w", path, err)
	}
	conn, err := connect(path)
	if err != nil {
		return nil, err
	}
	db := &DB{conn: conn, path: path, log: slog.Default()}
	if db.layout, err = db.detectLayout(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Create makes a new empty collection at path with a default deck.
func Create(path string, layout Layout) (*DB, error) {
	conn, err := connect(path)
	if err != nil {
		return nil, err
	}
	db := &DB{conn: conn, path: path, layout: layout, log: slog.Default()}
	if err := db.initialize(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func connect(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return conn, nil
}

func (db *DB) initialize() error {
	ddl := recordSchema
	ver := 11
	if db.layout == LayoutSplit {
		ddl += splitSchema
		ver = 18
	}
	if _, err := db.conn.Exec(ddl); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	now := time.Now()
	decks := "{}"
	if db.layout == LayoutLegacy {
		doc, err := parser.EncodeDecks(map[int64]parser.Deck{1: {ID: 1, Name: "Default"}})
		if err != nil {
			return err
		}
		decks = doc
	}
	if _, err := db.conn.Exec(`
		INSERT INTO col (id, crt, mod, scm, ver, dty, usn, ls, conf, models, decks, dconf, tags)
		VALUES (1, ?, ?, ?, ?, 0, 0, 0, '{}', '{}', ?, '{}', '{}')
	`, now.Unix(), now.UnixMilli(), now.UnixMilli(), ver, decks); err != nil {
		return fmt.Errorf("failed to insert collection row: %w", err)
	}
	if db.layout == LayoutSplit {
		if err := db.AddDeck(1, "Default"); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) detectLayout() (Layout, error) {
	var n int
	err := db.conn.QueryRow(`
		SELECT count(*) FROM sqlite_master
		WHERE type = 'table' AND name = 'decks'
	`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect tables: %w", err)
	}
	if n > 0 {
		return LayoutSplit, nil
	}
	return LayoutLegacy, nil
}

// SetLogger replaces the logger.
func (db *DB) SetLogger(l *slog.Logger) { db.log = l }

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

// Layout returns the detected layout.
func (db *DB) Layout() Layout { return db.layout }

// ReadTable returns all rows of t in raw format, ordered by id.
func (db *DB) ReadTable(t domain.Table) ([]domain.Row, error) {
	desc, err := schema.For(t)
	if err != nil {
		return nil, err
	}
	cols := desc.WireColumns()
	rows, err := db.conn.Query(fmt.Sprintf(`SELECT %s FROM %s ORDER BY "id"`, columnList(cols), quote(t.StoreName())))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", t, err)
	}
	defer rows.Close()

	var out []domain.Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", t, err)
		}
		r := make(domain.Row, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				values[i] = string(b)
			}
			r[c] = values[i]
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", t, err)
	}
	return out, nil
}

// IDs returns the stored ids of t.
func (db *DB) IDs(t domain.Table) (map[int64]bool, error) {
	return queryIDs(db.conn, t)
}

type queryer interface {
	Query(query string, args ...any) (*sql.Rows, error)
}

func queryIDs(q queryer, t domain.Table) (map[int64]bool, error) {
	rows, err := q.Query(fmt.Sprintf(`SELECT "id" FROM %s`, quote(t.StoreName())))
	if err != nil {
		return nil, fmt.Errorf("failed to read ids of %s: %w", t, err)
	}
	defer rows.Close()
	ids := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id of %s: %w", t, err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// WriteTable persists raw rows of t under mode in one transaction.
func (db *DB) WriteTable(t domain.Table, rows []domain.Row, mode domain.WriteMode) error {
	desc, err := schema.For(t)
	if err != nil {
		return err
	}
	cols := desc.WireColumns()
	args := make([][]any, 0, len(rows))
	incoming := make(map[int64]bool, len(rows))
	for _, r := range rows {
		values, err := rowValues(desc, cols, r)
		if err != nil {
			return fmt.Errorf("failed to prepare %s row: %w", t, err)
		}
		id := values[0].(int64)
		if incoming[id] {
			return fmt.Errorf("duplicate %s id %d", t, id)
		}
		incoming[id] = true
		args = append(args, values)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stored, err := queryIDs(tx, t)
	if err != nil {
		return err
	}

	table := quote(t.StoreName())
	var upsert string
	switch mode {
	case domain.Update, domain.Replace:
		sets := make([]string, 0, len(cols)-1)
		for _, c := range cols[1:] {
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", quote(c), quote(c)))
		}
		upsert = fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT("id") DO UPDATE SET %s`,
			table, columnList(cols), placeholders(len(cols)), strings.Join(sets, ", "))
	case domain.Append:
		upsert = fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT("id") DO NOTHING`,
			table, columnList(cols), placeholders(len(cols)))
	default:
		return fmt.Errorf("unknown write mode %s", mode)
	}

	if mode == domain.Replace {
		del, err := tx.Prepare(fmt.Sprintf(`DELETE FROM %s WHERE "id" = ?`, table))
		if err != nil {
			return fmt.Errorf("failed to prepare delete on %s: %w", t, err)
		}
		defer del.Close()
		for id := range stored {
			if incoming[id] {
				continue
			}
			if _, err := del.Exec(id); err != nil {
				return fmt.Errorf("failed to delete %s id %d: %w", t, id, err)
			}
		}
	}

	stmt, err := tx.Prepare(upsert)
	if err != nil {
		return fmt.Errorf("failed to prepare write on %s: %w", t, err)
	}
	defer stmt.Close()

	written := 0
	for _, values := range args {
		id := values[0].(int64)
		if mode == domain.Append && stored[id] {
			continue
		}
		if _, err := stmt.Exec(values...); err != nil {
			return fmt.Errorf("failed to write %s id %d: %w", t, id, err)
		}
		written++
	}
	if mode == domain.Append && written == 0 {
		db.log.Warn("Asked to append, but there are no new rows", "table", t)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s: %w", t, err)
	}
	db.lookups = nil
	db.log.Debug("Wrote table", "table", t, "mode", mode, "rows", written)
	return nil
}

// UpdateIndices creates the search indexes of t if they are missing.
func (db *DB) UpdateIndices(t domain.Table) error {
	for _, stmt := range indexes[t.StoreName()] {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("failed to update indices of %s: %w", t, err)
		}
	}
	return nil
}

func rowValues(desc *schema.Descriptor, cols []string, r domain.Row) ([]any, error) {
	values := make([]any, len(cols))
	for i, c := range cols {
		v, ok := r[c]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrColumnMissing, c)
		}
		kind, _ := desc.Kind(c)
		cast, err := schema.Cast(kind, v)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c, err)
		}
		values[i] = cast
	}
	return values, nil
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func columnList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quote(c)
	}
	return strings.Join(quoted, ", ")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
