// Package export writes snapshots of the collections to other formats.
package export

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/maruel/bibliodb/internal/models"
)

// Source is the loaded data to export.
type Source interface {
	EnsureDataLoaded(ctx context.Context) error
	Authors() []*models.Author
	Books() []*models.Book
	BookItems() []*models.BookItem
	Patrons() []*models.Patron
	Loans() []*models.Loan
}

// Result summarizes an export.
type Result struct {
	SnapshotID uuid.UUID
	ExportedAt time.Time
	Rows       map[string]int
	// Dangling counts foreign keys that matched no row and were written as
	// NULL.
	Dangling int
}

var schema = []string{
	`CREATE TABLE meta (key TEXT PRIMARY KEY, value TEXT NOT NULL);`,
	`CREATE TABLE authors (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL
	);`,
	`CREATE TABLE books (
		id INTEGER PRIMARY KEY,
		title TEXT NOT NULL,
		author_id INTEGER REFERENCES authors(id),
		genre TEXT NOT NULL,
		image_name TEXT NOT NULL,
		isbn TEXT NOT NULL
	);`,
	`CREATE TABLE book_items (
		id INTEGER PRIMARY KEY,
		book_id INTEGER REFERENCES books(id),
		acquisition_date TEXT NOT NULL,
		condition TEXT NOT NULL
	);`,
	`CREATE TABLE patrons (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		image_name TEXT NOT NULL,
		membership_start TEXT NOT NULL,
		membership_end TEXT NOT NULL
	);`,
	`CREATE TABLE loans (
		id INTEGER PRIMARY KEY,
		book_item_id INTEGER REFERENCES book_items(id),
		patron_id INTEGER REFERENCES patrons(id),
		loan_date TEXT NOT NULL,
		due_date TEXT NOT NULL,
		return_date TEXT
	);`,
	`CREATE INDEX loans_patron_id ON loans(patron_id);`,
}

// SQLite writes every collection of src into a new SQLite database at path.
//
// path must not exist. Foreign keys are enforced, so a reference to a missing
// row is stored as NULL and counted in Result.Dangling.
func SQLite(ctx context.Context, path string, src Source) (*Result, error) {
	if err := src.EnsureDataLoaded(ctx); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%s: %w", path, fs.ErrExist)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	res, err := write(ctx, db, src)
	if err2 := db.Close(); err == nil {
		err = err2
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	slog.InfoContext(ctx, "Exported snapshot", "path", path, "id", res.SnapshotID, "rows", res.Rows, "dangling", res.Dangling)
	return res, nil
}

func write(ctx context.Context, db *sql.DB, src Source) (*Result, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	res := &Result{SnapshotID: id, ExportedAt: time.Now().UTC(), Rows: map[string]int{}}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	w := &writer{ctx: ctx, tx: tx, res: res}
	authors := map[int]bool{}
	for _, a := range src.Authors() {
		authors[a.ID] = true
		w.exec("authors", `INSERT INTO authors (id, name) VALUES (?, ?)`, a.ID, a.Name)
	}
	books := map[int]bool{}
	for _, b := range src.Books() {
		books[b.ID] = true
		w.exec("books", `INSERT INTO books (id, title, author_id, genre, image_name, isbn) VALUES (?, ?, ?, ?, ?, ?)`,
			b.ID, b.Title, w.ref(authors, b.AuthorID), b.Genre, b.ImageName, b.ISBN)
	}
	items := map[int]bool{}
	for _, bi := range src.BookItems() {
		items[bi.ID] = true
		w.exec("book_items", `INSERT INTO book_items (id, book_id, acquisition_date, condition) VALUES (?, ?, ?, ?)`,
			bi.ID, w.ref(books, bi.BookID), formatTime(bi.AcquisitionDate), bi.Condition)
	}
	patrons := map[int]bool{}
	for _, p := range src.Patrons() {
		patrons[p.ID] = true
		w.exec("patrons", `INSERT INTO patrons (id, name, image_name, membership_start, membership_end) VALUES (?, ?, ?, ?, ?)`,
			p.ID, p.Name, p.ImageName, formatTime(p.MembershipStart), formatTime(p.MembershipEnd))
	}
	for _, l := range src.Loans() {
		var returned any
		if l.ReturnDate != nil {
			returned = formatTime(*l.ReturnDate)
		}
		w.exec("loans", `INSERT INTO loans (id, book_item_id, patron_id, loan_date, due_date, return_date) VALUES (?, ?, ?, ?, ?, ?)`,
			l.ID, w.ref(items, l.BookItemID), w.ref(patrons, l.PatronID), formatTime(l.LoanDate), formatTime(l.DueDate), returned)
	}
	w.exec("", `INSERT INTO meta (key, value) VALUES ('snapshot_id', ?), ('exported_at', ?)`,
		id.String(), formatTime(res.ExportedAt))
	if w.err != nil {
		return nil, w.err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return res, nil
}

// writer stops at the first failed statement.
type writer struct {
	ctx context.Context
	tx  *sql.Tx
	res *Result
	err error
}

func (w *writer) exec(table, query string, args ...any) {
	if w.err != nil {
		return
	}
	if _, err := w.tx.ExecContext(w.ctx, query, args...); err != nil {
		w.err = fmt.Errorf("insert into %s: %w", table, err)
		return
	}
	if table != "" {
		w.res.Rows[table]++
	}
}

func (w *writer) ref(known map[int]bool, id int) any {
	if known[id] {
		return id
	}
	w.res.Dangling++
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
