// Package store provides the PostgreSQL and in-memory implementations of
// library.Store.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/m3rciful/lessonbot/core/logger"
	"github.com/m3rciful/lessonbot/internal/library"
)

const (
	pqForeignKeyViolation = "23503"
	pqUniqueViolation     = "23505"
)

// PostgresStore implements library.Store on top of sqlx.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps an open connection pool.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const upsertUserQuery = `
INSERT INTO users (id, username, first_name, last_name, last_seen)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (id) DO UPDATE SET
	username = EXCLUDED.username,
	first_name = EXCLUDED.first_name,
	last_name = EXCLUDED.last_name,
	last_seen = NOW()`

func (s *PostgresStore) AddOrUpdateUser(ctx context.Context, p library.Profile) error {
	if _, err := s.db.ExecContext(ctx, upsertUserQuery, p.ID, p.Username, p.FirstName, p.LastName); err != nil {
		return library.Storage("AddOrUpdateUser", err)
	}
	return nil
}

func (s *PostgresStore) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	var admin bool
	err := s.db.GetContext(ctx, &admin, `SELECT is_admin FROM users WHERE id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, library.Storage("IsAdmin", err)
	}
	return admin, nil
}

const setAdminQuery = `
INSERT INTO users (id, is_admin, last_seen)
VALUES ($1, $2, NOW())
ON CONFLICT (id) DO UPDATE SET is_admin = EXCLUDED.is_admin`

func (s *PostgresStore) SetAdmin(ctx context.Context, userID int64, admin bool) error {
	if _, err := s.db.ExecContext(ctx, setAdminQuery, userID, admin); err != nil {
		return library.Storage("SetAdmin", err)
	}
	return nil
}

const insertBookQuery = `
INSERT INTO books (title, description, category, created_by)
VALUES ($1, $2, $3, $4)
RETURNING id`

func (s *PostgresStore) AddBook(ctx context.Context, b library.NewBook) (int64, error) {
	title := strings.TrimSpace(b.Title)
	if title == "" {
		return 0, library.Validation("AddBook", "empty title")
	}
	var id int64
	if err := s.db.GetContext(ctx, &id, insertBookQuery, title, b.Description, b.Category, b.CreatedBy); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation {
			return 0, library.NotFound("AddBook", fmt.Sprintf("user %d", b.CreatedBy))
		}
		return 0, library.Storage("AddBook", err)
	}
	logger.Debug(ctx, logger.CompLibrary, "store.book_added",
		slog.Int64("book_id", id),
		slog.String("title", logger.SanitizeLimit(title, 64)),
	)
	return id, nil
}

const insertLessonQuery = `
INSERT INTO lessons (book_id, title, file_id, file_name, position)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`

// AddLesson locks the parent book row so concurrent appends to the same book
// serialize on position allocation. The UNIQUE(book_id, position) constraint
// rejects anything that slips past the lock.
func (s *PostgresStore) AddLesson(ctx context.Context, l library.NewLesson) (int64, error) {
	start := time.Now()
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, library.Storage("AddLesson", err)
	}
	defer func() { _ = tx.Rollback() }()

	var locked int64
	err = tx.GetContext(ctx, &locked, `SELECT id FROM books WHERE id = $1 FOR UPDATE`, l.BookID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, library.NotFound("AddLesson", fmt.Sprintf("book %d", l.BookID))
	}
	if err != nil {
		return 0, library.Storage("AddLesson", err)
	}

	var position int
	if err := tx.GetContext(ctx, &position,
		`SELECT COALESCE(MAX(position) + 1, 0) FROM lessons WHERE book_id = $1`, l.BookID); err != nil {
		return 0, library.Storage("AddLesson", err)
	}

	var id int64
	if err := tx.GetContext(ctx, &id, insertLessonQuery, l.BookID, l.Title, l.FileID, l.FileName, position); err != nil {
		return 0, classifyWrite("AddLesson", l.BookID, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, library.Storage("AddLesson", err)
	}

	logger.Debug(ctx, logger.CompLibrary, "store.lesson_added",
		slog.Int64("book_id", l.BookID),
		slog.Int64("lesson_id", id),
		slog.Int("position", position),
		slog.Duration("duration", logger.Took(start)),
	)
	return id, nil
}

const allBooksQuery = `
SELECT b.id, b.title, COUNT(l.id) AS lesson_count
FROM books b
LEFT JOIN lessons l ON l.book_id = b.id
GROUP BY b.id, b.title
ORDER BY b.id`

func (s *PostgresStore) GetAllBooks(ctx context.Context) ([]library.BookSummary, error) {
	books := []library.BookSummary{}
	if err := s.db.SelectContext(ctx, &books, allBooksQuery); err != nil {
		return nil, library.Storage("GetAllBooks", err)
	}
	return books, nil
}

func (s *PostgresStore) GetBookByID(ctx context.Context, id int64) (library.Book, error) {
	var b library.Book
	err := s.db.GetContext(ctx, &b,
		`SELECT id, title, description, category, created_by, created_at FROM books WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return library.Book{}, library.NotFound("GetBookByID", fmt.Sprintf("book %d", id))
	}
	if err != nil {
		return library.Book{}, library.Storage("GetBookByID", err)
	}
	return b, nil
}

func (s *PostgresStore) GetLessonsByBook(ctx context.Context, bookID int64) ([]library.Lesson, error) {
	lessons := []library.Lesson{}
	err := s.db.SelectContext(ctx, &lessons,
		`SELECT id, book_id, title, file_id, file_name, position FROM lessons WHERE book_id = $1 ORDER BY position`, bookID)
	if err != nil {
		return nil, library.Storage("GetLessonsByBook", err)
	}
	return lessons, nil
}

func (s *PostgresStore) GetLesson(ctx context.Context, id int64) (library.Lesson, error) {
	var l library.Lesson
	err := s.db.GetContext(ctx, &l,
		`SELECT id, book_id, title, file_id, file_name, position FROM lessons WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return library.Lesson{}, library.NotFound("GetLesson", fmt.Sprintf("lesson %d", id))
	}
	if err != nil {
		return library.Lesson{}, library.Storage("GetLesson", err)
	}
	return l, nil
}

const statsQuery = `
SELECT
	(SELECT COUNT(*) FROM books) AS books,
	(SELECT COUNT(*) FROM lessons) AS lessons,
	(SELECT COUNT(*) FROM users) AS users`

func (s *PostgresStore) Stats(ctx context.Context) (library.Stats, error) {
	var st library.Stats
	if err := s.db.GetContext(ctx, &st, statsQuery); err != nil {
		return library.Stats{}, library.Storage("Stats", err)
	}
	return st, nil
}

// classifyWrite maps constraint violations onto library error kinds.
func classifyWrite(op string, bookID int64, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqForeignKeyViolation:
			return library.NotFound(op, fmt.Sprintf("book %d", bookID))
		case pqUniqueViolation:
			return library.Storage(op, fmt.Errorf("position conflict on book %d: %w", bookID, err))
		}
	}
	return library.Storage(op, err)
}

var _ library.Store = (*PostgresStore)(nil)
