package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/m3rciful/lessonbot/internal/library"
)

func setupMockStore(t *testing.T) (sqlmock.Sqlmock, *PostgresStore) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return mock, NewPostgresStore(sqlx.NewDb(db, "postgres"))
}

func TestPostgresStore_AddLesson(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(sqlmock.Sqlmock)
		wantID    int64
		wantKind  library.Kind
	}{
		{
			name: "appends at next position",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery("SELECT id FROM books WHERE id").
					WithArgs(int64(7)).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
				mock.ExpectQuery("SELECT COALESCE").
					WithArgs(int64(7)).
					WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(2))
				mock.ExpectQuery("INSERT INTO lessons").
					WithArgs(int64(7), "Intro", "file-1", "intro.mp3", 2).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(31)))
				mock.ExpectCommit()
			},
			wantID: 31,
		},
		{
			name: "unknown book",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery("SELECT id FROM books WHERE id").
					WithArgs(int64(7)).
					WillReturnError(sql.ErrNoRows)
				mock.ExpectRollback()
			},
			wantKind: library.KindNotFound,
		},
		{
			name: "foreign key race maps to not found",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery("SELECT id FROM books WHERE id").
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
				mock.ExpectQuery("SELECT COALESCE").
					WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0))
				mock.ExpectQuery("INSERT INTO lessons").
					WillReturnError(&pq.Error{Code: pqForeignKeyViolation})
				mock.ExpectRollback()
			},
			wantKind: library.KindNotFound,
		},
		{
			name: "insert failure is a storage error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery("SELECT id FROM books WHERE id").
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
				mock.ExpectQuery("SELECT COALESCE").
					WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0))
				mock.ExpectQuery("INSERT INTO lessons").
					WillReturnError(errors.New("connection reset"))
				mock.ExpectRollback()
			},
			wantKind: library.KindStorage,
		},
		{
			name: "begin failure",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))
			},
			wantKind: library.KindStorage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, s := setupMockStore(t)
			tt.setupMock(mock)

			id, err := s.AddLesson(context.Background(), library.NewLesson{
				BookID: 7, Title: "Intro", FileID: "file-1", FileName: "intro.mp3",
			})
			if tt.wantKind != 0 {
				if library.KindOf(err) != tt.wantKind {
					t.Fatalf("AddLesson() error = %v, want kind %v", err, tt.wantKind)
				}
			} else {
				if err != nil {
					t.Fatalf("AddLesson() unexpected error: %v", err)
				}
				if id != tt.wantID {
					t.Fatalf("AddLesson() id = %d, want %d", id, tt.wantID)
				}
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestPostgresStore_AddBook(t *testing.T) {
	mock, s := setupMockStore(t)
	mock.ExpectQuery("INSERT INTO books").
		WithArgs("Tafsir", "", "General", int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))

	id, err := s.AddBook(context.Background(), library.NewBook{
		Title: "  Tafsir ", Category: "General", CreatedBy: 42,
	})
	if err != nil {
		t.Fatalf("AddBook() error: %v", err)
	}
	if id != 3 {
		t.Fatalf("AddBook() id = %d, want 3", id)
	}

	if _, err := s.AddBook(context.Background(), library.NewBook{Title: "   "}); !errors.Is(err, library.ErrValidation) {
		t.Fatalf("AddBook(blank) error = %v, want validation", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresStore_AddBookUnknownCreator(t *testing.T) {
	mock, s := setupMockStore(t)
	mock.ExpectQuery("INSERT INTO books").
		WithArgs("Tafsir", "", "", int64(404)).
		WillReturnError(&pq.Error{Code: pqForeignKeyViolation})

	_, err := s.AddBook(context.Background(), library.NewBook{Title: "Tafsir", CreatedBy: 404})
	if !errors.Is(err, library.ErrNotFound) {
		t.Fatalf("AddBook() error = %v, want not found", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresStore_IsAdmin(t *testing.T) {
	mock, s := setupMockStore(t)
	mock.ExpectQuery("SELECT is_admin FROM users").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"is_admin"}).AddRow(true))
	mock.ExpectQuery("SELECT is_admin FROM users").
		WithArgs(int64(2)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT is_admin FROM users").
		WithArgs(int64(3)).
		WillReturnError(errors.New("timeout"))

	if ok, err := s.IsAdmin(context.Background(), 1); err != nil || !ok {
		t.Fatalf("IsAdmin(1) = %v, %v", ok, err)
	}
	if ok, err := s.IsAdmin(context.Background(), 2); err != nil || ok {
		t.Fatalf("IsAdmin(absent) = %v, %v", ok, err)
	}
	if _, err := s.IsAdmin(context.Background(), 3); !errors.Is(err, library.ErrStorage) {
		t.Fatalf("IsAdmin(3) error = %v, want storage", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresStore_AddOrUpdateUser(t *testing.T) {
	mock, s := setupMockStore(t)
	mock.ExpectExec("INSERT INTO users").
		WithArgs(int64(9), "alice", "Alice", "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.AddOrUpdateUser(context.Background(), library.Profile{ID: 9, Username: "alice", FirstName: "Alice"})
	if err != nil {
		t.Fatalf("AddOrUpdateUser() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresStore_GetAllBooks(t *testing.T) {
	mock, s := setupMockStore(t)
	mock.ExpectQuery("SELECT b.id, b.title, COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "lesson_count"}).
			AddRow(int64(1), "Fiqh", 3).
			AddRow(int64(2), "Seerah", 0))

	books, err := s.GetAllBooks(context.Background())
	if err != nil {
		t.Fatalf("GetAllBooks() error: %v", err)
	}
	if len(books) != 2 || books[0].LessonCount != 3 || books[1].Title != "Seerah" {
		t.Fatalf("GetAllBooks() = %+v", books)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresStore_GetBookByID(t *testing.T) {
	mock, s := setupMockStore(t)
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT id, title, description, category, created_by, created_at FROM books").
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "description", "category", "created_by", "created_at"}).
			AddRow(int64(4), "Aqeedah", "", "General", int64(42), created))
	mock.ExpectQuery("SELECT id, title, description, category, created_by, created_at FROM books").
		WithArgs(int64(5)).
		WillReturnError(sql.ErrNoRows)

	b, err := s.GetBookByID(context.Background(), 4)
	if err != nil {
		t.Fatalf("GetBookByID(4) error: %v", err)
	}
	if b.Title != "Aqeedah" || !b.CreatedAt.Equal(created) {
		t.Fatalf("GetBookByID(4) = %+v", b)
	}
	if _, err := s.GetBookByID(context.Background(), 5); !errors.Is(err, library.ErrNotFound) {
		t.Fatalf("GetBookByID(5) error = %v, want not found", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresStore_GetLesson(t *testing.T) {
	mock, s := setupMockStore(t)
	cols := []string{"id", "book_id", "title", "file_id", "file_name", "position"}
	mock.ExpectQuery("SELECT id, book_id, title, file_id, file_name, position FROM lessons WHERE id").
		WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(11), int64(2), "Part 1", "f-11", "p1.mp3", 0))
	mock.ExpectQuery("SELECT id, book_id, title, file_id, file_name, position FROM lessons WHERE book_id").
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(int64(11), int64(2), "Part 1", "f-11", "p1.mp3", 0).
			AddRow(int64(12), int64(2), "Part 2", "f-12", "", 1))

	l, err := s.GetLesson(context.Background(), 11)
	if err != nil {
		t.Fatalf("GetLesson() error: %v", err)
	}
	if l.BookID != 2 || l.FileID != "f-11" {
		t.Fatalf("GetLesson() = %+v", l)
	}
	lessons, err := s.GetLessonsByBook(context.Background(), 2)
	if err != nil {
		t.Fatalf("GetLessonsByBook() error: %v", err)
	}
	if len(lessons) != 2 || lessons[1].Position != 1 {
		t.Fatalf("GetLessonsByBook() = %+v", lessons)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresStore_Stats(t *testing.T) {
	mock, s := setupMockStore(t)
	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"books", "lessons", "users"}).AddRow(2, 9, 40))

	st, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if st != (library.Stats{Books: 2, Lessons: 9, Users: 40}) {
		t.Fatalf("Stats() = %+v", st)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
