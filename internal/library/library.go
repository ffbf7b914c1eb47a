// Package library defines the content model of the audio lesson library:
// users, books, and the ordered lessons each book owns.
package library

import (
	"context"
	"time"
)

// User is a Telegram account known to the bot.
type User struct {
	ID        int64     `db:"id"`
	Username  string    `db:"username"`
	FirstName string    `db:"first_name"`
	LastName  string    `db:"last_name"`
	IsAdmin   bool      `db:"is_admin"`
	LastSeen  time.Time `db:"last_seen"`
}

// Profile carries the display fields refreshed on every inbound update.
type Profile struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// Book is a named collection of ordered lessons.
type Book struct {
	ID          int64     `db:"id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	Category    string    `db:"category"`
	CreatedBy   int64     `db:"created_by"`
	CreatedAt   time.Time `db:"created_at"`
}

// NewBook holds the fields supplied when a book is created.
type NewBook struct {
	Title       string
	Description string
	Category    string
	CreatedBy   int64
}

// BookSummary is a book row with its lesson count computed at query time.
type BookSummary struct {
	ID          int64  `db:"id"`
	Title       string `db:"title"`
	LessonCount int    `db:"lesson_count"`
}

// Lesson is one audio unit belonging to exactly one book.
type Lesson struct {
	ID       int64  `db:"id"`
	BookID   int64  `db:"book_id"`
	Title    string `db:"title"`
	FileID   string `db:"file_id"`
	FileName string `db:"file_name"`
	Position int    `db:"position"`
}

// NewLesson holds the fields supplied when a lesson is appended to a book.
type NewLesson struct {
	BookID   int64
	Title    string
	FileID   string
	FileName string
}

// Stats aggregates library totals.
type Stats struct {
	Books   int `db:"books"`
	Lessons int `db:"lessons"`
	Users   int `db:"users"`
}

// Store is the durable repository behind the bot. Implementations report
// failures as *Error values (see errors.go).
type Store interface {
	AddOrUpdateUser(ctx context.Context, p Profile) error
	IsAdmin(ctx context.Context, userID int64) (bool, error)
	SetAdmin(ctx context.Context, userID int64, admin bool) error

	AddBook(ctx context.Context, b NewBook) (int64, error)
	// AddLesson appends a lesson at the next free position of its book.
	AddLesson(ctx context.Context, l NewLesson) (int64, error)

	GetAllBooks(ctx context.Context) ([]BookSummary, error)
	GetBookByID(ctx context.Context, id int64) (Book, error)
	GetLessonsByBook(ctx context.Context, bookID int64) ([]Lesson, error)
	GetLesson(ctx context.Context, id int64) (Lesson, error)
	Stats(ctx context.Context) (Stats, error)
}
