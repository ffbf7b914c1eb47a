// Package browse renders the library into navigable menus: the book list,
// a book's lessons, lesson delivery and title search.
package browse

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"github.com/m3rciful/lessonbot/core/logger"
	"github.com/m3rciful/lessonbot/internal/library"
)

// Action names a menu button's target.
type Action string

const (
	ActionBook   Action = "book"
	ActionLesson Action = "lesson"
	ActionBack   Action = "back"
)

// Notice distinguishes informational menus from regular listings.
type Notice int

const (
	NoticeNone Notice = iota
	NoticeNoBooks
	NoticeUsage
	NoticeNoResults
	NoticeBookNotFound
	NoticeNoLessons
	NoticeLessonNotFound
)

// Item is one selectable menu entry.
type Item struct {
	Label   string
	Action  Action
	Payload string
}

// Menu is a transport-agnostic screen: a header plus selectable items.
type Menu struct {
	Notice Notice
	// Title is the book title or the search query the menu was built for.
	Title  string
	// BookID is set on a book's lesson listing.
	BookID int64
	Items  []Item
}

// Delivery describes a lesson's audio to send.
type Delivery struct {
	FileID    string
	FileName  string
	Title     string
	BookTitle string
	Position  int
}

// Presenter turns store queries into menus.
type Presenter struct {
	store library.Store
}

// New builds a presenter over store.
func New(store library.Store) *Presenter {
	return &Presenter{store: store}
}

func bookItem(b library.BookSummary) Item {
	return Item{
		Label:   fmt.Sprintf("%s (%d %s)", b.Title, b.LessonCount, plural(b.LessonCount, "lesson", "lessons")),
		Action:  ActionBook,
		Payload: strconv.FormatInt(b.ID, 10),
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// ListBooks renders every book with its lesson count.
func (p *Presenter) ListBooks(ctx context.Context) (Menu, error) {
	books, err := p.store.GetAllBooks(ctx)
	if err != nil {
		return Menu{}, err
	}
	if len(books) == 0 {
		return Menu{Notice: NoticeNoBooks}, nil
	}
	items := make([]Item, 0, len(books))
	for _, b := range books {
		items = append(items, bookItem(b))
	}
	return Menu{Items: items}, nil
}

// NavigateBack re-renders the book list.
func (p *Presenter) NavigateBack(ctx context.Context) (Menu, error) {
	return p.ListBooks(ctx)
}

// SearchBooks matches query against book titles, ignoring case.
func (p *Presenter) SearchBooks(ctx context.Context, query string) (Menu, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Menu{Notice: NoticeUsage}, library.Validation("SearchBooks", "empty query")
	}
	books, err := p.store.GetAllBooks(ctx)
	if err != nil {
		return Menu{}, err
	}
	// Casers are stateful; one per call.
	fold := cases.Fold()
	needle := fold.String(query)
	var items []Item
	for _, b := range books {
		if strings.Contains(fold.String(b.Title), needle) {
			items = append(items, bookItem(b))
		}
	}
	logger.Debug(ctx, logger.CompLibrary, "browse.search",
		slog.String("query", logger.SanitizeLimit(query, 64)),
		slog.Int("results", len(items)),
	)
	if len(items) == 0 {
		return Menu{Notice: NoticeNoResults, Title: query}, nil
	}
	return Menu{Title: query, Items: items}, nil
}

// SelectBook lists a book's lessons in position order, followed by a back entry.
func (p *Presenter) SelectBook(ctx context.Context, bookID int64) (Menu, error) {
	book, err := p.store.GetBookByID(ctx, bookID)
	if library.KindOf(err) == library.KindNotFound {
		return Menu{Notice: NoticeBookNotFound}, nil
	}
	if err != nil {
		return Menu{}, err
	}
	lessons, err := p.store.GetLessonsByBook(ctx, bookID)
	if err != nil {
		return Menu{}, err
	}
	back := Item{Label: "Back to books", Action: ActionBack}
	if len(lessons) == 0 {
		return Menu{Notice: NoticeNoLessons, Title: book.Title, BookID: book.ID, Items: []Item{back}}, nil
	}
	items := make([]Item, 0, len(lessons)+1)
	for i, l := range lessons {
		items = append(items, Item{
			Label:   fmt.Sprintf("%d. %s", i+1, l.Title),
			Action:  ActionLesson,
			Payload: strconv.FormatInt(l.ID, 10),
		})
	}
	items = append(items, back)
	return Menu{Title: book.Title, BookID: book.ID, Items: items}, nil
}

// SelectLesson looks a lesson up by its own id, independent of any open book.
func (p *Presenter) SelectLesson(ctx context.Context, lessonID int64) (Delivery, Notice, error) {
	lesson, err := p.store.GetLesson(ctx, lessonID)
	if library.KindOf(err) == library.KindNotFound {
		return Delivery{}, NoticeLessonNotFound, nil
	}
	if err != nil {
		return Delivery{}, NoticeNone, err
	}
	book, err := p.store.GetBookByID(ctx, lesson.BookID)
	if library.KindOf(err) == library.KindNotFound {
		return Delivery{}, NoticeLessonNotFound, nil
	}
	if err != nil {
		return Delivery{}, NoticeNone, err
	}
	return Delivery{
		FileID:    lesson.FileID,
		FileName:  lesson.FileName,
		Title:     lesson.Title,
		BookTitle: book.Title,
		Position:  lesson.Position,
	}, NoticeNone, nil
}

// Stats returns library totals.
func (p *Presenter) Stats(ctx context.Context) (library.Stats, error) {
	return p.store.Stats(ctx)
}

// ParseID decodes a numeric callback payload.
func ParseID(payload string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(payload), 10, 64)
	if err != nil || id <= 0 {
		return 0, library.Validation("ParseID", fmt.Sprintf("bad id %q", payload))
	}
	return id, nil
}
