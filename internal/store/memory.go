package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/m3rciful/lessonbot/internal/library"
)

// MemoryStore keeps the library in process memory. It backs the "memory"
// database driver and the package tests of the upload and browse layers.
type MemoryStore struct {
	mu         sync.RWMutex
	now        func() time.Time
	users      map[int64]library.User
	books      map[int64]library.Book
	lessons    map[int64]library.Lesson
	byBook     map[int64][]int64
	nextBook   int64
	nextLesson int64
}

// NewMemoryStore creates an empty in-memory library.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:     time.Now,
		users:   make(map[int64]library.User),
		books:   make(map[int64]library.Book),
		lessons: make(map[int64]library.Lesson),
		byBook:  make(map[int64][]int64),
	}
}

func (s *MemoryStore) AddOrUpdateUser(_ context.Context, p library.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[p.ID]
	u.ID = p.ID
	u.Username = p.Username
	u.FirstName = p.FirstName
	u.LastName = p.LastName
	u.LastSeen = s.now()
	s.users[p.ID] = u
	return nil
}

func (s *MemoryStore) IsAdmin(_ context.Context, userID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users[userID].IsAdmin, nil
}

// SetAdmin flips the admin flag, creating a bare user row when needed.
func (s *MemoryStore) SetAdmin(_ context.Context, userID int64, admin bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		u = library.User{ID: userID, LastSeen: s.now()}
	}
	u.IsAdmin = admin
	s.users[userID] = u
	return nil
}

func (s *MemoryStore) AddBook(_ context.Context, b library.NewBook) (int64, error) {
	title := strings.TrimSpace(b.Title)
	if title == "" {
		return 0, library.Validation("AddBook", "empty title")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextBook++
	id := s.nextBook
	s.books[id] = library.Book{
		ID:          id,
		Title:       title,
		Description: b.Description,
		Category:    b.Category,
		CreatedBy:   b.CreatedBy,
		CreatedAt:   s.now(),
	}
	return id, nil
}

func (s *MemoryStore) AddLesson(_ context.Context, l library.NewLesson) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.books[l.BookID]; !ok {
		return 0, library.NotFound("AddLesson", fmt.Sprintf("book %d", l.BookID))
	}
	s.nextLesson++
	id := s.nextLesson
	s.lessons[id] = library.Lesson{
		ID:       id,
		BookID:   l.BookID,
		Title:    l.Title,
		FileID:   l.FileID,
		FileName: l.FileName,
		Position: len(s.byBook[l.BookID]),
	}
	s.byBook[l.BookID] = append(s.byBook[l.BookID], id)
	return id, nil
}

func (s *MemoryStore) GetAllBooks(_ context.Context) ([]library.BookSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]library.BookSummary, 0, len(s.books))
	for id, b := range s.books {
		out = append(out, library.BookSummary{ID: id, Title: b.Title, LessonCount: len(s.byBook[id])})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetBookByID(_ context.Context, id int64) (library.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.books[id]
	if !ok {
		return library.Book{}, library.NotFound("GetBookByID", fmt.Sprintf("book %d", id))
	}
	return b, nil
}

func (s *MemoryStore) GetLessonsByBook(_ context.Context, bookID int64) ([]library.Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byBook[bookID]
	out := make([]library.Lesson, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.lessons[id])
	}
	return out, nil
}

func (s *MemoryStore) GetLesson(_ context.Context, id int64) (library.Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lessons[id]
	if !ok {
		return library.Lesson{}, library.NotFound("GetLesson", fmt.Sprintf("lesson %d", id))
	}
	return l, nil
}

func (s *MemoryStore) Stats(_ context.Context) (library.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return library.Stats{Books: len(s.books), Lessons: len(s.lessons), Users: len(s.users)}, nil
}

var _ library.Store = (*MemoryStore)(nil)
