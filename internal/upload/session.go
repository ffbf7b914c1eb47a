// Package upload drives the multi-step upload conversation that turns an
// admin's messages into a book with ordered lessons.
package upload

import (
	"time"

	"github.com/m3rciful/lessonbot/internal/library"
)

// Step names a session state for logs and metrics.
type Step string

const (
	StepBookName   Step = "awaiting_book_name"
	StepAudio      Step = "awaiting_audio"
	StepLessonName Step = "awaiting_lesson_name"
)

// Media is an inbound audio or voice attachment.
type Media struct {
	FileID   string
	FileName string
	Voice    bool
}

// phase is the tagged state of a session. Only awaitingLessonName carries
// pending media.
type phase interface {
	step() Step
}

type awaitingBookName struct{}

type awaitingAudio struct{}

type awaitingLessonName struct {
	media Media
}

func (awaitingBookName) step() Step   { return StepBookName }
func (awaitingAudio) step() Step      { return StepAudio }
func (awaitingLessonName) step() Step { return StepLessonName }

// Session is the per-user upload state held between messages.
type Session struct {
	ID        string
	CreatorID int64
	Book      library.NewBook
	// BookID is zero until the first lesson title commits the book.
	BookID    int64
	Lessons   int
	StartedAt time.Time

	phase phase
}

// Step reports the current state.
func (s Session) Step() Step {
	if s.phase == nil {
		return StepBookName
	}
	return s.phase.step()
}

// Pending returns the media awaiting a lesson title, if any.
func (s Session) Pending() (Media, bool) {
	p, ok := s.phase.(awaitingLessonName)
	return p.media, ok
}
