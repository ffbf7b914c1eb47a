package upload

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/lessonbot/core/logger"
	"github.com/m3rciful/lessonbot/core/telegram/state"
	"github.com/m3rciful/lessonbot/internal/library"
)

const (
	defaultAudioName = "audio file"
	defaultVoiceName = "voice note"
)

// Session end outcomes reported to the Observer.
const (
	OutcomeFinished  = "finished"
	OutcomeEmpty     = "empty"
	OutcomeCancelled = "cancelled"
	OutcomeReplaced  = "replaced"
	OutcomeExpired   = "expired"
)

// Observer receives lifecycle notifications, typically for metrics.
type Observer interface {
	SessionStarted()
	BookCreated()
	LessonCommitted()
	SessionEnded(outcome string, lessons int)
	StorageFailed(op string)
}

type nopObserver struct{}

func (nopObserver) SessionStarted()          {}
func (nopObserver) BookCreated()             {}
func (nopObserver) LessonCommitted()         {}
func (nopObserver) SessionEnded(string, int) {}
func (nopObserver) StorageFailed(string)     {}

// Config tunes the machine.
type Config struct {
	IdleTimeout     time.Duration
	SweepInterval   time.Duration
	DefaultCategory string
	Now             func() time.Time
}

// Machine is the upload state machine. Each operation maps one inbound event
// to a Reply; the caller renders it.
type Machine struct {
	store    library.Store
	sessions *state.Sessions[Session]
	observer Observer
	category string
	sweep    time.Duration
	now      func() time.Time
	newID    func() string
}

// New builds a machine over store. A nil observer is allowed.
func New(store library.Store, cfg Config, obs Observer) *Machine {
	if obs == nil {
		obs = nopObserver{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	m := &Machine{
		store:    store,
		observer: obs,
		category: cfg.DefaultCategory,
		sweep:    cfg.SweepInterval,
		now:      now,
		newID:    func() string { return uuid.NewString() },
	}
	m.sessions = state.NewSessions(state.Options[Session]{
		IdleTimeout: cfg.IdleTimeout,
		Now:         now,
		OnExpire:    m.expired,
	})
	return m
}

func (m *Machine) expired(userID int64, s Session) {
	ctx := logger.WithSession(context.Background(), s.ID)
	logger.Info(ctx, logger.CompUpload, "upload.expired",
		slog.Int64("user_id", userID),
		slog.String("step", string(s.Step())),
		slog.Int("lessons", s.Lessons),
	)
	m.observer.SessionEnded(OutcomeExpired, s.Lessons)
}

// Start opens a session for an admin, replacing any session already open.
func (m *Machine) Start(ctx context.Context, userID int64) (Reply, error) {
	admin, err := m.store.IsAdmin(ctx, userID)
	if err != nil {
		m.observer.StorageFailed("IsAdmin")
		logger.Error(ctx, logger.CompUpload, "upload.start", slog.String("status", "fail"), logger.Err(err))
		return Reply{Kind: ReplyFailed}, err
	}
	if !admin {
		logger.Info(ctx, logger.CompUpload, "upload.start", slog.String("status", "denied"))
		return Reply{Kind: ReplyDenied}, library.Permission("upload.Start")
	}

	var (
		replaced Session
		hadPrev  bool
	)
	next := Session{
		ID:        m.newID(),
		CreatorID: userID,
		Book:      library.NewBook{Category: m.category, CreatedBy: userID},
		StartedAt: m.now(),
		phase:     awaitingBookName{},
	}
	_ = m.sessions.Update(userID, func(cur *Session) (*Session, error) {
		if cur != nil {
			replaced, hadPrev = *cur, true
		}
		return &next, nil
	})

	if hadPrev {
		m.observer.SessionEnded(OutcomeReplaced, replaced.Lessons)
	}
	m.observer.SessionStarted()
	logger.Info(logger.WithSession(ctx, next.ID), logger.CompUpload, "upload.start",
		slog.String("status", "ok"),
		slog.Bool("replaced", hadPrev),
	)
	return Reply{Kind: ReplyAskBookName, Step: StepBookName, Replaced: hadPrev}, nil
}

// Text handles a plain text message: the book title or a lesson title,
// depending on the step.
func (m *Machine) Text(ctx context.Context, userID int64, text string) (Reply, error) {
	var reply Reply
	err := m.sessions.Update(userID, func(cur *Session) (*Session, error) {
		if cur == nil {
			return nil, nil
		}
		ctx := logger.WithSession(ctx, cur.ID)
		title := strings.TrimSpace(text)

		switch p := cur.phase.(type) {
		case awaitingBookName:
			if title == "" {
				reply = Reply{Kind: ReplyEmptyTitle, Step: StepBookName}
				return cur, nil
			}
			cur.Book.Title = title
			cur.phase = awaitingAudio{}
			reply = Reply{Kind: ReplyAskAudio, Step: StepAudio, BookTitle: title}
			logger.Debug(ctx, logger.CompUpload, "upload.book_named", slog.String("title", logger.SanitizeLimit(title, 64)))
			return cur, nil

		case awaitingLessonName:
			if title == "" {
				reply = Reply{Kind: ReplyEmptyTitle, Step: StepLessonName}
				return cur, nil
			}
			var err error
			reply, err = m.commit(ctx, cur, p.media, title)
			return cur, err
		}

		logger.Debug(ctx, logger.CompUpload, "upload.ignored",
			slog.String("step", string(cur.Step())),
			slog.String("input", "text"),
		)
		return cur, nil
	})
	return reply, err
}

// commit writes the pending lesson, creating the book first if needed. cur is
// mutated in place; on failure only a newly committed BookID survives.
func (m *Machine) commit(ctx context.Context, cur *Session, media Media, title string) (Reply, error) {
	start := time.Now()
	if cur.BookID == 0 {
		id, err := m.store.AddBook(ctx, cur.Book)
		if err != nil {
			m.observer.StorageFailed("AddBook")
			logger.Error(ctx, logger.CompUpload, "upload.book_commit", slog.String("status", "fail"), logger.Err(err))
			return Reply{Kind: ReplyFailed, Step: StepLessonName}, err
		}
		cur.BookID = id
		m.observer.BookCreated()
		logger.Info(ctx, logger.CompUpload, "upload.book_commit",
			slog.String("status", "ok"),
			slog.Int64("book_id", id),
		)
	}

	ctx = logger.WithBook(ctx, cur.BookID)

	lessonID, err := m.store.AddLesson(ctx, library.NewLesson{
		BookID:   cur.BookID,
		Title:    title,
		FileID:   media.FileID,
		FileName: media.FileName,
	})
	if err != nil {
		m.observer.StorageFailed("AddLesson")
		logger.Error(ctx, logger.CompUpload, "upload.lesson_commit",
			slog.String("status", "fail"),
			logger.Err(err),
		)
		return Reply{Kind: ReplyFailed, Step: StepLessonName}, err
	}

	cur.Lessons++
	cur.phase = awaitingAudio{}
	m.observer.LessonCommitted()
	logger.Info(ctx, logger.CompUpload, "upload.lesson_commit",
		slog.String("status", "ok"),
		slog.Int64("lesson_id", lessonID),
		slog.Int("lessons", cur.Lessons),
		slog.Duration("duration", logger.Took(start)),
	)
	return Reply{
		Kind:        ReplyLessonSaved,
		Step:        StepAudio,
		BookID:      cur.BookID,
		BookTitle:   cur.Book.Title,
		LessonTitle: title,
		Lessons:     cur.Lessons,
	}, nil
}

// Media handles an audio or voice attachment.
func (m *Machine) Media(ctx context.Context, userID int64, media Media) (Reply, error) {
	var reply Reply
	_ = m.sessions.Update(userID, func(cur *Session) (*Session, error) {
		if cur == nil {
			return nil, nil
		}
		ctx := logger.WithSession(ctx, cur.ID)
		if _, ok := cur.phase.(awaitingAudio); !ok {
			logger.Debug(ctx, logger.CompUpload, "upload.ignored",
				slog.String("step", string(cur.Step())),
				slog.String("input", "media"),
			)
			return cur, nil
		}
		if strings.TrimSpace(media.FileName) == "" {
			media.FileName = defaultAudioName
			if media.Voice {
				media.FileName = defaultVoiceName
			}
		}
		cur.phase = awaitingLessonName{media: media}
		reply = Reply{Kind: ReplyAskLessonName, Step: StepLessonName, FileName: media.FileName, Voice: media.Voice}
		logger.Debug(ctx, logger.CompUpload, "upload.media_received",
			slog.Bool("voice", media.Voice),
			slog.String("file_name", logger.SanitizeLimit(media.FileName, 64)),
		)
		return cur, nil
	})
	return reply, nil
}

// Finish closes the session and reports what was uploaded.
func (m *Machine) Finish(ctx context.Context, userID int64) (Reply, error) {
	var reply Reply
	_ = m.sessions.Update(userID, func(cur *Session) (*Session, error) {
		if cur == nil {
			reply = Reply{Kind: ReplyNoUpload}
			return nil, nil
		}
		outcome := OutcomeFinished
		reply = Reply{
			Kind:      ReplyFinished,
			BookID:    cur.BookID,
			BookTitle: cur.Book.Title,
			Lessons:   cur.Lessons,
		}
		if cur.Lessons == 0 {
			outcome = OutcomeEmpty
			reply = Reply{Kind: ReplyNoLessons, BookTitle: cur.Book.Title}
		}
		m.observer.SessionEnded(outcome, cur.Lessons)
		logger.Info(logger.WithSession(ctx, cur.ID), logger.CompUpload, "upload.finish",
			slog.String("outcome", outcome),
			slog.Int64("book_id", cur.BookID),
			slog.Int("lessons", cur.Lessons),
			slog.Duration("elapsed", m.now().Sub(cur.StartedAt)),
		)
		return nil, nil
	})
	return reply, nil
}

// Cancel drops the session. Lessons already committed stay in the store.
func (m *Machine) Cancel(ctx context.Context, userID int64) (Reply, error) {
	var reply Reply
	_ = m.sessions.Update(userID, func(cur *Session) (*Session, error) {
		if cur == nil {
			reply = Reply{Kind: ReplyNoUpload}
			return nil, nil
		}
		reply = Reply{Kind: ReplyCancelled, BookTitle: cur.Book.Title, Lessons: cur.Lessons}
		m.observer.SessionEnded(OutcomeCancelled, cur.Lessons)
		logger.Info(logger.WithSession(ctx, cur.ID), logger.CompUpload, "upload.cancel",
			slog.String("step", string(cur.Step())),
			slog.Int("lessons", cur.Lessons),
		)
		return nil, nil
	})
	return reply, nil
}

// InProgress reports whether userID has a live session.
func (m *Machine) InProgress(userID int64) bool {
	return m.sessions.Active(userID)
}

// Snapshot returns a copy of the user's session.
func (m *Machine) Snapshot(userID int64) (Session, bool) {
	return m.sessions.Peek(userID)
}

// SessionID returns the log identifier of the user's live session.
func (m *Machine) SessionID(userID int64) (string, bool) {
	s, ok := m.sessions.Peek(userID)
	if !ok {
		return "", false
	}
	return s.ID, true
}

// ActiveSessions counts stored sessions.
func (m *Machine) ActiveSessions() int {
	return m.sessions.Len()
}

// RunJanitor removes idle sessions until ctx is cancelled.
func (m *Machine) RunJanitor(ctx context.Context) error {
	return m.sessions.RunJanitor(ctx, m.sweep)
}
