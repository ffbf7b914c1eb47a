package upload

// ReplyKind selects the message the transport renders for a machine step.
type ReplyKind int

const (
	// ReplyNone means the event was ignored and nothing is sent.
	ReplyNone ReplyKind = iota
	ReplyDenied
	ReplyAskBookName
	ReplyEmptyTitle
	ReplyAskAudio
	ReplyAskLessonName
	ReplyLessonSaved
	ReplyFinished
	ReplyNoLessons
	ReplyCancelled
	ReplyNoUpload
	ReplyFailed
)

var replyNames = map[ReplyKind]string{
	ReplyNone:          "none",
	ReplyDenied:        "denied",
	ReplyAskBookName:   "ask_book_name",
	ReplyEmptyTitle:    "empty_title",
	ReplyAskAudio:      "ask_audio",
	ReplyAskLessonName: "ask_lesson_name",
	ReplyLessonSaved:   "lesson_saved",
	ReplyFinished:      "finished",
	ReplyNoLessons:     "no_lessons",
	ReplyCancelled:     "cancelled",
	ReplyNoUpload:      "no_upload",
	ReplyFailed:        "failed",
}

func (k ReplyKind) String() string {
	if s, ok := replyNames[k]; ok {
		return s
	}
	return "unknown"
}

// Reply is the outbound instruction produced by a machine operation.
type Reply struct {
	Kind        ReplyKind
	Step        Step
	BookTitle   string
	BookID      int64
	LessonTitle string
	FileName    string
	Voice       bool
	Lessons     int
	// Replaced is set when Start discarded a previous session.
	Replaced bool
}
