package logger

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// eventSampler passes num out of every den occurrences of each event name,
// so a chatty event cannot crowd out rare ones.
type eventSampler struct {
	num, den uint64
	seen     sync.Map // event -> *atomic.Uint64
}

// newEventSampler returns nil, which allows everything, when num or den is not positive.
func newEventSampler(num, den int) *eventSampler {
	if num <= 0 || den <= 0 {
		return nil
	}
	return &eventSampler{num: uint64(min(num, den)), den: uint64(den)}
}

func (s *eventSampler) allow(event string) bool {
	if s == nil {
		return true
	}
	v, ok := s.seen.Load(event)
	if !ok {
		v, _ = s.seen.LoadOrStore(event, new(atomic.Uint64))
	}
	n := v.(*atomic.Uint64).Add(1) - 1
	return n%s.den < s.num
}

// parseSampleSpec accepts "num/den", "den" meaning 1/den, or "off". An empty
// spec selects the default of 1/50.
func parseSampleSpec(spec string) (num, den int, err error) {
	spec = strings.ToLower(strings.TrimSpace(spec))
	switch spec {
	case "":
		return 1, 50, nil
	case "off", "all", "0":
		return 0, 0, nil
	}
	n, d, found := strings.Cut(spec, "/")
	if !found {
		n, d = "1", spec
	}
	if num, err = strconv.Atoi(strings.TrimSpace(n)); err == nil {
		den, err = strconv.Atoi(strings.TrimSpace(d))
	}
	if err != nil || num <= 0 || den <= 0 {
		return 0, 0, fmt.Errorf("logger: invalid debug_sample %q", spec)
	}
	return num, den, nil
}
