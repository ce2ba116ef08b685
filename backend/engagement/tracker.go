// Package engagement decides when a reader has spent long enough on a lesson
// for the visit to count as a view.
package engagement

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	WordsPerMinute = 200
	MinDwell       = 15 * time.Second
	dwellFraction  = 0.7
)

// ReadingTimeMinutes estimates reading time at 200 words per minute, never
// less than one minute.
func ReadingTimeMinutes(text string) int {
	words := len(strings.Fields(text))
	minutes := (words + WordsPerMinute - 1) / WordsPerMinute
	if minutes < 1 {
		return 1
	}
	return minutes
}

// Threshold is the foreground time after which a view is recorded:
// 70% of the reading time, but at least 15 seconds.
func Threshold(readingMinutes int) time.Duration {
	ms := math.Round(float64(readingMinutes) * dwellFraction * 60000)
	d := time.Duration(ms) * time.Millisecond
	if d < MinDwell {
		return MinDwell
	}
	return d
}

type State int

const (
	Idle State = iota
	Accumulating
	Paused
	Recorded
)

func (s State) String() string {
	switch s {
	case Accumulating:
		return "accumulating"
	case Paused:
		return "paused"
	case Recorded:
		return "recorded"
	default:
		return "idle"
	}
}

// Recorder sends the view to the backend. *client.Client implements it.
type Recorder interface {
	RecordView(ctx context.Context, lessonID uint) (int, error)
}

type Option func(*Tracker)

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func WithLogger(log *zap.Logger) Option {
	return func(t *Tracker) {
		if log != nil {
			t.log = log
		}
	}
}

// Tracker is the engagement session of one open lesson page. Foreground time
// accrues only between Visible and Hidden; once the accrued time reaches the
// threshold a single RecordView call is made and the session latches into
// Recorded for good.
type Tracker struct {
	mu       sync.Mutex
	recorder Recorder
	now      func() time.Time
	log      *zap.Logger

	lessonID      uint
	threshold     time.Duration
	loaded        bool
	authenticated bool

	state        State
	elapsed      time.Duration
	visibleSince time.Time
	foreground   bool

	// wake tells Run to re-arm its timer after eligibility changed.
	wake chan struct{}
}

func NewTracker(recorder Recorder, opts ...Option) *Tracker {
	t := &Tracker{
		recorder: recorder,
		now:      time.Now,
		log:      zap.NewNop(),
		wake:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Reset starts a new session for lessonID. Navigating to another lesson
// discards the accumulator, the latch and the reading time. A page that is
// in the foreground keeps accumulating from the moment of the reset.
func (t *Tracker) Reset(lessonID uint) {
	t.mu.Lock()
	t.lessonID = lessonID
	t.threshold = 0
	t.loaded = false
	t.elapsed = 0
	if t.foreground {
		t.state = Accumulating
		t.visibleSince = t.now()
	} else {
		t.state = Idle
		t.visibleSince = time.Time{}
	}
	t.mu.Unlock()
	t.poke()
}

// SetReadingTime marks the lesson as loaded. Until it is called nothing fires.
func (t *Tracker) SetReadingTime(minutes int) {
	if minutes < 1 {
		minutes = 1
	}
	t.mu.Lock()
	t.threshold = Threshold(minutes)
	t.loaded = true
	t.mu.Unlock()
	t.poke()
}

func (t *Tracker) SetAuthenticated(ok bool) {
	t.mu.Lock()
	t.authenticated = ok
	t.mu.Unlock()
	t.poke()
}

func (t *Tracker) poke() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Tracker) Threshold() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.threshold
}

// Elapsed is the foreground time accrued so far, including the running interval.
func (t *Tracker) Elapsed(now time.Time) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalLocked(now)
}

// Visible records a hidden→visible transition and restarts the interval clock.
// Repeated Visible calls without a Hidden in between are ignored so an
// interval is never counted twice.
func (t *Tracker) Visible(ctx context.Context, now time.Time) bool {
	t.mu.Lock()
	t.foreground = true
	switch t.state {
	case Recorded, Accumulating:
		t.mu.Unlock()
		return false
	}
	t.state = Accumulating
	t.visibleSince = now
	t.mu.Unlock()
	return t.Check(ctx, now)
}

// Hidden flushes the running interval into the accumulator.
func (t *Tracker) Hidden(ctx context.Context, now time.Time) bool {
	t.mu.Lock()
	t.foreground = false
	if t.state != Accumulating {
		t.mu.Unlock()
		return false
	}
	if now.After(t.visibleSince) {
		t.elapsed += now.Sub(t.visibleSince)
	}
	t.visibleSince = time.Time{}
	t.state = Paused
	t.mu.Unlock()
	return t.Check(ctx, now)
}

// Check fires the view if the threshold has been reached. It reports whether
// this call fired.
func (t *Tracker) Check(ctx context.Context, now time.Time) bool {
	t.mu.Lock()
	if !t.eligibleLocked() || t.totalLocked(now) < t.threshold {
		t.mu.Unlock()
		return false
	}
	if t.state == Accumulating {
		t.elapsed = t.totalLocked(now)
		t.visibleSince = time.Time{}
	}
	// Latch before the call: a failed recording is not retried.
	t.state = Recorded
	lessonID := t.lessonID
	t.mu.Unlock()

	if _, err := t.recorder.RecordView(ctx, lessonID); err != nil {
		t.log.Debug("view recording failed", zap.Uint("lesson_id", lessonID), zap.Error(err))
	}
	return true
}

// Remaining is the foreground time still needed while the page is visible.
// ok is false when no timer should be armed.
func (t *Tracker) Remaining(now time.Time) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Accumulating || !t.eligibleLocked() {
		return 0, false
	}
	left := t.threshold - t.totalLocked(now)
	if left < 0 {
		left = 0
	}
	return left, true
}

func (t *Tracker) eligibleLocked() bool {
	return t.state != Recorded && t.authenticated && t.loaded && t.lessonID != 0 && t.recorder != nil
}

func (t *Tracker) totalLocked(now time.Time) time.Duration {
	total := t.elapsed
	if t.state == Accumulating && now.After(t.visibleSince) {
		total += now.Sub(t.visibleSince)
	}
	return total
}

// Event is a document visibility change.
type Event struct {
	Visible bool
	At      time.Time
}

// Run drives the tracker from visibility events, arming one timer for the
// dwell still missing while the page is visible. The timer is re-armed when
// Reset, SetReadingTime or SetAuthenticated change eligibility. It returns
// when ctx is done or events is closed.
func (t *Tracker) Run(ctx context.Context, events <-chan Event) {
	var timer *time.Timer
	var fire <-chan time.Time
	arm := func() {
		if timer != nil {
			timer.Stop()
			timer, fire = nil, nil
		}
		if d, ok := t.Remaining(t.now()); ok {
			timer = time.NewTimer(d)
			fire = timer.C
		}
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	arm()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Visible {
				t.Visible(ctx, ev.At)
			} else {
				t.Hidden(ctx, ev.At)
			}
			arm()
		case <-fire:
			t.Check(ctx, t.now())
			arm()
		case <-t.wake:
			arm()
		}
	}
}
