package engagement

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecorder struct {
	mu    sync.Mutex
	calls []uint
	err   error
}

func (f *fakeRecorder) RecordView(_ context.Context, lessonID uint) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, lessonID)
	return len(f.calls), f.err
}

func (f *fakeRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newReadyTracker(rec Recorder, minutes int) *Tracker {
	tr := NewTracker(rec)
	tr.Reset(42)
	tr.SetAuthenticated(true)
	tr.SetReadingTime(minutes)
	return tr
}

func TestReadingTimeMinutes(t *testing.T) {
	assert.Equal(t, 1, ReadingTimeMinutes(""))
	assert.Equal(t, 1, ReadingTimeMinutes("just a few words"))
	assert.Equal(t, 1, ReadingTimeMinutes(strings.Repeat("word ", 200)))
	assert.Equal(t, 2, ReadingTimeMinutes(strings.Repeat("word ", 201)))
	assert.Equal(t, 5, ReadingTimeMinutes(strings.Repeat("word ", 1000)))
}

func TestThreshold(t *testing.T) {
	for r := 1; r <= 60; r++ {
		want := time.Duration(math.Round(float64(r)*0.7*60000)) * time.Millisecond
		if want < 15*time.Second {
			want = 15 * time.Second
		}
		assert.Equal(t, want, Threshold(r), "minutes=%d", r)
	}
	assert.Equal(t, 42*time.Second, Threshold(1))
	assert.Equal(t, 84*time.Second, Threshold(2))
	assert.Equal(t, 15*time.Second, Threshold(0))
}

func TestFiresOnceAcrossTwoVisibleIntervals(t *testing.T) {
	rec := &fakeRecorder{}
	tr := newReadyTracker(rec, 1) // 42s
	ctx := context.Background()
	t0 := time.Unix(1_700_000_000, 0)

	assert.False(t, tr.Visible(ctx, t0))
	assert.False(t, tr.Hidden(ctx, t0.Add(30*time.Second)))
	assert.Equal(t, Paused, tr.State())

	// time spent hidden does not count
	assert.False(t, tr.Check(ctx, t0.Add(5*time.Minute)))

	assert.False(t, tr.Visible(ctx, t0.Add(5*time.Minute)))
	assert.False(t, tr.Check(ctx, t0.Add(5*time.Minute+11*time.Second)))
	assert.True(t, tr.Check(ctx, t0.Add(5*time.Minute+12*time.Second)))
	assert.Equal(t, Recorded, tr.State())
	assert.Equal(t, 42*time.Second, tr.Elapsed(t0.Add(time.Hour)))

	// latched: nothing else fires for this session
	assert.False(t, tr.Check(ctx, t0.Add(time.Hour)))
	assert.False(t, tr.Hidden(ctx, t0.Add(time.Hour)))
	assert.False(t, tr.Visible(ctx, t0.Add(2*time.Hour)))
	assert.Equal(t, []uint{42}, rec.calls)
}

func TestFiresWhenHiddenExactlyAtThreshold(t *testing.T) {
	rec := &fakeRecorder{}
	tr := newReadyTracker(rec, 1)
	ctx := context.Background()
	t0 := time.Unix(0, 0)

	tr.Visible(ctx, t0)
	assert.True(t, tr.Hidden(ctx, t0.Add(42*time.Second)))
	assert.Equal(t, 1, rec.count())
}

func TestNeverFiresBelowThreshold(t *testing.T) {
	rec := &fakeRecorder{}
	tr := newReadyTracker(rec, 3) // 126s
	ctx := context.Background()
	t0 := time.Unix(0, 0)

	tr.Visible(ctx, t0)
	tr.Hidden(ctx, t0.Add(60*time.Second))
	tr.Visible(ctx, t0.Add(10*time.Minute))
	tr.Check(ctx, t0.Add(10*time.Minute+65*time.Second))

	tr.Reset(7) // navigated away
	assert.Equal(t, 0, rec.count())
	assert.Equal(t, Idle, tr.State())
	assert.Equal(t, time.Duration(0), tr.Elapsed(t0.Add(time.Hour)))
}

func TestRepeatedVisibleDoesNotDoubleCount(t *testing.T) {
	rec := &fakeRecorder{}
	tr := newReadyTracker(rec, 1)
	ctx := context.Background()
	t0 := time.Unix(0, 0)

	tr.Visible(ctx, t0)
	tr.Visible(ctx, t0.Add(20*time.Second))
	assert.Equal(t, 30*time.Second, tr.Elapsed(t0.Add(30*time.Second)))
}

func TestUnauthenticatedNeverFires(t *testing.T) {
	rec := &fakeRecorder{}
	tr := NewTracker(rec)
	tr.Reset(1)
	tr.SetReadingTime(1)
	ctx := context.Background()
	t0 := time.Unix(0, 0)

	tr.Visible(ctx, t0)
	assert.False(t, tr.Check(ctx, t0.Add(time.Hour)))
	_, armed := tr.Remaining(t0)
	assert.False(t, armed)
	assert.Equal(t, 0, rec.count())
}

func TestNotLoadedNeverFires(t *testing.T) {
	rec := &fakeRecorder{}
	tr := NewTracker(rec)
	tr.Reset(1)
	tr.SetAuthenticated(true)
	ctx := context.Background()
	t0 := time.Unix(0, 0)

	tr.Visible(ctx, t0)
	assert.False(t, tr.Check(ctx, t0.Add(time.Hour)))

	// once the lesson arrives the time already spent counts
	tr.SetReadingTime(1)
	assert.True(t, tr.Check(ctx, t0.Add(time.Hour)))
	assert.Equal(t, 1, rec.count())
}

func TestFailedRecordingStaysLatched(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("network down")}
	tr := newReadyTracker(rec, 1)
	ctx := context.Background()
	t0 := time.Unix(0, 0)

	tr.Visible(ctx, t0)
	assert.True(t, tr.Check(ctx, t0.Add(time.Minute)))
	assert.False(t, tr.Check(ctx, t0.Add(2*time.Minute)))
	assert.Equal(t, Recorded, tr.State())
	assert.Equal(t, 1, rec.count())
}

func TestResetToAnotherLessonStartsOver(t *testing.T) {
	rec := &fakeRecorder{}
	t0 := time.Unix(0, 0)
	now := t0
	tr := NewTracker(rec, WithClock(func() time.Time { return now }))
	tr.Reset(42)
	tr.SetAuthenticated(true)
	tr.SetReadingTime(1)
	ctx := context.Background()

	tr.Visible(ctx, t0)
	require.True(t, tr.Check(ctx, t0.Add(time.Minute)))

	// navigating while the page stays in the foreground
	now = t0.Add(2 * time.Minute)
	tr.Reset(43)
	assert.Equal(t, Accumulating, tr.State())
	assert.False(t, tr.Check(ctx, now.Add(time.Minute)), "not loaded yet")

	tr.SetReadingTime(1)
	assert.False(t, tr.Check(ctx, now.Add(41*time.Second)))
	assert.True(t, tr.Check(ctx, now.Add(42*time.Second)))
	assert.Equal(t, []uint{42, 43}, rec.calls)
}

func TestResetWhileHiddenWaitsForVisible(t *testing.T) {
	rec := &fakeRecorder{}
	tr := newReadyTracker(rec, 1)
	ctx := context.Background()
	t0 := time.Unix(0, 0)

	tr.Visible(ctx, t0)
	tr.Hidden(ctx, t0.Add(10*time.Second))
	tr.Reset(43)
	tr.SetReadingTime(1)
	assert.Equal(t, Idle, tr.State())
	assert.False(t, tr.Check(ctx, t0.Add(time.Hour)))
	assert.Zero(t, rec.count())
}

func TestRunFiresFromTimer(t *testing.T) {
	rec := &fakeRecorder{}
	tr := NewTracker(rec)
	tr.Reset(9)
	tr.SetAuthenticated(true)
	tr.SetReadingTime(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// all but the last few milliseconds of the 42s dwell already spent in the foreground
	tr.Visible(ctx, time.Now().Add(-42*time.Second+20*time.Millisecond))

	events := make(chan Event)
	done := make(chan struct{})
	go func() {
		tr.Run(ctx, events)
		close(done)
	}()

	require.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, Recorded, tr.State())

	close(events)
	<-done
	assert.Equal(t, 1, rec.count())
}

func TestRunPausesTimerWhileHidden(t *testing.T) {
	rec := &fakeRecorder{}
	tr := NewTracker(rec)
	tr.Reset(9)
	tr.SetAuthenticated(true)
	tr.SetReadingTime(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	now := time.Now()
	tr.Visible(ctx, now.Add(-42*time.Second+300*time.Millisecond))

	events := make(chan Event)
	done := make(chan struct{})
	go func() {
		tr.Run(ctx, events)
		close(done)
	}()
	events <- Event{Visible: false, At: now}

	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, 0, rec.count())
	assert.Equal(t, Paused, tr.State())

	cancel()
	<-done
}

func TestRunArmsWhenLessonLoadsWhileVisible(t *testing.T) {
	rec := &fakeRecorder{}
	tr := NewTracker(rec)
	tr.Reset(9)
	tr.SetAuthenticated(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// the page has been visible for nearly the whole 42s dwell before the lesson loads
	tr.Visible(ctx, time.Now().Add(-42*time.Second+50*time.Millisecond))

	events := make(chan Event)
	done := make(chan struct{})
	go func() {
		tr.Run(ctx, events)
		close(done)
	}()

	tr.SetReadingTime(1)
	require.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, Recorded, tr.State())

	close(events)
	<-done
	assert.Equal(t, 1, rec.count())
}

func TestRunResetWhileVisibleTracksNextLesson(t *testing.T) {
	rec := &fakeRecorder{}
	var skew int64
	clock := func() time.Time { return time.Now().Add(time.Duration(atomic.LoadInt64(&skew))) }
	tr := NewTracker(rec, WithClock(clock))
	tr.Reset(9)
	tr.SetAuthenticated(true)
	tr.SetReadingTime(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tr.Visible(ctx, clock())

	events := make(chan Event)
	done := make(chan struct{})
	go func() {
		tr.Run(ctx, events)
		close(done)
	}()

	tr.Reset(10)
	assert.Equal(t, Accumulating, tr.State())

	// jump to just short of the new lesson's threshold, then let it load
	atomic.AddInt64(&skew, int64(42*time.Second-50*time.Millisecond))
	tr.SetReadingTime(1)

	require.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	rec.mu.Lock()
	assert.Equal(t, []uint{10}, rec.calls)
	rec.mu.Unlock()

	cancel()
	<-done
}
