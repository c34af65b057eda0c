package session

import (
	"context"
	"time"

	"github.com/lanternops/timecodesvr/internal/protocol"
	"github.com/lanternops/timecodesvr/internal/timecode"
)

// runTicker drift-corrects against epochWall/epochFrame rather than
// sleeping a fixed interval and incrementing: each iteration computes the
// wall-clock target for the next sequential frame k and sleeps until it,
// so scheduling jitter never accumulates across frames.
//
// If the loop wakes late, it does not burst-emit the frames it missed: it
// jumps k forward to the frame actually due at the current wall time and
// emits only that one, so the displayed timecode jumps forward accurately
// without flooding members with stale intermediate updates.
func (s *Session) runTicker(ctx context.Context, done chan struct{}, epochWall time.Time, epochFrame int64) {
	defer close(done)

	fps := s.Framerate.Nominal
	var k int64
	for {
		k++
		target := epochWall.Add(time.Duration(float64(k) / fps * float64(time.Second)))
		if !sleepUntil(ctx, target) {
			return
		}

		if actual := framesSince(epochWall, fps); actual > k {
			k = actual
		}

		s.mu.Lock()
		if ctx.Err() != nil {
			s.mu.Unlock()
			return
		}
		frame := timecode.Advance(epochFrame, s.Framerate, k)
		s.currentFrame = frame
		members := s.memberSnapshotLocked()
		s.mu.Unlock()

		s.deliver(members, protocol.NewTimecodeUpdate(timecode.Format(frame, s.Framerate)))
		if s.onTick != nil {
			s.onTick()
		}
	}
}

func framesSince(epochWall time.Time, fps float64) int64 {
	return int64(time.Since(epochWall).Seconds() * fps)
}

// sleepUntil blocks until target or ctx cancellation, whichever comes
// first. It returns false iff ctx was cancelled; a target already in the
// past returns true immediately (the catch-up case), unless ctx is also
// already done.
func sleepUntil(ctx context.Context, target time.Time) bool {
	d := time.Until(target)
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
