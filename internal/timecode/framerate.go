// Package timecode implements SMPTE timecode frame-count arithmetic:
// the closed table of supported broadcast framerates and the parse/format/
// advance operations on a frame number under one of them, including the
// drop-frame rules for 29.97 and 59.94 fps.
package timecode

import "fmt"

// Framerate describes one of the broadcast rates this server understands.
// Nominal is the real-world rate (used only to schedule ticks); Timebase is
// the integer frames-per-second used when formatting HH:MM:SS:FF labels.
type Framerate struct {
	Key         string
	Nominal     float64
	Timebase    int
	DropFrame   bool
	dropPerMin  int // labels skipped per non-tenth minute; 0 when !DropFrame
}

// FramesPer10Min is the number of distinct frame labels in a 10-minute
// span at this rate: Timebase*600 for non-drop rates, minus the frames
// skipped at minute boundaries for drop-frame rates.
func (r Framerate) FramesPer10Min() int64 {
	return int64(r.Timebase)*600 - int64(r.dropPerMin)*9
}

// TotalFrames is the number of distinct frame labels in a 24-hour day,
// i.e. the modulus Advance wraps at.
func (r Framerate) TotalFrames() int64 {
	return r.FramesPer10Min() * 144 // 144 ten-minute windows per day
}

var table = map[string]Framerate{
	"23.976": {Key: "23.976", Nominal: 23.976, Timebase: 24, DropFrame: false},
	"24":     {Key: "24", Nominal: 24, Timebase: 24, DropFrame: false},
	"29.97":  {Key: "29.97", Nominal: 29.97, Timebase: 30, DropFrame: true, dropPerMin: 2},
	"30":     {Key: "30", Nominal: 30, Timebase: 30, DropFrame: false},
	"50":     {Key: "50", Nominal: 50, Timebase: 50, DropFrame: false},
	"59.94":  {Key: "59.94", Nominal: 59.94, Timebase: 60, DropFrame: true, dropPerMin: 4},
	"60":     {Key: "60", Nominal: 60, Timebase: 60, DropFrame: false},
}

// ErrUnknownFramerate is returned by Lookup for a key outside the closed set.
type ErrUnknownFramerate struct{ Key string }

func (e *ErrUnknownFramerate) Error() string {
	return fmt.Sprintf("timecode: unknown framerate %q", e.Key)
}

// Lookup resolves a wire framerate key to its descriptor. The key is a
// stable identifier; nominal fps is never compared for equality anywhere
// in this package.
func Lookup(key string) (Framerate, error) {
	r, ok := table[key]
	if !ok {
		return Framerate{}, &ErrUnknownFramerate{Key: key}
	}
	return r, nil
}

// SupportedKeys returns the closed set of framerate keys, in a stable order,
// for advertising to clients in a welcome message.
func SupportedKeys() []string {
	return []string{"23.976", "24", "29.97", "30", "50", "59.94", "60"}
}
