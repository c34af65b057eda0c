package timecode

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError reports why a timecode string was rejected.
type ParseError struct {
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("timecode: invalid timecode %q: %s", e.Text, e.Reason)
}

// Parse converts a "HH:MM:SS:FF" string to a frame number under rate r.
// Fields out of range, or drop-frame labels that were skipped on-air, are
// rejected.
func Parse(text string, r Framerate) (int64, error) {
	fields := strings.Split(text, ":")
	if len(fields) != 4 {
		return 0, &ParseError{Text: text, Reason: "expected four colon-separated fields"}
	}

	nums := make([]int, 4)
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n < 0 || len(f) == 0 {
			return 0, &ParseError{Text: text, Reason: fmt.Sprintf("field %d is not a non-negative integer", i)}
		}
		nums[i] = n
	}

	return FromFields(nums[0], nums[1], nums[2], nums[3], r)
}

// FromFields converts HH:MM:SS:FF fields to a frame number under rate r,
// applying the same range and drop-frame validation as Parse.
func FromFields(h, m, s, f int, r Framerate) (int64, error) {
	if h < 0 || h > 23 {
		return 0, &ParseError{Text: fieldsText(h, m, s, f), Reason: "HH must be 00..23"}
	}
	if m < 0 || m > 59 {
		return 0, &ParseError{Text: fieldsText(h, m, s, f), Reason: "MM must be 00..59"}
	}
	if s < 0 || s > 59 {
		return 0, &ParseError{Text: fieldsText(h, m, s, f), Reason: "SS must be 00..59"}
	}
	if f < 0 || f >= r.Timebase {
		return 0, &ParseError{Text: fieldsText(h, m, s, f), Reason: fmt.Sprintf("FF must be 00..%02d", r.Timebase-1)}
	}

	if r.DropFrame {
		totalMinutes := h*60 + m
		if s == 0 && totalMinutes%10 != 0 && f < r.dropPerMin {
			return 0, &ParseError{
				Text:   fieldsText(h, m, s, f),
				Reason: fmt.Sprintf("frame %d at the start of minute %d does not exist under drop-frame timecode", f, totalMinutes),
			}
		}
	}

	literal := int64((h*3600+m*60+s)*r.Timebase + f)
	if !r.DropFrame {
		return literal, nil
	}

	totalMinutes := int64(h*60 + m)
	return literal - int64(r.dropPerMin)*(totalMinutes-totalMinutes/10), nil
}

// Format renders a frame number as "HH:MM:SS:FF" under rate r. The frame
// number is wrapped modulo the rate's 24-hour total before formatting.
func Format(frameNumber int64, r Framerate) string {
	total := r.TotalFrames()
	frame := frameNumber % total
	if frame < 0 {
		frame += total
	}

	labelFrame := frame
	if r.DropFrame {
		framesPer10Min := r.FramesPer10Min()
		df := int64(r.dropPerMin)
		d := frame / framesPer10Min
		mm := frame % framesPer10Min
		labelFrame = frame + 9*df*d + df*((mm-df)/(framesPer10Min/10))
	}

	tb := int64(r.Timebase)
	ff := labelFrame % tb
	ss := labelFrame / tb % 60
	min := labelFrame / (tb * 60) % 60
	hh := labelFrame / (tb * 3600)

	return fmt.Sprintf("%02d:%02d:%02d:%02d", hh, min, ss, ff)
}

// Advance wraps frameNumber+delta modulo the rate's 24-hour total.
func Advance(frameNumber int64, r Framerate, delta int64) int64 {
	total := r.TotalFrames()
	n := (frameNumber + delta) % total
	if n < 0 {
		n += total
	}
	return n
}

func fieldsText(h, m, s, f int) string {
	return fmt.Sprintf("%02d:%02d:%02d:%02d", h, m, s, f)
}
