package render

import "math"

// PlaceholderTimestamp sorts above any cutoff so placeholder frames always
// commit, even right after a cancellation.
const PlaceholderTimestamp int64 = math.MaxInt64

// Args carries everything a render call needs. Jobs are enqueued once, never
// mutated, and consumed exactly once or discarded by CancelAll.
type Args struct {
	// Timestamp is compared against the queue's cutoff watermark before the
	// result may commit. Unix nanoseconds.
	Timestamp int64
	// Path of the source file; empty for placeholder frames.
	Path string
	// BaseSize is the square target edge in pixels before DPI scaling.
	BaseSize int
	// PixelRatio is the device pixel ratio applied on top of BaseSize.
	PixelRatio float64
	// Placeholder requests the loading frame instead of decoding Path.
	Placeholder bool
	// GridContext distinguishes grid thumbnails from preview renders.
	GridContext bool
}

type RenderFunc func(Args)

// Job pairs a render function with its arguments. A nil Render marks the
// terminator sentinel that shuts a worker down; Submit rejects those.
type Job struct {
	Render RenderFunc
	Args   Args
}

func (j Job) isTerminator() bool {
	return j.Render == nil
}
