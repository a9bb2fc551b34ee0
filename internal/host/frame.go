package host

import (
	"errors"
	"time"
)

// TrackSample is one track's value for a frame.
type TrackSample struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Frame is an immutable snapshot handed to renderers. Renderers may keep it.
type Frame struct {
	Number uint64        `json:"frame"`
	Row    uint32        `json:"row"`
	Time   time.Duration `json:"time_ns"`
	Paused bool          `json:"paused"`
	State  string        `json:"state"`
	Tracks []TrackSample `json:"tracks"`
}

// Value returns the sampled value of the named track, or 0 if absent.
func (f Frame) Value(name string) float64 {
	for _, s := range f.Tracks {
		if s.Name == name {
			return s.Value
		}
	}
	return 0
}

// Renderer draws frames.
type Renderer interface {
	Draw(frame Frame) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(Frame) error

// Draw calls f.
func (f RendererFunc) Draw(frame Frame) error { return f(frame) }

// MultiRenderer draws every frame on each renderer in order. One renderer
// failing does not stop the others.
type MultiRenderer []Renderer

// Draw draws frame on every renderer and joins their errors.
func (m MultiRenderer) Draw(frame Frame) error {
	var errs []error
	for _, r := range m {
		if err := r.Draw(frame); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// EventKind identifies a window or terminal event.
type EventKind int

const (
	// EventClose asks the loop to stop.
	EventClose EventKind = iota + 1
	// EventResize reports a new output size; the next frame is always drawn.
	EventResize
)

// Event is a window or terminal event.
type Event struct {
	Kind   EventKind
	Width  int
	Height int
}

// Events yields pending events without blocking.
type Events interface {
	Poll() []Event
}

type noEvents struct{}

func (noEvents) Poll() []Event { return nil }
