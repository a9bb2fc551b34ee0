// Package device implements the sync device: the playback clock (time, row,
// paused flag) and the tempo that maps one onto the other, plus sampling of
// track values at the current row.
package device

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/thruflo/tracksync/internal/track"
)

// ErrInvalidTempo is returned by New for non-positive tempo settings.
var ErrInvalidTempo = errors.New("invalid tempo")

// Default tempo: 125 bpm at 8 rows per beat is one row every 60ms.
const (
	DefaultBPM         = 125.0
	DefaultRowsPerBeat = 8
)

// maxRow is the largest row the wire format can carry.
const maxRow = math.MaxUint32

// Device owns the track store and the playback position. It is driven from a
// single goroutine, the host frame loop.
type Device struct {
	bpm         float64
	rowsPerBeat int
	rowsPerMin  float64 // multiplied before dividing so whole-row times land exactly

	time   time.Duration
	row    uint32
	paused bool

	tracks *track.Store
}

// New creates a Device at time zero. Devices start paused; the controller
// decides the initial playback state once it knows whether an editor is present.
func New(bpm float64, rowsPerBeat int, tracks *track.Store) (*Device, error) {
	if bpm <= 0 || math.IsNaN(bpm) || math.IsInf(bpm, 0) {
		return nil, fmt.Errorf("%w: bpm %v", ErrInvalidTempo, bpm)
	}
	if rowsPerBeat <= 0 {
		return nil, fmt.Errorf("%w: rows per beat %d", ErrInvalidTempo, rowsPerBeat)
	}
	if tracks == nil {
		tracks = track.NewStore()
	}
	return &Device{
		bpm:         bpm,
		rowsPerBeat: rowsPerBeat,
		rowsPerMin:  bpm * float64(rowsPerBeat),
		paused:      true,
		tracks:      tracks,
	}, nil
}

// BPM returns the tempo in beats per minute.
func (d *Device) BPM() float64 { return d.bpm }

// RowsPerBeat returns the row resolution of a beat.
func (d *Device) RowsPerBeat() int { return d.rowsPerBeat }

// Tracks returns the device's track store.
func (d *Device) Tracks() *track.Store { return d.tracks }

// Time returns the playback time.
func (d *Device) Time() time.Duration { return d.time }

// Row returns the playback row.
func (d *Device) Row() uint32 { return d.row }

// Paused reports whether local playback is halted.
func (d *Device) Paused() bool { return d.paused }

// SetPaused sets the paused flag.
func (d *Device) SetPaused(paused bool) { d.paused = paused }

// Advance moves playback forward by delta. It does nothing while paused.
// The row is recomputed from the total time, so repeated small steps never
// accumulate rounding error.
func (d *Device) Advance(delta time.Duration) {
	if d.paused || delta <= 0 {
		return
	}
	d.time += delta
	d.row = d.rowForTime(d.time)
}

// SetRow jumps to row, as commanded by the editor, and moves time to the
// start of that row.
func (d *Device) SetRow(row uint32) {
	d.row = row
	t := time.Duration(math.Ceil(float64(row) * float64(time.Minute) / d.rowsPerMin))
	for d.rowForTime(t) < row {
		t++
	}
	d.time = t
}

// RowAt converts a playback time to a row using the device tempo.
func (d *Device) RowAt(t time.Duration) uint32 {
	return d.rowForTime(t)
}

// rowForTime truncates: a row is current from its start until the next one.
func (d *Device) rowForTime(t time.Duration) uint32 {
	r := math.Floor(float64(t) * d.rowsPerMin / float64(time.Minute))
	if r >= maxRow {
		return maxRow
	}
	if r < 0 {
		return 0
	}
	return uint32(r)
}

// TrackValue samples the track at index on the current row. An index outside
// the registered range yields track.ErrUnknownTrack; callers substitute a
// default and keep rendering.
func (d *Device) TrackValue(index int) (float64, error) {
	return d.tracks.Value(index, d.row)
}

// ValueOr is TrackValue with fallback substituted on error.
func (d *Device) ValueOr(index int, fallback float64) float64 {
	v, err := d.TrackValue(index)
	if err != nil {
		return fallback
	}
	return v
}
