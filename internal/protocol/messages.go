// Package protocol encodes and decodes the GNU Rocket sync protocol spoken
// between a demo and a timeline editor over a byte stream.
//
// Every frame is a single command byte followed by a fixed big-endian payload,
// except track requests which carry a length-prefixed UTF-8 name:
//
//	0 SetKey       track u32, row u32, value f32, interpolation u8
//	1 DeleteKey    track u32, row u32
//	2 RequestTrack length u32, name
//	3 SetRow       row u32
//	4 Pause/Play   flag u8 (1 pauses, 0 plays)
//	5 SaveTracks   (no payload)
//
// A connection starts with the demo sending ClientGreeting and the editor
// answering ServerGreeting.
package protocol

import (
	"fmt"

	"github.com/thruflo/tracksync/internal/track"
)

// Handshake strings exchanged when a connection is opened.
const (
	ClientGreeting = "hello, synctracker!"
	ServerGreeting = "hello, demo!"
)

// MaxNameLength bounds the track name length accepted from the wire.
const MaxNameLength = 4096

// Command is the leading byte of every frame.
type Command byte

const (
	CmdSetKey     Command = 0
	CmdDeleteKey  Command = 1
	CmdGetTrack   Command = 2
	CmdSetRow     Command = 3
	CmdPause      Command = 4
	CmdSaveTracks Command = 5
)

// String returns the command name.
func (c Command) String() string {
	switch c {
	case CmdSetKey:
		return "set_key"
	case CmdDeleteKey:
		return "delete_key"
	case CmdGetTrack:
		return "get_track"
	case CmdSetRow:
		return "set_row"
	case CmdPause:
		return "pause"
	case CmdSaveTracks:
		return "save_tracks"
	default:
		return fmt.Sprintf("command(%d)", byte(c))
	}
}

// Message is one protocol message.
type Message interface {
	Command() Command
}

// SetKey sets a key on the track at index Track.
type SetKey struct {
	Track  uint32
	Row    uint32
	Value  float32
	Interp track.Interpolation
}

// DeleteKey removes the key at Row from the track at index Track.
type DeleteKey struct {
	Track uint32
	Row   uint32
}

// RequestTrack asks the editor for a track by name. The editor assigns track
// indices in the order the requests arrive.
type RequestTrack struct {
	Name string
}

// SetTrackNames requests every name in order. It is sent once per connection
// and goes on the wire as one RequestTrack frame per name.
type SetTrackNames struct {
	Names []string
}

// SetRow carries the playback row. The editor's SetRow is authoritative; the
// demo sends its own while playing so the editor cursor follows.
type SetRow struct {
	Row uint32
}

// Pause halts playback.
type Pause struct{}

// Play resumes playback.
type Play struct{}

// SaveTracks asks the demo to persist its track data.
type SaveTracks struct{}

func (SetKey) Command() Command        { return CmdSetKey }
func (DeleteKey) Command() Command     { return CmdDeleteKey }
func (RequestTrack) Command() Command  { return CmdGetTrack }
func (SetTrackNames) Command() Command { return CmdGetTrack }
func (SetRow) Command() Command        { return CmdSetRow }
func (Pause) Command() Command         { return CmdPause }
func (Play) Command() Command          { return CmdPause }
func (SaveTracks) Command() Command    { return CmdSaveTracks }

// Key returns the keyframe carried by m.
func (m SetKey) Key() track.Key {
	return track.Key{Row: m.Row, Value: m.Value, Interp: m.Interp}
}

// Requests expands m into the frames it is sent as.
func (m SetTrackNames) Requests() []RequestTrack {
	out := make([]RequestTrack, len(m.Names))
	for i, name := range m.Names {
		out[i] = RequestTrack{Name: name}
	}
	return out
}
