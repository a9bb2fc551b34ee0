package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/thruflo/tracksync/internal/track"
)

var (
	// ErrMalformed is returned for bytes that cannot be a valid frame.
	ErrMalformed = errors.New("malformed message")
	// ErrUnencodable is returned by Encode for messages that cannot be sent.
	ErrUnencodable = errors.New("message cannot be encoded")
)

// payloadSize returns the fixed payload size of cmd, or -1 for variable length
// and -2 for unknown commands.
func payloadSize(cmd Command) int {
	switch cmd {
	case CmdSetKey:
		return 13
	case CmdDeleteKey:
		return 8
	case CmdGetTrack:
		return -1
	case CmdSetRow:
		return 4
	case CmdPause:
		return 1
	case CmdSaveTracks:
		return 0
	default:
		return -2
	}
}

// Encode returns the wire form of msg. The result is complete: callers write
// it in one piece or not at all.
func Encode(msg Message) ([]byte, error) {
	return AppendEncode(nil, msg)
}

// AppendEncode appends the wire form of msg to b.
func AppendEncode(b []byte, msg Message) ([]byte, error) {
	switch m := msg.(type) {
	case SetKey:
		if !m.Interp.Valid() {
			return nil, fmt.Errorf("%w: interpolation %d", ErrUnencodable, m.Interp)
		}
		b = append(b, byte(CmdSetKey))
		b = binary.BigEndian.AppendUint32(b, m.Track)
		b = binary.BigEndian.AppendUint32(b, m.Row)
		b = binary.BigEndian.AppendUint32(b, math.Float32bits(m.Value))
		b = append(b, byte(m.Interp))
	case DeleteKey:
		b = append(b, byte(CmdDeleteKey))
		b = binary.BigEndian.AppendUint32(b, m.Track)
		b = binary.BigEndian.AppendUint32(b, m.Row)
	case RequestTrack:
		if err := checkName(m.Name); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnencodable, err)
		}
		b = append(b, byte(CmdGetTrack))
		b = binary.BigEndian.AppendUint32(b, uint32(len(m.Name)))
		b = append(b, m.Name...)
	case SetTrackNames:
		for _, req := range m.Requests() {
			var err error
			if b, err = AppendEncode(b, req); err != nil {
				return nil, err
			}
		}
	case SetRow:
		b = append(b, byte(CmdSetRow))
		b = binary.BigEndian.AppendUint32(b, m.Row)
	case Pause:
		b = append(b, byte(CmdPause), 1)
	case Play:
		b = append(b, byte(CmdPause), 0)
	case SaveTracks:
		b = append(b, byte(CmdSaveTracks))
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnencodable, msg)
	}
	return b, nil
}

func checkName(name string) error {
	if name == "" {
		return errors.New("empty track name")
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("track name is %d bytes, limit %d", len(name), MaxNameLength)
	}
	if !utf8.ValidString(name) {
		return errors.New("track name is not valid UTF-8")
	}
	return nil
}

// Decode parses one frame from the front of p. It returns the message and the
// number of bytes consumed. An incomplete frame yields (nil, 0, nil).
func Decode(p []byte) (Message, int, error) {
	if len(p) == 0 {
		return nil, 0, nil
	}
	cmd := Command(p[0])
	size := payloadSize(cmd)
	switch size {
	case -2:
		return nil, 0, fmt.Errorf("%w: unknown command %d", ErrMalformed, p[0])
	case -1:
		return decodeRequestTrack(p)
	}
	if len(p) < 1+size {
		return nil, 0, nil
	}
	body := p[1 : 1+size]
	n := 1 + size

	switch cmd {
	case CmdSetKey:
		interp := track.Interpolation(body[12])
		if !interp.Valid() {
			return nil, 0, fmt.Errorf("%w: interpolation %d", ErrMalformed, body[12])
		}
		return SetKey{
			Track:  binary.BigEndian.Uint32(body[0:4]),
			Row:    binary.BigEndian.Uint32(body[4:8]),
			Value:  math.Float32frombits(binary.BigEndian.Uint32(body[8:12])),
			Interp: interp,
		}, n, nil
	case CmdDeleteKey:
		return DeleteKey{
			Track: binary.BigEndian.Uint32(body[0:4]),
			Row:   binary.BigEndian.Uint32(body[4:8]),
		}, n, nil
	case CmdSetRow:
		return SetRow{Row: binary.BigEndian.Uint32(body)}, n, nil
	case CmdPause:
		if body[0] != 0 {
			return Pause{}, n, nil
		}
		return Play{}, n, nil
	default:
		return SaveTracks{}, n, nil
	}
}

func decodeRequestTrack(p []byte) (Message, int, error) {
	if len(p) < 5 {
		return nil, 0, nil
	}
	length := binary.BigEndian.Uint32(p[1:5])
	if length == 0 || length > MaxNameLength {
		return nil, 0, fmt.Errorf("%w: track name length %d", ErrMalformed, length)
	}
	n := 5 + int(length)
	if len(p) < n {
		return nil, 0, nil
	}
	name := string(p[5:n])
	if !utf8.ValidString(name) {
		return nil, 0, fmt.Errorf("%w: track name is not valid UTF-8", ErrMalformed)
	}
	return RequestTrack{Name: name}, n, nil
}

// Decoder accumulates stream bytes and yields complete messages. A trailing
// partial frame stays buffered until more bytes arrive.
type Decoder struct {
	buf []byte
	err error
}

// NewDecoder returns an empty Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends bytes read from the stream.
func (d *Decoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Buffered returns the number of bytes not yet decoded.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Next returns the next complete message, or (nil, nil) if the buffer holds
// only part of a frame. Once a malformed frame is seen the stream cannot be
// resynchronised and every later call returns the same error.
func (d *Decoder) Next() (Message, error) {
	if d.err != nil {
		return nil, d.err
	}
	msg, n, err := Decode(d.buf)
	if err != nil {
		d.err = err
		return nil, err
	}
	if msg == nil {
		return nil, nil
	}
	rest := copy(d.buf, d.buf[n:])
	d.buf = d.buf[:rest]
	return msg, nil
}

// Reset drops buffered bytes and any sticky error.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
	d.err = nil
}
