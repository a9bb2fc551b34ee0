package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thruflo/tracksync/internal/track"
)

func TestEncodeWireLayout(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		msg  Message
		want []byte
	}{
		{
			name: "set key",
			msg:  SetKey{Track: 1, Row: 10, Value: 1.0, Interp: track.Linear},
			want: []byte{0, 0, 0, 0, 1, 0, 0, 0, 10, 0x3f, 0x80, 0, 0, 1},
		},
		{
			name: "delete key",
			msg:  DeleteKey{Track: 2, Row: 0x0102},
			want: []byte{1, 0, 0, 0, 2, 0, 0, 1, 2},
		},
		{
			name: "request track",
			msg:  RequestTrack{Name: "H#y"},
			want: []byte{2, 0, 0, 0, 3, 'H', '#', 'y'},
		},
		{
			name: "set row",
			msg:  SetRow{Row: 256},
			want: []byte{3, 0, 0, 1, 0},
		},
		{name: "pause", msg: Pause{}, want: []byte{4, 1}},
		{name: "play", msg: Play{}, want: []byte{4, 0}},
		{name: "save tracks", msg: SaveTracks{}, want: []byte{5}},
		{
			name: "track names",
			msg:  SetTrackNames{Names: []string{"a", "bc"}},
			want: []byte{2, 0, 0, 0, 1, 'a', 2, 0, 0, 0, 2, 'b', 'c'},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.msg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	msgs := []Message{
		SetKey{Track: 3, Row: 99, Value: -0.125, Interp: track.Smooth},
		SetKey{Track: 0, Row: 0, Value: 0, Interp: track.Step},
		SetKey{Track: 1 << 20, Row: 1<<32 - 1, Value: 1e9, Interp: track.Ramp},
		DeleteKey{Track: 7, Row: 12},
		RequestTrack{Name: "camera:fov"},
		RequestTrack{Name: "ünïcode"},
		SetRow{Row: 123456},
		Pause{},
		Play{},
		SaveTracks{},
	}

	for _, msg := range msgs {
		data, err := Encode(msg)
		require.NoError(t, err)

		got, n, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, len(data), n)
		assert.Equal(t, msg, got)
	}
}

func TestTrackNamesDecodeAsRequests(t *testing.T) {
	t.Parallel()

	names := SetTrackNames{Names: []string{"H#y_offset", "H#opacity", "i#y_offset"}}
	data, err := Encode(names)
	require.NoError(t, err)

	d := NewDecoder()
	d.Feed(data)

	var got []RequestTrack
	for {
		msg, err := d.Next()
		require.NoError(t, err)
		if msg == nil {
			break
		}
		req, ok := msg.(RequestTrack)
		require.True(t, ok, "unexpected %T", msg)
		got = append(got, req)
	}
	assert.Equal(t, names.Requests(), got)
	assert.Equal(t, CmdGetTrack, names.Command())
}

func TestDecoderBuffersPartialFrames(t *testing.T) {
	t.Parallel()

	var stream []byte
	want := []Message{
		RequestTrack{Name: "fade"},
		SetKey{Track: 0, Row: 4, Value: 0.5, Interp: track.Linear},
		SetRow{Row: 8},
		Play{},
	}
	for _, m := range want {
		var err error
		stream, err = AppendEncode(stream, m)
		require.NoError(t, err)
	}

	d := NewDecoder()
	var got []Message
	for _, b := range stream {
		d.Feed([]byte{b})
		for {
			msg, err := d.Next()
			require.NoError(t, err)
			if msg == nil {
				break
			}
			got = append(got, msg)
		}
	}

	assert.Equal(t, want, got)
	assert.Equal(t, 0, d.Buffered())
}

func TestDecoderIncompleteIsNotAnError(t *testing.T) {
	t.Parallel()

	d := NewDecoder()
	msg, err := d.Next()
	assert.NoError(t, err)
	assert.Nil(t, msg)

	d.Feed([]byte{byte(CmdSetKey), 0, 0})
	msg, err = d.Next()
	assert.NoError(t, err)
	assert.Nil(t, msg)
	assert.Equal(t, 3, d.Buffered())

	d.Feed([]byte{byte(CmdGetTrack), 0, 0})
	msg, err = d.Next()
	assert.NoError(t, err)
	assert.Nil(t, msg)
}

func TestDecodeMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{"unknown command", []byte{9}},
		{"bad interpolation", []byte{0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 7}},
		{"empty name", []byte{2, 0, 0, 0, 0}},
		{"oversized name", []byte{2, 0xff, 0xff, 0xff, 0xff}},
		{"invalid utf8 name", []byte{2, 0, 0, 0, 2, 0xff, 0xfe}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode(tt.data)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestDecoderErrorIsSticky(t *testing.T) {
	t.Parallel()

	d := NewDecoder()
	d.Feed([]byte{0x42})
	_, err := d.Next()
	require.ErrorIs(t, err, ErrMalformed)

	d.Feed([]byte{byte(CmdSaveTracks)})
	_, err = d.Next()
	assert.ErrorIs(t, err, ErrMalformed)

	d.Reset()
	d.Feed([]byte{byte(CmdSaveTracks)})
	msg, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, SaveTracks{}, msg)
}

func TestEncodeRejects(t *testing.T) {
	t.Parallel()

	_, err := Encode(SetKey{Interp: track.Interpolation(5)})
	assert.ErrorIs(t, err, ErrUnencodable)

	_, err = Encode(RequestTrack{})
	assert.ErrorIs(t, err, ErrUnencodable)

	_, err = Encode(RequestTrack{Name: strings.Repeat("x", MaxNameLength+1)})
	assert.ErrorIs(t, err, ErrUnencodable)

	_, err = Encode(SetTrackNames{Names: []string{"ok", ""}})
	assert.ErrorIs(t, err, ErrUnencodable)

	_, err = Encode(nil)
	assert.ErrorIs(t, err, ErrUnencodable)
}

func TestCommandString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "set_key", CmdSetKey.String())
	assert.Equal(t, "save_tracks", CmdSaveTracks.String())
	assert.Equal(t, "command(9)", Command(9).String())
}
