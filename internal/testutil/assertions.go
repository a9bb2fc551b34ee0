package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thruflo/tracksync/internal/protocol"
	"github.com/thruflo/tracksync/internal/track"
)

// SentRows returns the rows of every SetRow sent on link, in order.
func SentRows(link *FakeLink) []uint32 {
	var rows []uint32
	for _, m := range link.Sent() {
		if r, ok := m.(protocol.SetRow); ok {
			rows = append(rows, r.Row)
		}
	}
	return rows
}

// AssertSentRows asserts the exact sequence of SetRow messages sent on link.
func AssertSentRows(t *testing.T, link *FakeLink, rows ...uint32) {
	t.Helper()
	got := SentRows(link)
	if len(rows) == 0 {
		assert.Empty(t, got, "no rows should have been sent")
		return
	}
	assert.Equal(t, rows, got, "sent rows mismatch")
}

// AssertRegisteredNames asserts that the first message sent on link registers
// exactly names.
func AssertRegisteredNames(t *testing.T, link *FakeLink, names ...string) {
	t.Helper()
	sent := link.Sent()
	require.NotEmpty(t, sent, "nothing sent on link")
	reg, ok := sent[0].(protocol.SetTrackNames)
	require.True(t, ok, "first message is %T, want SetTrackNames", sent[0])
	assert.Equal(t, names, reg.Names)
}

// AssertTrackKeys asserts the keys held by the track at index.
func AssertTrackKeys(t *testing.T, store *track.Store, index int, keys ...track.Key) {
	t.Helper()
	tr, err := store.Track(index)
	require.NoError(t, err)
	if len(keys) == 0 {
		assert.Zero(t, tr.Len(), "track %q should be empty", tr.Name)
		return
	}
	assert.Equal(t, keys, tr.Keys(), "track %q keys mismatch", tr.Name)
}

// AssertStoreEqual asserts that two stores hold the same tracks and keys.
func AssertStoreEqual(t *testing.T, expected, actual *track.Store) {
	t.Helper()
	require.Equal(t, expected.Names(), actual.Names(), "track names mismatch")
	assert.Equal(t, expected.Snapshot(), actual.Snapshot(), "track keys mismatch")
}
