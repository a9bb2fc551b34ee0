package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRegister(t *testing.T) {
	t.Parallel()

	s := NewStore()
	idx, err := s.Register("a", "b")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, idx)

	idx, err = s.Register("c")
	require.NoError(t, err)
	assert.Equal(t, []int{2}, idx)

	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []string{"a", "b", "c"}, s.Names())

	i, ok := s.Index("b")
	assert.True(t, ok)
	assert.Equal(t, 1, i)
}

func TestStoreRegisterRejectsBadNames(t *testing.T) {
	t.Parallel()

	s := NewStore()
	_, err := s.Register("a")
	require.NoError(t, err)

	_, err = s.Register("b", "a")
	assert.ErrorIs(t, err, ErrDuplicateTrack)

	_, err = s.Register("x", "x")
	assert.ErrorIs(t, err, ErrDuplicateTrack)

	_, err = s.Register("")
	assert.ErrorIs(t, err, ErrEmptyName)

	assert.Equal(t, 1, s.Len(), "failed registrations leave the store unchanged")
}

func TestStoreValueUnknownTrack(t *testing.T) {
	t.Parallel()

	s := NewStore()
	_, err := s.Register("a")
	require.NoError(t, err)

	_, err = s.Value(1, 0)
	assert.ErrorIs(t, err, ErrUnknownTrack)
	_, err = s.Value(-1, 0)
	assert.ErrorIs(t, err, ErrUnknownTrack)
	assert.ErrorIs(t, s.SetKey(5, Key{}), ErrUnknownTrack)
	assert.ErrorIs(t, s.DeleteKey(5, 0), ErrUnknownTrack)
}

func TestStoreEmptyTrackValue(t *testing.T) {
	t.Parallel()

	s := NewStore()
	_, err := s.Register("a")
	require.NoError(t, err)

	v, err := s.Value(0, 42)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
}

func TestStoreLinearScenario(t *testing.T) {
	t.Parallel()

	s := NewStore()
	_, err := s.Register("a", "b")
	require.NoError(t, err)

	require.NoError(t, s.SetKey(0, Key{Row: 0, Value: 0, Interp: Linear}))
	require.NoError(t, s.SetKey(0, Key{Row: 10, Value: 1, Interp: Linear}))

	v, err := s.Value(0, 5)
	require.NoError(t, err)
	assert.Equal(t, 0.5, v)

	v, err = s.Value(1, 5)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
}

func TestStoreDeleteMissingKeyIsNoop(t *testing.T) {
	t.Parallel()

	s := NewStore()
	_, err := s.Register("a")
	require.NoError(t, err)
	require.NoError(t, s.SetKey(0, Key{Row: 1, Value: 1}))

	require.NoError(t, s.DeleteKey(0, 7))
	tr, err := s.Track(0)
	require.NoError(t, err)
	assert.Equal(t, 1, tr.Len())
}

func TestStoreSnapshotAndLoad(t *testing.T) {
	t.Parallel()

	src := NewStore()
	_, err := src.Register("a", "b")
	require.NoError(t, err)
	require.NoError(t, src.SetKey(0, Key{Row: 0, Value: 1, Interp: Smooth}))
	require.NoError(t, src.SetKey(1, Key{Row: 8, Value: 2}))

	snap := src.Snapshot()
	snap["gone"] = []Key{{Row: 1}}

	dst := NewStore()
	_, err = dst.Register("b", "a")
	require.NoError(t, err)
	require.NoError(t, dst.SetKey(0, Key{Row: 100, Value: 9}))

	skipped := dst.Load(snap)
	assert.Equal(t, []string{"gone"}, skipped)

	a, err := dst.Track(1)
	require.NoError(t, err)
	assert.Equal(t, []Key{{Row: 0, Value: 1, Interp: Smooth}}, a.Keys())

	b, err := dst.Track(0)
	require.NoError(t, err)
	assert.Equal(t, []Key{{Row: 8, Value: 2}}, b.Keys(), "load replaces existing keys")
}
