package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/util6/JadeDB/common"
)

// TestLRUReplacerVictimOrderIsFIFOOfUnpinned verifies that Victim returns
// frames in the order they were unpinned, not the order they were pinned
// or created.
func TestLRUReplacerVictimOrderIsFIFOOfUnpinned(t *testing.T) {
	r := NewLRUReplacer()

	r.Unpin(common.FrameID(2))
	r.Unpin(common.FrameID(1))
	r.Unpin(common.FrameID(3))

	require.Equal(t, 3, r.Size())

	fid, ok := r.Victim()
	require.True(t, ok)
	assert.Equal(t, common.FrameID(2), fid)

	fid, ok = r.Victim()
	require.True(t, ok)
	assert.Equal(t, common.FrameID(1), fid)

	fid, ok = r.Victim()
	require.True(t, ok)
	assert.Equal(t, common.FrameID(3), fid)

	_, ok = r.Victim()
	assert.False(t, ok)
}

func TestLRUReplacerPinRemovesFromCandidates(t *testing.T) {
	r := NewLRUReplacer()
	r.Unpin(common.FrameID(1))
	r.Unpin(common.FrameID(2))

	r.Pin(common.FrameID(1))
	assert.Equal(t, 1, r.Size())

	fid, ok := r.Victim()
	require.True(t, ok)
	assert.Equal(t, common.FrameID(2), fid)
}

func TestLRUReplacerUnpinIsIdempotent(t *testing.T) {
	r := NewLRUReplacer()
	r.Unpin(common.FrameID(1))
	r.Unpin(common.FrameID(1))
	assert.Equal(t, 1, r.Size())
}

func TestLRUReplacerPinOfUnknownFrameIsNoop(t *testing.T) {
	r := NewLRUReplacer()
	r.Pin(common.FrameID(99))
	assert.Equal(t, 0, r.Size())
}
