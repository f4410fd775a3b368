package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/util6/JadeDB/common"
)

func TestNewFrameStartsEmpty(t *testing.T) {
	f := NewFrame(3)
	assert.Equal(t, common.FrameID(3), f.ID)
	assert.Equal(t, common.InvalidPageID, f.PageID())
	assert.Equal(t, int32(0), f.PinCount())
	assert.False(t, f.IsDirty())
}

func TestPinUnpinNeverGoesNegative(t *testing.T) {
	f := NewFrame(0)
	f.Unpin()
	f.Unpin()
	require.Equal(t, int32(0), f.PinCount())

	f.Pin()
	f.Pin()
	assert.Equal(t, int32(2), f.PinCount())
	f.Unpin()
	assert.Equal(t, int32(1), f.PinCount())
}

func TestResetClearsDataAndMetadata(t *testing.T) {
	f := NewFrame(1)
	f.Pin()
	f.SetDirty(true)
	f.Data[0] = 0xFF

	f.Reset(common.PageID(42))
	assert.Equal(t, common.PageID(42), f.PageID())
	assert.Equal(t, int32(0), f.PinCount())
	assert.False(t, f.IsDirty())
	assert.Equal(t, byte(0), f.Data[0])
}

func TestLoadFromCopiesBytesAndPinsOnce(t *testing.T) {
	f := NewFrame(1)
	f.Reset(common.PageID(7))

	var src [Size]byte
	src[0] = 0xAB
	src[Size-1] = 0xCD
	f.LoadFrom(src[:])

	assert.Equal(t, byte(0xAB), f.Data[0])
	assert.Equal(t, byte(0xCD), f.Data[Size-1])
	assert.Equal(t, int32(1), f.PinCount())
}
