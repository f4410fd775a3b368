package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShardAllocatorProducesOnlyIDsCongruentToShardIndex(t *testing.T) {
	const shardCount = 5
	for shardIndex := 0; shardIndex < shardCount; shardIndex++ {
		a := newShardAllocator(shardIndex, shardCount)
		for i := 0; i < 10; i++ {
			id := a.Allocate()
			assert.Equal(t, int64(shardIndex), int64(id)%shardCount)
		}
	}
}

func TestShardAllocatorFirstIDIsShardIndex(t *testing.T) {
	a := newShardAllocator(3, 8)
	assert.Equal(t, int64(3), int64(a.Allocate()))
	assert.Equal(t, int64(11), int64(a.Allocate()))
}

func TestDiskAllocatorDelegatesToDiskManager(t *testing.T) {
	disk := newFakeDisk()
	a := diskAllocator{disk: disk}
	id1 := a.Allocate()
	id2 := a.Allocate()
	assert.NotEqual(t, id1, id2)
}
