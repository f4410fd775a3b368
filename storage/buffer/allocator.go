package buffer

import (
	"sync/atomic"

	"github.com/util6/JadeDB/common"
)

// IDAllocator hands out fresh durable page ids for NewPage. A standalone
// instance delegates straight to the disk manager's own counter; a shard
// inside a ParallelBufferPoolManager uses shardAllocator so that every id
// it produces satisfies id mod shardCount == shardIndex.
type IDAllocator interface {
	Allocate() common.PageID
}

// diskAllocator 把分配委托给磁盘管理器的全局计数器，用于非分片实例。
type diskAllocator struct {
	disk interface{ AllocatePage() common.PageID }
}

func (a diskAllocator) Allocate() common.PageID {
	return a.disk.AllocatePage()
}

// shardAllocator 维护一个从 shardIndex 开始、每次加 shardCount 的本地
// 计数器，不经过磁盘管理器的全局计数器，从而保证该分片产生的每个 id
// 都满足 id mod shardCount == shardIndex。
type shardAllocator struct {
	shardCount int64
	next       atomic.Int64
}

func newShardAllocator(shardIndex, shardCount int) *shardAllocator {
	a := &shardAllocator{shardCount: int64(shardCount)}
	a.next.Store(int64(shardIndex))
	return a
}

func (a *shardAllocator) Allocate() common.PageID {
	id := a.next.Add(a.shardCount) - a.shardCount
	return common.PageID(id)
}
