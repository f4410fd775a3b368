package buffer

import (
	"sync"
	"sync/atomic"

	"github.com/util6/JadeDB/common"
	"github.com/util6/JadeDB/storage/page"
)

// DiskManager is the durability contract a buffer pool instance needs:
// page-granular read/write plus allocation/deallocation of durable ids.
// storage/disk.Manager satisfies this; tests use a fake.
type DiskManager interface {
	ReadPage(id common.PageID, buf []byte) error
	WritePage(id common.PageID, buf []byte) error
	AllocatePage() common.PageID
	DeallocatePage(id common.PageID)
}

// Instance 是一个缓冲池实例：固定数量的帧、一张 page_id -> frame_id
// 的映射、一个空闲帧链表和一个 LRU 替换器，全部由单把互斥锁保护。
type Instance struct {
	mu sync.Mutex

	disk      DiskManager
	allocator IDAllocator

	frames    []*page.Frame
	pageTable map[common.PageID]common.FrameID
	freeList  []common.FrameID
	replacer  *LRUReplacer

	hitCount  atomic.Int64
	missCount atomic.Int64
}

// NewInstance 创建一个拥有 poolSize 个帧的缓冲池实例，使用 allocator 为
// NewPage 生成页面 id。allocator 为 nil 时退化为直接调用 disk 的
// AllocatePage。
func NewInstance(poolSize int, disk DiskManager, allocator IDAllocator) *Instance {
	if allocator == nil {
		allocator = diskAllocator{disk: disk}
	}

	inst := &Instance{
		disk:      disk,
		allocator: allocator,
		frames:    make([]*page.Frame, poolSize),
		pageTable: make(map[common.PageID]common.FrameID),
		freeList:  make([]common.FrameID, poolSize),
		replacer:  NewLRUReplacer(),
	}
	for i := 0; i < poolSize; i++ {
		inst.frames[i] = page.NewFrame(common.FrameID(i))
		inst.freeList[i] = common.FrameID(i)
	}
	return inst
}

// PoolSize 返回这个实例的帧数量。
func (b *Instance) PoolSize() int { return len(b.frames) }

// findVictimLocked 从空闲链表里取一个帧，空闲链表为空时向替换器要一个。
// 调用方必须持有 b.mu。返回 false 表示所有帧都被钉住。
func (b *Instance) findVictimLocked() (common.FrameID, bool) {
	if n := len(b.freeList); n > 0 {
		fid := b.freeList[n-1]
		b.freeList = b.freeList[:n-1]
		return fid, true
	}
	return b.replacer.Victim()
}

// evictLocked 把 fid 指向的帧腾空：如果它当前持有一个脏页，先写回磁盘；
// 然后从 page table 删除旧映射。调用方必须持有 b.mu。
func (b *Instance) evictLocked(fid common.FrameID) error {
	f := b.frames[fid]
	old := f.PageID()
	if old == common.InvalidPageID {
		return nil
	}
	if f.IsDirty() {
		if err := b.disk.WritePage(old, f.Data[:]); err != nil {
			return err
		}
	}
	delete(b.pageTable, old)
	return nil
}

// NewPage 分配一个全新的持久页面 id，钉住它所在的帧并返回。所有帧都被
// 钉住时返回 (nil, InvalidPageID)。
func (b *Instance) NewPage() (*page.Frame, common.PageID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	fid, ok := b.findVictimLocked()
	if !ok {
		return nil, common.InvalidPageID
	}
	if err := b.evictLocked(fid); err != nil {
		return nil, common.InvalidPageID
	}

	id := b.allocator.Allocate()
	f := b.frames[fid]
	f.Reset(id)
	f.Pin()
	b.pageTable[id] = fid
	b.replacer.Pin(fid)
	return f, id
}

// FetchPage 返回 id 对应的帧，如果已经常驻则直接钉住返回；否则找一个
// 受害者帧，必要时写回脏数据，再从磁盘读入。
func (b *Instance) FetchPage(id common.PageID) *page.Frame {
	b.mu.Lock()
	defer b.mu.Unlock()

	if fid, ok := b.pageTable[id]; ok {
		b.hitCount.Add(1)
		b.replacer.Pin(fid)
		f := b.frames[fid]
		f.Pin()
		return f
	}
	b.missCount.Add(1)

	fid, ok := b.findVictimLocked()
	if !ok {
		return nil
	}
	if err := b.evictLocked(fid); err != nil {
		return nil
	}

	f := b.frames[fid]
	f.Reset(id)
	var buf [page.Size]byte
	if err := b.disk.ReadPage(id, buf[:]); err != nil {
		return nil
	}
	f.LoadFrom(buf[:])
	b.pageTable[id] = fid
	b.replacer.Pin(fid)
	return f
}

// UnpinPage 把 id 的钉住计数减一，达到零时把它的帧交还给替换器。
// isDirty 为 true 时即使这次调用没有把帧计数归零，脏位也会被置上
// （调用方可能只是报告了自己做的修改）。返回 false 表示页面不常驻。
func (b *Instance) UnpinPage(id common.PageID, isDirty bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	fid, ok := b.pageTable[id]
	if !ok {
		return false
	}
	f := b.frames[fid]
	if isDirty {
		f.SetDirty(true)
	}
	f.Unpin()
	if f.PinCount() == 0 {
		b.replacer.Unpin(fid)
	}
	return true
}

// FlushPage 把 id 的帧内容写到磁盘，不管脏位是否置上，也不清除脏位。
// 返回 false 表示页面不常驻。
func (b *Instance) FlushPage(id common.PageID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	fid, ok := b.pageTable[id]
	if !ok {
		return false
	}
	f := b.frames[fid]
	_ = b.disk.WritePage(id, f.Data[:])
	return true
}

// FlushAllPages 把每一个常驻页面写到磁盘。
func (b *Instance) FlushAllPages() {
	b.mu.Lock()
	ids := make([]common.PageID, 0, len(b.pageTable))
	for id := range b.pageTable {
		ids = append(ids, id)
	}
	b.mu.Unlock()

	for _, id := range ids {
		b.FlushPage(id)
	}
}

// DeletePage 从缓冲池里移除 id：不常驻时直接返回 true；常驻但被钉住时
// 返回 false；否则清掉映射、把帧还给空闲链表、通知磁盘管理器释放这个 id。
func (b *Instance) DeletePage(id common.PageID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	fid, ok := b.pageTable[id]
	if !ok {
		return true
	}
	f := b.frames[fid]
	if f.PinCount() > 0 {
		return false
	}

	b.replacer.Pin(fid) // make sure it isn't sitting in the replacer
	delete(b.pageTable, id)
	f.Reset(common.InvalidPageID)
	b.freeList = append(b.freeList, fid)
	b.disk.DeallocatePage(id)
	return true
}

// Stats 返回命中/未命中计数，供诊断使用。
func (b *Instance) Stats() (hit, miss int64) {
	return b.hitCount.Load(), b.missCount.Load()
}

// IsResident 报告 id 是否当前常驻，供测试观察内部状态。
func (b *Instance) IsResident(id common.PageID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.pageTable[id]
	return ok
}
