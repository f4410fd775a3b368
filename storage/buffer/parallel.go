package buffer

import (
	"sync/atomic"

	"github.com/util6/JadeDB/common"
	"github.com/util6/JadeDB/storage/page"
)

// ParallelBufferPoolManager 把页面 ID 空间分片到 N 个独立的 Instance 上，
// 每个分片拥有自己的锁、替换器和 id 分配器，互不阻塞。一个页面
// 永远只属于 page_id mod N 这一个分片，所以分片的选择只需要看 id，不
// 需要任何跨分片协调。
type ParallelBufferPoolManager struct {
	instances []*Instance
	// startIndex 轮询 NewPage 应该从哪个分片开始尝试，均匀地把新页面
	// 分散到各分片，避免每次都从分片 0 开始导致前几个分片过早耗尽。
	startIndex atomic.Uint64
}

// NewDiskManagerFactory 是按分片下标构造磁盘管理器的函数类型。
// NewParallelBufferPoolManager 不接受它：所有分片共享传入的同一个
// DiskManager（disk.Manager 本身是并发安全的）。
type NewDiskManagerFactory func(shardIndex int) DiskManager

// NewParallelBufferPoolManager 创建 numInstances 个分片，每个分片
// poolSizePerInstance 个帧。disk 是所有分片共享的底层磁盘管理器。
func NewParallelBufferPoolManager(numInstances, poolSizePerInstance int, disk DiskManager) *ParallelBufferPoolManager {
	p := &ParallelBufferPoolManager{
		instances: make([]*Instance, numInstances),
	}
	for i := 0; i < numInstances; i++ {
		alloc := newShardAllocator(i, numInstances)
		p.instances[i] = NewInstance(poolSizePerInstance, disk, alloc)
	}
	return p
}

// GetPoolSize 返回所有分片的帧总数。
func (p *ParallelBufferPoolManager) GetPoolSize() int {
	total := 0
	for _, inst := range p.instances {
		total += inst.PoolSize()
	}
	return total
}

// instanceFor 返回拥有 id 的分片，即 id mod len(instances)。
func (p *ParallelBufferPoolManager) instanceFor(id common.PageID) *Instance {
	n := int64(len(p.instances))
	idx := int64(id) % n
	if idx < 0 {
		idx += n
	}
	return p.instances[idx]
}

// NewPage 轮询分片，在第一个能腾出空间的分片上分配一个新页面。所有
// 分片都满时返回 (nil, InvalidPageID)。起始下标每次调用后前进一格，
// 让新页面均匀分布在各分片间。
func (p *ParallelBufferPoolManager) NewPage() (*page.Frame, common.PageID) {
	n := len(p.instances)
	start := int(p.startIndex.Add(1)-1) % n

	for i := 0; i < n; i++ {
		idx := (start + i) % n
		if f, id := p.instances[idx].NewPage(); id != common.InvalidPageID {
			return f, id
		}
	}
	return nil, common.InvalidPageID
}

// FetchPage 把请求路由到 id 所属的分片。
func (p *ParallelBufferPoolManager) FetchPage(id common.PageID) *page.Frame {
	return p.instanceFor(id).FetchPage(id)
}

// UnpinPage 把请求路由到 id 所属的分片。
func (p *ParallelBufferPoolManager) UnpinPage(id common.PageID, isDirty bool) bool {
	return p.instanceFor(id).UnpinPage(id, isDirty)
}

// FlushPage 把请求路由到 id 所属的分片。
func (p *ParallelBufferPoolManager) FlushPage(id common.PageID) bool {
	return p.instanceFor(id).FlushPage(id)
}

// FlushAllPages 依次让每个分片落盘自己常驻的所有页面。
func (p *ParallelBufferPoolManager) FlushAllPages() {
	for _, inst := range p.instances {
		inst.FlushAllPages()
	}
}

// DeletePage 把请求路由到 id 所属的分片。
func (p *ParallelBufferPoolManager) DeletePage(id common.PageID) bool {
	return p.instanceFor(id).DeletePage(id)
}

// Stats 把各分片的命中/未命中计数累加成一个全局数字，供诊断使用。
func (p *ParallelBufferPoolManager) Stats() (hit, miss int64) {
	for _, inst := range p.instances {
		h, m := inst.Stats()
		hit += h
		miss += m
	}
	return hit, miss
}

// IsResident 把请求路由到 id 所属的分片，供测试观察内部状态。
func (p *ParallelBufferPoolManager) IsResident(id common.PageID) bool {
	return p.instanceFor(id).IsResident(id)
}
