/*
Package disk 实现缓冲池依赖的磁盘管理器契约：按页粒度读写一个持久化文件，
并分配持久的页面 ID。

实现方式沿用内存映射文件的思路：底层文件通过 mmap 映射进地址空间，读写
页面就是对映射切片做一次内存拷贝。写入的页面 ID 落在当前映射范围之外时，
文件被截断放大并重新映射；读取范围之外的页面直接得到全零。每次 WritePage
拷贝之后都对整个映射做一次同步的 msync，所以写路径会阻塞在真实 I/O 上；
读路径只是内存拷贝。
*/
package disk

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/util6/JadeDB/common"
	"github.com/util6/JadeDB/storage/page"
	"github.com/util6/JadeDB/utils/mmap"
)

// growthFactor 控制每次扩容时映射区域的增长倍数，减少重新映射的频率。
const growthFactor = 2

// Manager 是缓冲池唯一信任的持久化层：它不知道页面里存的是目录页、桶页
// 还是别的什么，只按 PageID * page.Size 的偏移量搬运定长字节块。
type Manager struct {
	mu   sync.Mutex
	fd   *os.File
	data []byte // 当前映射的区域，长度是 page.Size 的整数倍

	nextID atomic.Int64 // AllocatePage 的单调计数器，供非分片场景使用
	freed  map[common.PageID]struct{}
}

// Open 打开（或创建）path 处的页面文件，并把已有内容映射进内存。
func Open(path string) (*Manager, error) {
	fd, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "disk manager: open %s", path)
	}

	info, err := fd.Stat()
	if err != nil {
		fd.Close()
		return nil, errors.Wrapf(err, "disk manager: stat %s", path)
	}

	size := info.Size()
	if size == 0 {
		// mmap 要求非空文件；新文件预留一批页面。
		size = int64(page.Size) * 16
		if err := fd.Truncate(size); err != nil {
			fd.Close()
			return nil, errors.Wrapf(err, "disk manager: truncate %s", path)
		}
	}

	data, err := mmap.Mmap(fd, true, size)
	if err != nil {
		fd.Close()
		return nil, errors.Wrapf(err, "disk manager: mmap %s", path)
	}

	m := &Manager{
		fd:    fd,
		data:  data,
		freed: make(map[common.PageID]struct{}),
	}
	m.nextID.Store(int64(size) / int64(page.Size))
	return m, nil
}

// ReadPage 把 id 对应的页面内容拷贝进 buf。从未写过的页面读作全零字节，
// 与磁盘管理器"未分配区域即为零"的约定一致。
func (m *Manager) ReadPage(id common.PageID, buf []byte) error {
	if id == common.InvalidPageID || id < 0 {
		return errors.Errorf("disk manager: invalid page id %d", id)
	}
	if len(buf) != page.Size {
		return errors.Errorf("disk manager: buffer must be %d bytes, got %d", page.Size, len(buf))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	off := int64(id) * int64(page.Size)
	if off+int64(page.Size) > int64(len(m.data)) {
		for i := range buf {
			buf[i] = 0
		}
		return nil
	}
	copy(buf, m.data[off:off+int64(page.Size)])
	return nil
}

// WritePage 把 buf 原样写到 id 对应的偏移量，必要时先扩大底层文件和映射。
func (m *Manager) WritePage(id common.PageID, buf []byte) error {
	if id == common.InvalidPageID || id < 0 {
		return errors.Errorf("disk manager: invalid page id %d", id)
	}
	if len(buf) != page.Size {
		return errors.Errorf("disk manager: buffer must be %d bytes, got %d", page.Size, len(buf))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	off := int64(id) * int64(page.Size)
	need := off + int64(page.Size)
	if need > int64(len(m.data)) {
		if err := m.growLocked(need); err != nil {
			return err
		}
	}
	copy(m.data[off:off+int64(page.Size)], buf)
	return mmap.Msync(m.data)
}

// growLocked 把映射区域扩大到至少 need 字节，调用方必须持有 m.mu。
func (m *Manager) growLocked(need int64) error {
	newSize := int64(len(m.data))
	if newSize == 0 {
		newSize = int64(page.Size)
	}
	for newSize < need {
		newSize *= growthFactor
	}

	if err := mmap.Munmap(m.data); err != nil {
		return errors.Wrap(err, "disk manager: unmap before growing")
	}
	if err := m.fd.Truncate(newSize); err != nil {
		return errors.Wrap(err, "disk manager: truncate while growing")
	}
	data, err := mmap.Mmap(m.fd, true, newSize)
	if err != nil {
		return errors.Wrap(err, "disk manager: remap after growing")
	}
	m.data = data
	return nil
}

// AllocatePage 返回一个新的、之前从未分配过的页面 ID。用于非分片的单实例
// 缓冲池；分片场景下每个分片维护自己的 id mod N == shard_index 计数器，
// 不经过这里（见 storage/buffer.shardAllocator）。
func (m *Manager) AllocatePage() common.PageID {
	return common.PageID(m.nextID.Add(1) - 1)
}

// DeallocatePage 记录一个页面 ID 已被释放。磁盘管理器不回收底层存储空间，
// 只是把 id 标记为可供诊断和测试观察的"已释放"状态。
func (m *Manager) DeallocatePage(id common.PageID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.freed[id] = struct{}{}
}

// IsDeallocated 报告一个页面 id 是否被 DeallocatePage 标记过，供测试使用。
func (m *Manager) IsDeallocated(id common.PageID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.freed[id]
	return ok
}

// Close 把映射的数据落盘并关闭底层文件。
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := mmap.Msync(m.data); err != nil {
		return err
	}
	if err := mmap.Munmap(m.data); err != nil {
		return err
	}
	return m.fd.Close()
}
