/*
Package hash 实现磁盘上的可扩展哈希索引：一个目录页加一组桶页，都以
缓冲池帧为存储介质，就地重新解释字节。

目录页和桶页都不拥有自己的缓冲池帧——调用方（ExtendibleHashTable）
负责 Fetch/Unpin，这里的类型只是对传入字节切片的一层带偏移量的视图。
*/
package hash

import (
	"encoding/binary"

	"github.com/util6/JadeDB/common"
)

// MaxDepth 是目录能达到的最大全局深度，取值使 bucket_page_ids 和
// local_depths 两个数组连同 8 字节头部一起刚好放进一个页面。
const MaxDepth = 9

// directoryArraySize 是 2^MaxDepth：bucket_page_ids / local_depths 两个
// 数组的物理容量，无论当前 global_depth 多少都固定不变；只有前
// 2^global_depth 项是"活的"。
const directoryArraySize = 1 << MaxDepth

const (
	dirOffPageID      = 0
	dirOffGlobalDepth = 4
	dirOffBucketIDs   = 8
	dirOffLocalDepths = dirOffBucketIDs + directoryArraySize*4
)

// DirectoryPage 是对一块页面大小字节缓冲区的视图，按固定线路格式解释：
// page_id(i32) | global_depth(u32) | bucket_page_ids(i32[512]) | local_depths(u8[512])。
type DirectoryPage struct {
	data []byte
}

// NewDirectoryPage 把 data（必须至少 dirOffLocalDepths+directoryArraySize 字节）
// 包装成一个目录页视图，不做任何初始化。
func NewDirectoryPage(data []byte) *DirectoryPage {
	return &DirectoryPage{data: data}
}

// Init 把目录页初始化为一个空目录：深度 0，bucket_page_ids 全部设为
// InvalidPageID，local_depths 全部清零。调用方随后必须填入槽 0 指向
// 的初始桶。
func (d *DirectoryPage) Init(pageID common.PageID) {
	binary.LittleEndian.PutUint32(d.data[dirOffPageID:], uint32(pageID))
	binary.LittleEndian.PutUint32(d.data[dirOffGlobalDepth:], 0)
	for i := 0; i < directoryArraySize; i++ {
		d.SetBucketPageID(i, common.InvalidPageID)
		d.SetLocalDepth(i, 0)
	}
}

func (d *DirectoryPage) PageID() common.PageID {
	return common.PageID(int32(binary.LittleEndian.Uint32(d.data[dirOffPageID:])))
}

func (d *DirectoryPage) GlobalDepth() uint32 {
	return binary.LittleEndian.Uint32(d.data[dirOffGlobalDepth:])
}

func (d *DirectoryPage) SetGlobalDepth(depth uint32) {
	binary.LittleEndian.PutUint32(d.data[dirOffGlobalDepth:], depth)
}

// Size 返回当前活跃的目录项数量，2^global_depth。
func (d *DirectoryPage) Size() int {
	return 1 << d.GlobalDepth()
}

// GetGlobalDepthMask 是 (1 << global_depth) - 1。
func (d *DirectoryPage) GetGlobalDepthMask() uint32 {
	return uint32(d.Size()) - 1
}

func (d *DirectoryPage) BucketPageID(i int) common.PageID {
	off := dirOffBucketIDs + i*4
	return common.PageID(int32(binary.LittleEndian.Uint32(d.data[off:])))
}

func (d *DirectoryPage) SetBucketPageID(i int, id common.PageID) {
	off := dirOffBucketIDs + i*4
	binary.LittleEndian.PutUint32(d.data[off:], uint32(int32(id)))
}

func (d *DirectoryPage) LocalDepth(i int) uint8 {
	return d.data[dirOffLocalDepths+i]
}

func (d *DirectoryPage) SetLocalDepth(i int, depth uint8) {
	d.data[dirOffLocalDepths+i] = depth
}

// KeyToDirectoryIndex 把一个 32 位哈希值映射到当前活跃目录项下标。
func (d *DirectoryPage) KeyToDirectoryIndex(hash uint32) int {
	return int(hash & d.GetGlobalDepthMask())
}

// GetSplitImageIndex 返回与下标 i 在其当前 local_depth 下配对的目录项，
// 即翻转 local_depth[i]-1 位。local_depth[i] == 0 时没有意义，调用方
// 应先检查。
func (d *DirectoryPage) GetSplitImageIndex(i int) int {
	ld := d.LocalDepth(i)
	if ld == 0 {
		return i
	}
	return i ^ (1 << (ld - 1))
}

// IncrGlobalDepth 把活跃前缀翻倍：新出现的每个下标 i（原范围之外）初始
// 别名到 i - 2^old_depth，指向同一个桶、拥有同样的 local_depth。
func (d *DirectoryPage) IncrGlobalDepth() {
	gd := d.GlobalDepth()
	size := 1 << gd
	for i := 0; i < size; i++ {
		d.SetBucketPageID(size+i, d.BucketPageID(i))
		d.SetLocalDepth(size+i, d.LocalDepth(i))
	}
	d.SetGlobalDepth(gd + 1)
}

// DecrGlobalDepth 把活跃前缀减半。调用方必须先用 CanShrink 确认合法。
func (d *DirectoryPage) DecrGlobalDepth() {
	gd := d.GlobalDepth()
	if gd == 0 {
		return
	}
	d.SetGlobalDepth(gd - 1)
}

// CanShrink 报告是否每一个活跃下标的 local_depth 都严格小于 global_depth，
// 也就是目录可以安全减半而不丢失任何一个仍然必要的区分位。
func (d *DirectoryPage) CanShrink() bool {
	gd := d.GlobalDepth()
	size := 1 << gd
	for i := 0; i < size; i++ {
		if uint32(d.LocalDepth(i)) >= gd {
			return false
		}
	}
	return true
}
