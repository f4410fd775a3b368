/*
Package page 定义了缓冲池帧持有的固定大小页面缓冲区。

页面本身不知道自己存的是目录页、桶页还是别的布局——更高层（index/hash）
把 Data 字节切片原地重新解释成自己的结构。这里只负责页面大小、帧元数据
和引用计数，与 InnoDB/BusTub 风格的缓冲池一致。
*/
package page

import (
	"sync/atomic"

	"github.com/util6/JadeDB/common"
)

// Size 是一个页面的字节数。4KB 与磁盘/操作系统页对齐，足够容纳一个
// 目录页（512 个 (int32,uint8) 槽）或一个定长 (Key,Value) 数组的桶页。
const Size = 4096

// Frame 是缓冲池中的一个驻留槽位：一块固定大小的字节缓冲区，加上
// 描述它当前持有哪个页面、是否被修改、有多少个使用者的元数据。
//
// 不变式：
// - page_id == InvalidPageID 时帧为空闲。
// - pin_count > 0 的帧永远不出现在替换器里。
// - 脏数据在帧被另一个页面复用前必须先写回磁盘。
type Frame struct {
	ID   common.FrameID
	Data [Size]byte

	pageID   common.PageID
	pinCount int32
	dirty    bool
}

// NewFrame 创建一个空闲帧（page_id 为 InvalidPageID，未钉住，不脏）。
func NewFrame(id common.FrameID) *Frame {
	return &Frame{ID: id, pageID: common.InvalidPageID}
}

func (f *Frame) PageID() common.PageID { return f.pageID }

func (f *Frame) IsDirty() bool { return f.dirty }

func (f *Frame) SetDirty(dirty bool) { f.dirty = dirty }

// PinCount 返回当前的钉住计数，永不为负。
func (f *Frame) PinCount() int32 { return atomic.LoadInt32(&f.pinCount) }

// Pin 把钉住计数加一，阻止帧被替换器选中。
func (f *Frame) Pin() { atomic.AddInt32(&f.pinCount, 1) }

// Unpin 把钉住计数减一。调用方必须保证计数不会下溢。
func (f *Frame) Unpin() {
	if atomic.AddInt32(&f.pinCount, -1) < 0 {
		atomic.StoreInt32(&f.pinCount, 0)
	}
}

// Reset 清空帧的内容，绑定到 pageID，钉住计数归零、脏位清除。调用方
// 随后要么直接 Pin（NewPage，数据留空白），要么 LoadFrom（FetchPage，
// 数据来自磁盘）。
func (f *Frame) Reset(pageID common.PageID) {
	for i := range f.Data {
		f.Data[i] = 0
	}
	f.pageID = pageID
	f.pinCount = 0
	f.dirty = false
}

// LoadFrom 把 data 拷贝进帧缓冲区并把钉住计数设为 1。调用方必须先
// Reset 过这个帧。
func (f *Frame) LoadFrom(data []byte) {
	copy(f.Data[:], data)
	f.pinCount = 1
}
