/*
Package buffer 实现固定帧数组的缓冲池：一个 LRU 替换器、单实例缓冲池，
以及把页面 ID 空间分片到多个实例上的并行前端。
*/
package buffer

import (
	"container/list"
	"sync"

	"github.com/util6/JadeDB/common"
)

// LRUReplacer 维护一组"未被钉住、可被驱逐"的帧，按照变成未钉住的先后
// 顺序排列。Unpin 把帧放到队尾（最近被释放的），Victim 从队首取走
// （最早被释放的），构成未钉住帧之间的严格 FIFO。
//
// 调用方保证集合大小永远不超过 pool_size：每个帧最多在替换器里出现
// 一次，且帧总数是固定的。
type LRUReplacer struct {
	mu    sync.Mutex
	order *list.List
	index map[common.FrameID]*list.Element
}

// NewLRUReplacer 创建一个空的替换器。
func NewLRUReplacer() *LRUReplacer {
	return &LRUReplacer{
		order: list.New(),
		index: make(map[common.FrameID]*list.Element),
	}
}

// Victim 移除并返回最早被释放的帧。替换器为空时返回 (0, false)。
func (r *LRUReplacer) Victim() (common.FrameID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	front := r.order.Front()
	if front == nil {
		return 0, false
	}
	fid := front.Value.(common.FrameID)
	r.order.Remove(front)
	delete(r.index, fid)
	return fid, true
}

// Pin 把 fid 从替换器里移除：调用方要开始使用这个帧了，它不再是驱逐
// 候选。fid 不在替换器里时什么也不做。
func (r *LRUReplacer) Pin(fid common.FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if el, ok := r.index[fid]; ok {
		r.order.Remove(el)
		delete(r.index, fid)
	}
}

// Unpin 把 fid 加到替换器队尾。fid 已经在替换器里时是无操作——一个帧
// 不会被计两次。
func (r *LRUReplacer) Unpin(fid common.FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.index[fid]; ok {
		return
	}
	r.index[fid] = r.order.PushBack(fid)
}

// Size 返回当前可驱逐的帧数量。
func (r *LRUReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.order.Len()
}
