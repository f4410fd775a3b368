package hash

import (
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/util6/JadeDB/common"
	"github.com/util6/JadeDB/storage/page"
)

// BufferPoolManager is the subset of the buffer pool's public contract
// the hash index needs. Both buffer.Instance and
// buffer.ParallelBufferPoolManager satisfy it.
type BufferPoolManager interface {
	NewPage() (*page.Frame, common.PageID)
	FetchPage(id common.PageID) *page.Frame
	UnpinPage(id common.PageID, isDirty bool) bool
	DeletePage(id common.PageID) bool
}

// hash32 computes the 32-bit hash KeyToDirectoryIndex consumes: xxhash
// over the key's 8-byte little-endian encoding, truncated to its low 32
// bits.
func hash32(key int64) uint32 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(key))
	return uint32(xxhash.Sum64(buf[:]))
}

// ExtendibleHashTable is an on-disk hash index: one directory page
// fanning out to many bucket pages, all stored as buffer-pool frames
// and mutated in place. A single reader-writer latch guards
// directory structure changes; concurrent readers only need a shared
// hold while they walk to a bucket.
type ExtendibleHashTable struct {
	mu              sync.RWMutex
	bpm             BufferPoolManager
	directoryPageID common.PageID
	cmp             KeyComparator
}

// NewExtendibleHashTable allocates a fresh directory page and a single
// initial bucket at depth 0, both pinned-then-unpinned through bpm.
func NewExtendibleHashTable(bpm BufferPoolManager, cmp KeyComparator) *ExtendibleHashTable {
	if cmp == nil {
		cmp = DefaultComparator
	}

	dirFrame, dirID := bpm.NewPage()
	dir := NewDirectoryPage(dirFrame.Data[:])
	dir.Init(dirID)

	bucketFrame, bucketID := bpm.NewPage()
	bucket := NewBucketPage(bucketFrame.Data[:])
	bucket.Init()
	dir.SetBucketPageID(0, bucketID)
	dir.SetLocalDepth(0, 0)

	bpm.UnpinPage(bucketID, true)
	bpm.UnpinPage(dirID, true)

	return &ExtendibleHashTable{bpm: bpm, directoryPageID: dirID, cmp: cmp}
}

// bucketForLocked fetches the directory, resolves key to its bucket id
// and directory index, and unpins the directory (read-only). Caller
// must hold t.mu in some mode.
func (t *ExtendibleHashTable) bucketForLocked(key int64) (idx int, bucketID common.PageID) {
	dirFrame := t.bpm.FetchPage(t.directoryPageID)
	dir := NewDirectoryPage(dirFrame.Data[:])
	idx = dir.KeyToDirectoryIndex(hash32(key))
	bucketID = dir.BucketPageID(idx)
	t.bpm.UnpinPage(t.directoryPageID, false)
	return idx, bucketID
}

// GetValue returns every value stored under key, true iff at least one
// match exists.
func (t *ExtendibleHashTable) GetValue(key int64) ([]common.RID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, bucketID := t.bucketForLocked(key)
	bucketFrame := t.bpm.FetchPage(bucketID)
	if bucketFrame == nil {
		return nil, false
	}
	bucket := NewBucketPage(bucketFrame.Data[:])

	var values []common.RID
	for _, slot := range bucket.OccupiedSlots() {
		if t.cmp(bucket.KeyAt(slot), key) == 0 {
			values = append(values, bucket.ValueAt(slot))
		}
	}
	t.bpm.UnpinPage(bucketID, false)
	return values, len(values) > 0
}

// Insert places (key, value) in the table, splitting buckets as needed.
// Returns false on a duplicate pair or on directory exhaustion.
func (t *ExtendibleHashTable) Insert(key int64, value common.RID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.insertLocked(key, value)
}

func (t *ExtendibleHashTable) insertLocked(key int64, value common.RID) bool {
	_, bucketID := t.bucketForLocked(key)

	bucketFrame := t.bpm.FetchPage(bucketID)
	if bucketFrame == nil {
		return false
	}
	bucket := NewBucketPage(bucketFrame.Data[:])
	result := bucket.Insert(key, value, t.cmp)
	switch result {
	case InsertOK:
		t.bpm.UnpinPage(bucketID, true)
		return true
	case InsertDuplicate:
		t.bpm.UnpinPage(bucketID, false)
		return false
	default: // InsertFull
		t.bpm.UnpinPage(bucketID, false)
		return t.splitInsertLocked(key, value)
	}
}

// splitInsertLocked implements SplitInsert: grow the directory if
// the splitting bucket is already at the global depth, allocate a
// sibling bucket, redirect every directory slot that used to alias the
// old bucket but now belongs to the sibling, rehash the old bucket's
// entries across the split, and retry the insert (which recurses into
// another split if the target bucket is still full).
func (t *ExtendibleHashTable) splitInsertLocked(key int64, value common.RID) bool {
	dirFrame := t.bpm.FetchPage(t.directoryPageID)
	dir := NewDirectoryPage(dirFrame.Data[:])

	idx := dir.KeyToDirectoryIndex(hash32(key))
	ld := uint32(dir.LocalDepth(idx))
	gd := dir.GlobalDepth()

	if ld == gd {
		if dir.Size()*2 > directoryArraySize {
			t.bpm.UnpinPage(t.directoryPageID, false)
			return false
		}
		dir.IncrGlobalDepth()
	}

	oldBucketID := dir.BucketPageID(idx)
	newFrame, newBucketID := t.bpm.NewPage()
	if newBucketID == common.InvalidPageID {
		t.bpm.UnpinPage(t.directoryPageID, false)
		return false
	}
	newBucket := NewBucketPage(newFrame.Data[:])
	newBucket.Init()

	newLocalDepth := uint8(ld + 1)
	splitBit := 1 << ld
	size := dir.Size()
	for i := 0; i < size; i++ {
		if dir.BucketPageID(i) != oldBucketID {
			continue
		}
		if i&splitBit != idx&splitBit {
			dir.SetBucketPageID(i, newBucketID)
		}
		dir.SetLocalDepth(i, newLocalDepth)
	}

	oldFrame := t.bpm.FetchPage(oldBucketID)
	oldBucket := NewBucketPage(oldFrame.Data[:])
	for _, slot := range oldBucket.OccupiedSlots() {
		k := oldBucket.KeyAt(slot)
		v := oldBucket.ValueAt(slot)
		target := dir.KeyToDirectoryIndex(hash32(k))
		if dir.BucketPageID(target) == newBucketID {
			newBucket.SetEntry(slot, k, v)
			newBucket.SetOccupied(slot, true)
			newBucket.SetReadable(slot, true)
			oldBucket.ClearSlot(slot)
		}
	}
	t.bpm.UnpinPage(oldBucketID, true)
	t.bpm.UnpinPage(newBucketID, true)
	t.bpm.UnpinPage(t.directoryPageID, true)

	return t.insertLocked(key, value)
}

// Remove deletes the slot holding (key, value), cascading into Merge
// when the bucket it lived in becomes empty.
func (t *ExtendibleHashTable) Remove(key int64, value common.RID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx, bucketID := t.bucketForLocked(key)

	bucketFrame := t.bpm.FetchPage(bucketID)
	if bucketFrame == nil {
		return false
	}
	bucket := NewBucketPage(bucketFrame.Data[:])
	removed := bucket.Remove(key, value, t.cmp)
	empty := removed && bucket.IsEmpty()
	t.bpm.UnpinPage(bucketID, removed)

	if empty {
		t.mergeLocked(idx)
	}
	return removed
}

// mergeLocked implements Merge, including the cascading re-check:
// after folding an empty bucket into its split image and (if every
// entry now has slack) halving the directory, the bucket that ends up
// at the image's new index may itself be empty, so the loop tries
// again from there.
func (t *ExtendibleHashTable) mergeLocked(idx int) {
	for {
		dirFrame := t.bpm.FetchPage(t.directoryPageID)
		dir := NewDirectoryPage(dirFrame.Data[:])

		ld := dir.LocalDepth(idx)
		if ld == 0 {
			t.bpm.UnpinPage(t.directoryPageID, false)
			return
		}
		img := dir.GetSplitImageIndex(idx)
		emptyBucketID := dir.BucketPageID(idx)
		imgBucketID := dir.BucketPageID(img)
		if dir.LocalDepth(img) != ld || emptyBucketID == imgBucketID {
			t.bpm.UnpinPage(t.directoryPageID, false)
			return
		}

		newLD := ld - 1
		size := dir.Size()
		for i := 0; i < size; i++ {
			if dir.BucketPageID(i) == emptyBucketID || dir.BucketPageID(i) == imgBucketID {
				dir.SetBucketPageID(i, imgBucketID)
				dir.SetLocalDepth(i, newLD)
			}
		}
		t.bpm.DeletePage(emptyBucketID)

		canShrink := dir.CanShrink()
		if canShrink {
			dir.DecrGlobalDepth()
		}
		nextIdx := img % dir.Size()
		t.bpm.UnpinPage(t.directoryPageID, true)

		if !canShrink {
			return
		}

		nextBucketID := t.directoryBucketPageID(nextIdx)
		bucketFrame := t.bpm.FetchPage(nextBucketID)
		if bucketFrame == nil {
			return
		}
		bucket := NewBucketPage(bucketFrame.Data[:])
		empty := bucket.IsEmpty()
		t.bpm.UnpinPage(nextBucketID, false)
		if !empty {
			return
		}
		idx = nextIdx
	}
}

func (t *ExtendibleHashTable) directoryBucketPageID(i int) common.PageID {
	dirFrame := t.bpm.FetchPage(t.directoryPageID)
	dir := NewDirectoryPage(dirFrame.Data[:])
	id := dir.BucketPageID(i)
	t.bpm.UnpinPage(t.directoryPageID, false)
	return id
}

// GlobalDepth returns the directory's current global depth, mainly for
// tests observing split/merge behavior.
func (t *ExtendibleHashTable) GlobalDepth() uint32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	dirFrame := t.bpm.FetchPage(t.directoryPageID)
	dir := NewDirectoryPage(dirFrame.Data[:])
	gd := dir.GlobalDepth()
	t.bpm.UnpinPage(t.directoryPageID, false)
	return gd
}
