package hash

import (
	"encoding/binary"

	"github.com/util6/JadeDB/common"
)

// BucketArraySize is chosen so that two arity-matched bitmaps plus the
// (Key, Value) array fit in one page: 200*entrySize + 2*ceil(200/8) = 4050 bytes,
// comfortably under the 4096-byte page size.
const BucketArraySize = 200

const keySize = 8 // int64
const valueSize = 12 // common.RID: PageID(int64 truncated to i32 on disk) + Slot(uint32), then 4 unused bytes
const entrySize = keySize + valueSize

const (
	bucketOffOccupied = 0
	bucketOffReadable = bucketOffOccupied + (BucketArraySize+7)/8
	bucketOffArray    = bucketOffReadable + (BucketArraySize+7)/8
)

// KeyComparator returns zero when a and b are equal, non-zero otherwise.
type KeyComparator func(a, b int64) int

// DefaultComparator orders keys numerically.
func DefaultComparator(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// InsertResult distinguishes the three outcomes BucketPage.Insert can
// produce, so the table layer can tell "reject, duplicate" from
// "reject, full".
type InsertResult int

const (
	InsertOK InsertResult = iota
	InsertDuplicate
	InsertFull
)

// BucketPage is a view over a page-sized buffer laid out as two bitmaps
// (occupied, readable) followed by a dense (Key, Value) array, all with
// arity BucketArraySize. Bit i of a bitmap lives in byte
// i/8 at offset i%8, little-endian within the byte.
type BucketPage struct {
	data []byte
}

func NewBucketPage(data []byte) *BucketPage {
	return &BucketPage{data: data}
}

// Init zeroes both bitmaps, leaving every slot unoccupied and unreadable.
func (b *BucketPage) Init() {
	for i := bucketOffOccupied; i < bucketOffArray; i++ {
		b.data[i] = 0
	}
}

func (b *BucketPage) IsOccupied(i int) bool {
	return b.data[bucketOffOccupied+i/8]&(1<<uint(i%8)) != 0
}

func (b *BucketPage) setBit(base, i int, v bool) {
	byteOff := base + i/8
	mask := byte(1 << uint(i%8))
	if v {
		b.data[byteOff] |= mask
	} else {
		b.data[byteOff] &^= mask
	}
}

func (b *BucketPage) SetOccupied(i int, v bool) {
	b.setBit(bucketOffOccupied, i, v)
}

func (b *BucketPage) IsReadable(i int) bool {
	return b.data[bucketOffReadable+i/8]&(1<<uint(i%8)) != 0
}

func (b *BucketPage) SetReadable(i int, v bool) {
	b.setBit(bucketOffReadable, i, v)
}

func (b *BucketPage) slotOffset(i int) int {
	return bucketOffArray + i*entrySize
}

func (b *BucketPage) KeyAt(i int) int64 {
	off := b.slotOffset(i)
	return int64(binary.LittleEndian.Uint64(b.data[off:]))
}

func (b *BucketPage) ValueAt(i int) common.RID {
	off := b.slotOffset(i) + keySize
	pageID := common.PageID(int32(binary.LittleEndian.Uint32(b.data[off:])))
	slot := binary.LittleEndian.Uint32(b.data[off+4:])
	return common.RID{PageID: pageID, Slot: slot}
}

// SetEntry writes key and value into slot i without touching either
// bitmap; callers set occupied/readable themselves.
func (b *BucketPage) SetEntry(i int, key int64, value common.RID) {
	off := b.slotOffset(i)
	binary.LittleEndian.PutUint64(b.data[off:], uint64(key))
	binary.LittleEndian.PutUint32(b.data[off+keySize:], uint32(int32(value.PageID)))
	binary.LittleEndian.PutUint32(b.data[off+keySize+4:], value.Slot)
}

// ClearSlot resets both bitmap bits for slot i.
func (b *BucketPage) ClearSlot(i int) {
	b.SetOccupied(i, false)
	b.SetReadable(i, false)
}

// IsFull reports whether every slot is readable.
func (b *BucketPage) IsFull() bool {
	for i := 0; i < BucketArraySize; i++ {
		if !b.IsReadable(i) {
			return false
		}
	}
	return true
}

// IsEmpty reports whether no slot is readable.
func (b *BucketPage) IsEmpty() bool {
	for i := 0; i < BucketArraySize; i++ {
		if b.IsReadable(i) {
			return false
		}
	}
	return true
}

// OccupiedSlots returns the indices of every readable slot, in order.
func (b *BucketPage) OccupiedSlots() []int {
	var slots []int
	for i := 0; i < BucketArraySize; i++ {
		if b.IsReadable(i) {
			slots = append(slots, i)
		}
	}
	return slots
}

// Insert rejects a duplicate (key, value) pair, rejects a full bucket,
// and otherwise places the pair in the first non-readable slot, setting
// both bits.
func (b *BucketPage) Insert(key int64, value common.RID, cmp KeyComparator) InsertResult {
	firstFree := -1
	for i := 0; i < BucketArraySize; i++ {
		if b.IsReadable(i) {
			if cmp(b.KeyAt(i), key) == 0 && b.ValueAt(i) == value {
				return InsertDuplicate
			}
		} else if firstFree == -1 {
			firstFree = i
		}
	}
	if firstFree == -1 {
		return InsertFull
	}
	b.SetEntry(firstFree, key, value)
	b.SetOccupied(firstFree, true)
	b.SetReadable(firstFree, true)
	return InsertOK
}

// Remove clears the readable bit of the slot holding (key, value) under
// cmp. Returns false if no such slot exists.
func (b *BucketPage) Remove(key int64, value common.RID, cmp KeyComparator) bool {
	for i := 0; i < BucketArraySize; i++ {
		if b.IsReadable(i) && cmp(b.KeyAt(i), key) == 0 && b.ValueAt(i) == value {
			b.SetReadable(i, false)
			return true
		}
	}
	return false
}
