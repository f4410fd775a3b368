package buffer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/util6/JadeDB/common"
	"github.com/util6/JadeDB/storage/page"
)

// fakeDisk is an in-memory DiskManager stand-in that records every
// WritePage call so tests can assert on write-back behavior precisely.
type fakeDisk struct {
	mu       sync.Mutex
	pages    map[common.PageID][page.Size]byte
	nextID   int64
	writes   []common.PageID
	deallocs []common.PageID
}

func newFakeDisk() *fakeDisk {
	return &fakeDisk{pages: make(map[common.PageID][page.Size]byte)}
}

func (d *fakeDisk) ReadPage(id common.PageID, buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if data, ok := d.pages[id]; ok {
		copy(buf, data[:])
	}
	return nil
}

func (d *fakeDisk) WritePage(id common.PageID, buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var data [page.Size]byte
	copy(data[:], buf)
	d.pages[id] = data
	d.writes = append(d.writes, id)
	return nil
}

func (d *fakeDisk) AllocatePage() common.PageID {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextID
	d.nextID++
	return common.PageID(id)
}

func (d *fakeDisk) DeallocatePage(id common.PageID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deallocs = append(d.deallocs, id)
}

func (d *fakeDisk) writeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.writes)
}

// TestNewPageFillsFreeListBeforeEviction checks that fresh instances serve
// NewPage from the free list without touching the replacer at all.
func TestNewPageFillsFreeListBeforeEviction(t *testing.T) {
	disk := newFakeDisk()
	inst := NewInstance(2, disk, nil)

	f1, id1 := inst.NewPage()
	require.NotNil(t, f1)
	f2, id2 := inst.NewPage()
	require.NotNil(t, f2)
	assert.NotEqual(t, id1, id2)

	_, id3 := inst.NewPage()
	assert.Equal(t, common.InvalidPageID, id3, "pool exhausted, both frames still pinned")
}

// TestEvictionPicksCleanVictimWithoutWriteBack covers the scenario where
// the buffer pool must evict to satisfy a NewPage request: a clean victim
// is reused without any disk write.
func TestEvictionPicksCleanVictimWithoutWriteBack(t *testing.T) {
	disk := newFakeDisk()
	inst := NewInstance(1, disk, nil)

	_, id1 := inst.NewPage()
	require.True(t, inst.UnpinPage(id1, false))

	f2, id2 := inst.NewPage()
	require.NotNil(t, f2)
	assert.NotEqual(t, id1, id2)
	assert.False(t, inst.IsResident(id1))
	assert.Equal(t, 0, disk.writeCount(), "clean victim must not be flushed")
}

// TestFetchPageWritesBackExactlyOnceWhenVictimIsDirty covers fetching a
// page that is not resident while the only evictable frame holds a dirty
// page: the dirty page must be written back exactly once before the new
// page is read in.
func TestFetchPageWritesBackExactlyOnceWhenVictimIsDirty(t *testing.T) {
	disk := newFakeDisk()
	inst := NewInstance(1, disk, nil)

	f1, id1 := inst.NewPage()
	f1.Data[0] = 0x7A
	require.True(t, inst.UnpinPage(id1, true))

	id2 := disk.AllocatePage()
	f2 := inst.FetchPage(id2)
	require.NotNil(t, f2)

	assert.Equal(t, 1, disk.writeCount())
	assert.Equal(t, []common.PageID{id1}, disk.writes)
	assert.False(t, inst.IsResident(id1))
	assert.True(t, inst.IsResident(id2))
}

func TestFetchPageHitDoesNotTouchDisk(t *testing.T) {
	disk := newFakeDisk()
	inst := NewInstance(2, disk, nil)

	_, id1 := inst.NewPage()
	require.True(t, inst.UnpinPage(id1, false))

	f := inst.FetchPage(id1)
	require.NotNil(t, f)
	hit, miss := inst.Stats()
	assert.Equal(t, int64(1), hit)
	assert.Equal(t, int64(0), miss)
}

func TestUnpinPageReturnsFalseWhenNotResident(t *testing.T) {
	disk := newFakeDisk()
	inst := NewInstance(1, disk, nil)
	assert.False(t, inst.UnpinPage(common.PageID(999), false))
}

func TestDeletePageRejectsPinnedPage(t *testing.T) {
	disk := newFakeDisk()
	inst := NewInstance(1, disk, nil)
	_, id := inst.NewPage()
	assert.False(t, inst.DeletePage(id))

	require.True(t, inst.UnpinPage(id, false))
	assert.True(t, inst.DeletePage(id))
	assert.False(t, inst.IsResident(id))
	assert.Equal(t, []common.PageID{id}, disk.deallocs)
}

func TestFlushAllPagesWritesEveryResidentPage(t *testing.T) {
	disk := newFakeDisk()
	inst := NewInstance(3, disk, nil)

	_, id1 := inst.NewPage()
	_, id2 := inst.NewPage()
	require.True(t, inst.UnpinPage(id1, false))
	require.True(t, inst.UnpinPage(id2, false))

	inst.FlushAllPages()
	assert.ElementsMatch(t, []common.PageID{id1, id2}, disk.writes)
}
