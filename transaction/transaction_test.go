package transaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/util6/JadeDB/common"
)

func TestNewTransactionStartsGrowing(t *testing.T) {
	txn := newTransaction(1, common.RepeatableRead)
	assert.Equal(t, common.TxnID(1), txn.ID())
	assert.Equal(t, common.RepeatableRead, txn.Isolation())
	assert.Equal(t, common.Growing, txn.State())
}

func TestBeginShrinkingOnlyAffectsRepeatableReadGrowing(t *testing.T) {
	txn := newTransaction(1, common.RepeatableRead)
	txn.BeginShrinking()
	assert.Equal(t, common.Shrinking, txn.State())

	txn.BeginShrinking() // already shrinking, no-op
	assert.Equal(t, common.Shrinking, txn.State())
}

func TestBeginShrinkingIsNoopForOtherIsolationLevels(t *testing.T) {
	txn := newTransaction(1, common.ReadCommitted)
	txn.BeginShrinking()
	assert.Equal(t, common.Growing, txn.State())
}

func TestAddAndRemoveLocksTrackMembership(t *testing.T) {
	txn := newTransaction(1, common.RepeatableRead)
	rid := common.RID{PageID: 1, Slot: 0}

	txn.AddSharedLock(rid)
	assert.True(t, txn.HasSharedLock(rid))

	txn.RemoveLock(rid)
	assert.False(t, txn.HasSharedLock(rid))
}

func TestAddExclusiveLockClearsSharedLockOnSameRID(t *testing.T) {
	txn := newTransaction(1, common.RepeatableRead)
	rid := common.RID{PageID: 1, Slot: 0}

	txn.AddSharedLock(rid)
	txn.AddExclusiveLock(rid)

	require.True(t, txn.HasExclusiveLock(rid))
	assert.False(t, txn.HasSharedLock(rid))
}
