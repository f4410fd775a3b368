/*
Package transaction 实现事务状态模型：每个事务携带一个隔离级别、一个
两阶段加锁状态，以及它当前持有的共享/排他记录锁集合。事务本身不知道
怎么加锁——那是 concurrency 包的职责；这里只保存状态，供锁管理器在
wound-wait 决策时查询。
*/
package transaction

import (
	"sync"

	"github.com/util6/JadeDB/common"
)

// Transaction 是单个事务的运行时状态。TxnID 在创建时单调递增
// 分配，更小的 id 更老——wound-wait 据此判断谁该赢得冲突。
type Transaction struct {
	mu sync.RWMutex

	id           common.TxnID
	isolation    common.IsolationLevel
	state        common.TransactionState
	sharedSet    map[common.RID]struct{}
	exclusiveSet map[common.RID]struct{}
}

func newTransaction(id common.TxnID, isolation common.IsolationLevel) *Transaction {
	return &Transaction{
		id:           id,
		isolation:    isolation,
		state:        common.Growing,
		sharedSet:    make(map[common.RID]struct{}),
		exclusiveSet: make(map[common.RID]struct{}),
	}
}

func (t *Transaction) ID() common.TxnID { return t.id }

func (t *Transaction) Isolation() common.IsolationLevel { return t.isolation }

func (t *Transaction) State() common.TransactionState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

func (t *Transaction) setState(s common.TransactionState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = s
}

// BeginShrinking transitions a REPEATABLE_READ transaction from GROWING
// to SHRINKING on its first unlock. No-op for any other isolation
// level or state — the lock manager calls this unconditionally on every
// Unlock and relies on it being harmless when it doesn't apply.
func (t *Transaction) BeginShrinking() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isolation == common.RepeatableRead && t.state == common.Growing {
		t.state = common.Shrinking
	}
}

// AddSharedLock 和 AddExclusiveLock 由锁管理器在成功授予一个请求之后
// 调用，记录事务持有哪些 RID 的哪种锁。
func (t *Transaction) AddSharedLock(rid common.RID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sharedSet[rid] = struct{}{}
}

func (t *Transaction) AddExclusiveLock(rid common.RID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.exclusiveSet[rid] = struct{}{}
	delete(t.sharedSet, rid)
}

func (t *Transaction) RemoveLock(rid common.RID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sharedSet, rid)
	delete(t.exclusiveSet, rid)
}

// HasSharedLock 和 HasExclusiveLock 供测试和诊断查看事务当前持有的锁集合。
func (t *Transaction) HasSharedLock(rid common.RID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.sharedSet[rid]
	return ok
}

func (t *Transaction) HasExclusiveLock(rid common.RID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.exclusiveSet[rid]
	return ok
}
