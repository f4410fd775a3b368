/*
Package concurrency 实现两阶段加锁的记录级锁管理器。

核心特性：
 1. 共享/排他/升级三种请求，按到达顺序排队。
 2. wound-wait 死锁预防：更老的事务的请求与更年轻的事务冲突时，更年轻
    的一方被中止（wound）；更年轻的请求者则排队等待更老的一方，不会形成环路。
 3. 每个 RID 一条独立的请求队列，自带互斥锁和条件变量，避免所有 RID
    共用一把全局锁造成不必要的串行化。
 4. 不设超时——死锁由构造保证不会出现，等待者只会被授予锁或被 wound。
*/
package concurrency

import (
	"sync"

	"github.com/util6/JadeDB/common"
	"github.com/util6/JadeDB/transaction"
)

// LockMode 是请求的锁类型。
type LockMode int

const (
	Shared LockMode = iota
	Exclusive
)

func (m LockMode) String() string {
	if m == Exclusive {
		return "EXCLUSIVE"
	}
	return "SHARED"
}

func conflicts(a, b LockMode) bool {
	return a == Exclusive || b == Exclusive
}

// lockRequest 是队列里的一项：哪个事务、要什么模式、是否已经被授予。
type lockRequest struct {
	txnID   common.TxnID
	mode    LockMode
	granted bool
}

// lockRequestQueue 是单个 RID 上的请求队列：请求的到达顺序、正在进行中
// 的升级者（如果有）、以及队列自己的互斥锁和条件变量。
type lockRequestQueue struct {
	mu sync.Mutex
	cond *sync.Cond
	requests []*lockRequest
	upgrading common.TxnID
}

func newLockRequestQueue() *lockRequestQueue {
	q := &lockRequestQueue{upgrading: common.InvalidTxnID}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *lockRequestQueue) find(txnID common.TxnID) *lockRequest {
	for _, r := range q.requests {
		if r.txnID == txnID {
			return r
		}
	}
	return nil
}

func (q *lockRequestQueue) remove(req *lockRequest) {
	for i, r := range q.requests {
		if r == req {
			q.requests = append(q.requests[:i], q.requests[i+1:]...)
			return
		}
	}
}

// LockManager 按 RID 维护独立的请求队列，并通过 txnMgr 查询/中止对方
// 事务来实现 wound-wait。
type LockManager struct {
	txnMgr *transaction.Manager

	mu     sync.Mutex
	queues map[common.RID]*lockRequestQueue
}

func NewLockManager(txnMgr *transaction.Manager) *LockManager {
	return &LockManager{
		txnMgr: txnMgr,
		queues: make(map[common.RID]*lockRequestQueue),
	}
}

func (lm *LockManager) queueFor(rid common.RID) *lockRequestQueue {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	q, ok := lm.queues[rid]
	if !ok {
		q = newLockRequestQueue()
		lm.queues[rid] = q
	}
	return q
}

// wound 中止队列里每一个比 arrivingID 年轻、且与 arrivingMode 冲突的请求：
// 它们的事务被置为 ABORTED，granted 位被清除，然后队列的条件变量被唤醒，
// 让它们自己在等待循环里发现中止并退出。调用方必须持有 q.mu。
func (lm *LockManager) wound(q *lockRequestQueue, arrivingID common.TxnID, arrivingMode LockMode) {
	woundedAny := false
	for _, r := range q.requests {
		if r.txnID == arrivingID || r.txnID <= arrivingID {
			continue
		}
		if !conflicts(arrivingMode, r.mode) {
			continue
		}
		if victim, ok := lm.txnMgr.GetTransaction(r.txnID); ok {
			lm.txnMgr.Abort(victim)
		}
		r.granted = false
		woundedAny = true
	}
	if woundedAny {
		q.cond.Broadcast()
	}
}

// canGrantShared 报告是否没有比 txnID 更老的请求持有或等待排他锁。
func (lm *LockManager) canGrantShared(q *lockRequestQueue, txnID common.TxnID) bool {
	for _, r := range q.requests {
		if r.txnID == txnID {
			continue
		}
		if r.mode == Exclusive && r.txnID < txnID {
			return false
		}
	}
	return true
}

// canGrantExclusive 报告是否没有比 txnID 更老的请求持有或等待任意锁。
func (lm *LockManager) canGrantExclusive(q *lockRequestQueue, txnID common.TxnID) bool {
	for _, r := range q.requests {
		if r.txnID == txnID {
			continue
		}
		if r.txnID < txnID {
			return false
		}
	}
	return true
}

// precheck 执行每次加锁前公共的状态检查。返回非 nil
// 错误时调用方必须原样把它作为 LockShared/LockExclusive/LockUpgrade 的
// 返回值传播；abortedAlready 为 true 时调用方应直接返回 (false, nil)。
func (lm *LockManager) precheck(txn *transaction.Transaction, mode LockMode) (abortedAlready bool, err error) {
	if txn.State() == common.Aborted {
		return true, nil
	}
	if txn.State() == common.Shrinking {
		lm.txnMgr.Abort(txn)
		return false, &common.TransactionAbortedError{TxnID: txn.ID(), Reason: common.LockOnShrinking}
	}
	if mode == Shared && txn.Isolation() == common.ReadUncommitted {
		lm.txnMgr.Abort(txn)
		return false, &common.TransactionAbortedError{TxnID: txn.ID(), Reason: common.LockSharedOnReadUncommitted}
	}
	return false, nil
}

// LockShared requests a shared lock on rid for txn, blocking until
// granted, wounded, or rejected by a pre-check.
func (lm *LockManager) LockShared(txn *transaction.Transaction, rid common.RID) (bool, error) {
	if aborted, err := lm.precheck(txn, Shared); aborted || err != nil {
		return false, err
	}

	q := lm.queueFor(rid)
	q.mu.Lock()
	defer q.mu.Unlock()

	req := &lockRequest{txnID: txn.ID(), mode: Shared}
	q.requests = append(q.requests, req)
	lm.wound(q, txn.ID(), Shared)

	for {
		if txn.State() == common.Aborted {
			q.remove(req)
			q.cond.Broadcast()
			return false, nil
		}
		if lm.canGrantShared(q, txn.ID()) {
			req.granted = true
			txn.AddSharedLock(rid)
			return true, nil
		}
		q.cond.Wait()
	}
}

// LockExclusive requests an exclusive lock on rid for txn, blocking
// until granted, wounded, or rejected by a pre-check.
func (lm *LockManager) LockExclusive(txn *transaction.Transaction, rid common.RID) (bool, error) {
	if aborted, err := lm.precheck(txn, Exclusive); aborted || err != nil {
		return false, err
	}

	q := lm.queueFor(rid)
	q.mu.Lock()
	defer q.mu.Unlock()

	req := &lockRequest{txnID: txn.ID(), mode: Exclusive}
	q.requests = append(q.requests, req)
	lm.wound(q, txn.ID(), Exclusive)

	for {
		if txn.State() == common.Aborted {
			q.remove(req)
			q.cond.Broadcast()
			return false, nil
		}
		if lm.canGrantExclusive(q, txn.ID()) {
			req.granted = true
			txn.AddExclusiveLock(rid)
			return true, nil
		}
		q.cond.Wait()
	}
}

// LockUpgrade converts txn's granted shared request on rid into an
// exclusive one. Only one upgrade may be in flight per RID at a time.
// Returns false if the current request is missing, not granted, or
// already exclusive.
func (lm *LockManager) LockUpgrade(txn *transaction.Transaction, rid common.RID) (bool, error) {
	if aborted, err := lm.precheck(txn, Exclusive); aborted || err != nil {
		return false, err
	}

	q := lm.queueFor(rid)
	q.mu.Lock()
	defer q.mu.Unlock()

	req := q.find(txn.ID())
	if req == nil || !req.granted || req.mode == Exclusive {
		return false, nil
	}
	if q.upgrading != common.InvalidTxnID {
		lm.txnMgr.Abort(txn)
		return false, &common.TransactionAbortedError{TxnID: txn.ID(), Reason: common.UpgradeConflict}
	}

	q.upgrading = txn.ID()
	req.mode = Exclusive
	req.granted = false
	lm.wound(q, txn.ID(), Exclusive)

	for {
		if txn.State() == common.Aborted {
			q.remove(req)
			q.upgrading = common.InvalidTxnID
			q.cond.Broadcast()
			return false, nil
		}
		if lm.canGrantExclusive(q, txn.ID()) {
			req.granted = true
			q.upgrading = common.InvalidTxnID
			txn.AddExclusiveLock(rid)
			return true, nil
		}
		q.cond.Wait()
	}
}

// Unlock releases txn's request on rid. Under REPEATABLE_READ this is
// the transition point from GROWING to SHRINKING, but only on the
// first unlock. Returns false if no request is present.
func (lm *LockManager) Unlock(txn *transaction.Transaction, rid common.RID) bool {
	q := lm.queueFor(rid)
	q.mu.Lock()
	defer q.mu.Unlock()

	req := q.find(txn.ID())
	if req == nil {
		return false
	}

	txn.BeginShrinking()
	q.remove(req)
	q.cond.Broadcast()
	txn.RemoveLock(rid)
	return true
}
