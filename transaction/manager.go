package transaction

import (
	"sync"
	"sync/atomic"

	"github.com/util6/JadeDB/common"
)

// Manager 是所有活跃事务的全局注册表。锁管理器通过它按 id 查找事务，在 wound-wait 决策里读取
// 和修改对方的状态。一个事务的生命期必须覆盖它在任何锁队列里出现的
// 时间——Commit/Abort 并不从注册表里删除记录，只是翻转状态，所以
// 迟到的查找永远能看到一个有效的终态而不是 nil。
type Manager struct {
	mu       sync.RWMutex
	txns     map[common.TxnID]*Transaction
	nextTxID atomic.Int64
}

func NewManager() *Manager {
	return &Manager{txns: make(map[common.TxnID]*Transaction)}
}

// Begin 创建一个新事务，分配下一个单调递增的 TxnID 并以 GROWING 状态
// 注册它。
func (m *Manager) Begin(isolation common.IsolationLevel) *Transaction {
	id := common.TxnID(m.nextTxID.Add(1) - 1)
	txn := newTransaction(id, isolation)

	m.mu.Lock()
	m.txns[id] = txn
	m.mu.Unlock()
	return txn
}

// GetTransaction 按 id 查找事务，供锁管理器做 wound-wait 比较。
func (m *Manager) GetTransaction(id common.TxnID) (*Transaction, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	txn, ok := m.txns[id]
	return txn, ok
}

// Commit 把事务置为 COMMITTED。调用方必须已经通过锁管理器释放了它持有
// 的所有锁。
func (m *Manager) Commit(txn *Transaction) {
	txn.setState(common.Committed)
}

// Abort 把事务置为 ABORTED。
func (m *Manager) Abort(txn *Transaction) {
	txn.setState(common.Aborted)
}
