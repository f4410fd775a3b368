package common

import "github.com/pkg/errors"

// 缓冲池和磁盘层的哨兵错误。目前没有任何函数返回它们：缓冲池用 nil 帧或
// false 报告这些情况，磁盘管理器把从未写过的页面读作全零。
var (
	// ErrBufferPoolFull 表示一个缓冲池实例里所有帧都被钉住，无法腾出受害者帧。
	ErrBufferPoolFull = errors.New("buffer pool: no evictable frame, all frames pinned")

	// ErrPagePinned 表示尝试删除一个 pin_count > 0 的常驻页面。
	ErrPagePinned = errors.New("buffer pool: page is pinned")

	// ErrPageNotFound 表示磁盘管理器里不存在请求的页面。
	ErrPageNotFound = errors.New("disk manager: page not found")
)

// AbortReason 标记锁管理器为什么把一个事务置为 ABORTED。
type AbortReason int

const (
	_ AbortReason = iota
	// UpgradeConflict 同一 RID 上已经有另一个进行中的升级请求。
	UpgradeConflict
	// LockOnShrinking 事务处于 SHRINKING 状态时还尝试获取新锁。
	LockOnShrinking
	// LockSharedOnReadUncommitted READ_UNCOMMITTED 下请求共享锁。
	LockSharedOnReadUncommitted
	// Deadlock 事务在 wound-wait 中被更年轻的持有者阻塞致死（预留，当前实现里
	// 死锁总是在请求时刻被 wound-wait 规则提前避免，不会真正触发）。
	Deadlock
)

func (r AbortReason) String() string {
	switch r {
	case UpgradeConflict:
		return "UPGRADE_CONFLICT"
	case LockOnShrinking:
		return "LOCK_ON_SHRINKING"
	case LockSharedOnReadUncommitted:
		return "LOCKSHARED_ON_READ_UNCOMMITTED"
	case Deadlock:
		return "DEADLOCK"
	default:
		return "UNKNOWN"
	}
}

// TransactionAbortedError 是锁管理器因前置检查失败或升级冲突而中止事务时
// 返回的可区分信号，携带事务 ID 和原因。被 wound 的事务不会收到它：
// 加锁调用只返回 false。
type TransactionAbortedError struct {
	TxnID  TxnID
	Reason AbortReason
}

func (e *TransactionAbortedError) Error() string {
	return errors.Errorf("transaction %d aborted: %s", e.TxnID, e.Reason).Error()
}
