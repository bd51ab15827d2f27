// internal/core/ports/lock_manager.go
package ports

import "context"

// LockManager serializes stock mutations per product.
//
// Acquire takes the lock of every id in ascending order, blocking while
// another holder has one. It fails with domain.ErrLockTimeout once the
// configured wait is exceeded, after releasing whatever it already took.
// The returned release func is safe to call more than once.
type LockManager interface {
	Acquire(ctx context.Context, productIDs []int64) (release func(), err error)
}
