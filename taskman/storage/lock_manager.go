package storage

import (
	"sync"
)

// OperationType defines whether an operation is read or write
type OperationType int

const (
	// ReadOperation indicates an operation that only reads data.
	// Multiple read operations can proceed concurrently.
	ReadOperation OperationType = iota

	// WriteOperation indicates an operation that modifies data.
	// Write operations are exclusive.
	WriteOperation
)

// LockManager serializes access to a backend's in-process state: concurrent
// readers, exclusive writers. Backends that also need cross-process safety
// take their file lock inside the function they hand to Execute.
type LockManager struct {
	mu *sync.RWMutex
}

// NewLockManager creates a new lock manager instance
func NewLockManager() *LockManager {
	return &LockManager{
		mu: &sync.RWMutex{},
	}
}

// Execute runs fn holding the lock matching opType. The lock is released
// when fn returns, even if it panics.
//
// Example:
//
//	err := locks.Execute(ReadOperation, func() error {
//	    // Safe to read data here
//	    return nil
//	})
func (lm *LockManager) Execute(opType OperationType, fn func() error) error {
	switch opType {
	case ReadOperation:
		lm.mu.RLock()
		defer lm.mu.RUnlock()
	case WriteOperation:
		lm.mu.Lock()
		defer lm.mu.Unlock()
	}
	return fn()
}

// WithResult is Execute for functions producing a value
//
// Example:
//
//	doc, err := storage.WithResult(locks, storage.ReadOperation, func() (types.Document, error) {
//	    return lookup(id)
//	})
func WithResult[T any](lm *LockManager, opType OperationType, fn func() (T, error)) (T, error) {
	var result T
	err := lm.Execute(opType, func() error {
		var err error
		result, err = fn()
		return err
	})
	return result, err
}
