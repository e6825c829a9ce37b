package vm

import (
	"fmt"
	"sync/atomic"

	"github.com/petermattis/goid"
)

// ThreadID identifies a runtime thread. The zero value means "no thread".
type ThreadID uint64

var nextThreadID atomic.Uint64

// Thread is a runtime thread as seen by the loading protocol. Identity is
// the ID; Threads are compared by ID, never by pointer.
type Thread struct {
	ID   ThreadID
	Name string

	// suspendDisabled counts nested regions in which the collector may not
	// stop this thread.
	suspendDisabled atomic.Int32
}

// NewThread allocates a thread with a fresh ID.
func NewThread(name string) *Thread {
	return &Thread{
		ID:   ThreadID(nextThreadID.Add(1)),
		Name: name,
	}
}

func (t *Thread) String() string {
	if t.Name == "" {
		return fmt.Sprintf("thread-%d", t.ID)
	}
	return fmt.Sprintf("%s(%d)", t.Name, t.ID)
}

// DisableSuspend enters a region where stop-the-world suspension is held off.
func (t *Thread) DisableSuspend() {
	t.suspendDisabled.Add(1)
}

// EnableSuspend leaves a region entered with DisableSuspend.
func (t *Thread) EnableSuspend() {
	if t.suspendDisabled.Add(-1) < 0 {
		panic(fmt.Sprintf("vm: unbalanced EnableSuspend on %s", t))
	}
}

// SuspendEnabled reports whether the collector may currently stop t.
func (t *Thread) SuspendEnabled() bool {
	return t.suspendDisabled.Load() == 0
}

// ---------------------------------------------------------------------------
// Goroutine attachment
// ---------------------------------------------------------------------------

// AttachCurrentThread binds a new Thread to the calling goroutine.
func (vm *VM) AttachCurrentThread(name string) *Thread {
	t := NewThread(name)
	vm.threads.Store(goid.Get(), t)
	return t
}

// DetachCurrentThread removes the calling goroutine's Thread.
func (vm *VM) DetachCurrentThread() {
	vm.threads.Delete(goid.Get())
}

// CurrentThread returns the Thread bound to the calling goroutine, attaching
// an anonymous one if needed.
func (vm *VM) CurrentThread() *Thread {
	if t, ok := vm.threads.Load(goid.Get()); ok {
		return t.(*Thread)
	}
	return vm.AttachCurrentThread("")
}
