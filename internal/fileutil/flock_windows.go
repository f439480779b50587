//go:build windows
// +build windows

package fileutil

import (
	"fmt"
	"os"
	"syscall"
	"unsafe"
)

var (
	modkernel32    = syscall.NewLazyDLL("kernel32.dll")
	procLockFileEx = modkernel32.NewProc("LockFileEx")
)

const (
	winLockfileExclusiveLock   = 0x00000002
	winLockfileFailImmediately = 0x00000001
)

// FlockExclusive acquires an exclusive (write) lock on the file.
// If nonBlocking is true, returns immediately with an error if the lock cannot be acquired.
// The lock is released when the file is closed or the process exits.
func FlockExclusive(f *os.File, nonBlocking bool) error {
	flags := uintptr(winLockfileExclusiveLock)
	if nonBlocking {
		flags |= winLockfileFailImmediately
	}
	var overlapped syscall.Overlapped
	ret, _, err := procLockFileEx.Call(
		f.Fd(),
		flags,
		0,
		1,
		0,
		uintptr(unsafe.Pointer(&overlapped)),
	)
	if ret == 0 {
		return fmt.Errorf("failed to acquire exclusive lock: %w", err)
	}
	return nil
}
