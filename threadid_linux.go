//go:build linux

package debra

import "golang.org/x/sys/unix"

// currentThreadID returns the kernel thread id of the calling OS thread.
// Because a goroutine can migrate between OS threads between calls, this
// value is a snapshot valid only at the instant it was read — sufficient
// for distinguishing a thread's own slot and for observability, since it
// is never used to target real signal delivery.
func currentThreadID() uint64 {
	return uint64(unix.Gettid())
}
