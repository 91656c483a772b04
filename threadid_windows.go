//go:build windows

package debra

import "golang.org/x/sys/windows"

// currentThreadID returns the Windows kernel thread id of the calling OS
// thread. As on other platforms this is a snapshot only, never used to
// target real signal delivery — Windows has no thread-directed signal
// primitive at all, which is one more reason the neutralizer uses a
// direct cross-goroutine CAS instead of a real signal handler.
func currentThreadID() uint64 {
	return uint64(windows.GetCurrentThreadId())
}
