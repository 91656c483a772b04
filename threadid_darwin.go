//go:build darwin

package debra

/*
#include <pthread.h>

static unsigned long long debra_current_thread_id(void) {
	unsigned long long tid = 0;
	pthread_threadid_np(NULL, &tid);
	return tid;
}
*/
import "C"

// currentThreadID returns the kernel thread id of the calling OS thread.
// golang.org/x/sys/unix exposes no equivalent of Linux's Gettid on Darwin;
// pthread_threadid_np is the stable, per-OS-thread identifier the platform
// actually offers, reached here via a small cgo shim since it has no
// syscall-level equivalent.
func currentThreadID() uint64 {
	return uint64(C.debra_current_thread_id())
}
