// Package debra implements DEBRA+ (Distributed Epoch-Based Reclamation
// with Neutralization), a safe memory reclamation scheme for lock-free
// data structures on shared-memory multiprocessors.
//
// # Architecture
//
// A [Manager] owns a fixed table of per-thread [slot] cells and a global
// epoch counter. Each registered thread enters a critical section by
// calling Pin on an [UnpinnedToken] (obtained from [Manager.Register]),
// performs lock-free operations against the caller's own data structures,
// optionally retires unlinked objects via [PinnedGuard.Retire], then exits
// via [PinnedGuard.Unpin]. A reclaimer ([Manager.ReclaimStart]) computes
// the minimum observed epoch across currently pinned threads (the safe
// epoch) and frees every retirement whose bag epoch is below the safe
// epoch minus one. A [Manager.NeutralizeStalled]
// pass force-closes the critical section of any thread that has stayed
// pinned too many epochs, so one stalled reader cannot block reclamation
// of everyone else's retirements indefinitely.
//
// # Typestate
//
// Misuse that would otherwise be a runtime contract violation is, where
// possible, a compile error here instead:
// [UnpinnedToken] is the only type with a Pin method, [PinnedGuard] the
// only type with Retire and Unpin methods, and [NeutralizedToken] the only
// type with Acknowledge. Go has no move-only types, so [PinnedGuard] also
// carries a one-shot runtime CAS guard that panics if it is used after
// Unpin — the closest practical approximation to affine usage. The token
// types carry no such guard.
//
// # Concurrency model
//
// Every thread that pins, retires, or reclaims registers first and
// operates on its own slot synchronously; the package spawns no
// goroutines of its own. Acquire/release ordering on pinned and
// observedEpoch (realized with Go's sequentially-consistent sync/atomic,
// a strictly stronger guarantee) ensures a reclaimer observing pinned=true
// also observes an observedEpoch at least as recent as that thread's last
// pin. Per-slot limbo-bag lists are single-writer from the owning
// thread's perspective; the reclaimer reads them through atomic pointers.
//
// There is no thread-directed signal: a Go goroutine cannot be interrupted
// asynchronously in another goroutine's context the way a POSIX thread
// can. NeutralizeStalled instead force-unpins a stalled slot directly via
// cross-goroutine-safe atomic compare-and-swap, achieving the same effect
// without needing a signal handler at all.
//
// # Usage
//
//	mgr, err := debra.NewManager(debra.WithMaxThreads(8))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer mgr.Shutdown(context.Background())
//
//	unpinned, err := mgr.Register()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	pinned := unpinned.Pin()
//	node := unlinkNode() // caller's own lock-free data structure
//	pinned.Retire(unsafe.Pointer(node), func(p unsafe.Pointer) {
//	    freeNode((*myNode)(p))
//	})
//	result := pinned.Unpin()
//	if result.Neutralized() {
//	    unpinned = result.(debra.NeutralizedToken).Acknowledge()
//	}
//
//	mgr.AdvanceEpoch()
//	if ready, ok := mgr.ReclaimStart().LoadEpochs().CheckSafe(); ok {
//	    ready.TryReclaim()
//	}
//
// # Error Types
//
// [ErrRegistrationFull], [ErrInvalidConfiguration], [ErrAlreadyShutdown],
// and [ErrUnknownSlot] are sentinel errors usable with errors.Is. Anything
// modeled as a tagged result rather than a failure — [UnpinResult],
// [EpochsLoaded.CheckSafe]'s ok flag — is a normal branching outcome, not
// an error.
package debra
