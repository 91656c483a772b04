package debra

import (
	"sync/atomic"
	"unsafe"
)

// UnpinnedToken represents a registered thread that is not currently
// inside a critical section. It is the only state from which Pin may be
// called — there is no Pin method reachable from *PinnedGuard, so nested
// pinning is a compile error rather than a runtime check.
type UnpinnedToken struct {
	mgr   *Manager
	index int
}

// NeutralizedToken represents a thread whose critical section was forced
// closed by the neutralizer while it was pinned. It must be acknowledged
// before the thread may pin again.
type NeutralizedToken struct {
	mgr   *Manager
	index int
}

// UnpinResult is the tagged result of Unpin: either an UnpinnedToken or a
// NeutralizedToken. Neutralized reports which; a type assertion to the
// matching concrete type recovers the token.
type UnpinResult interface {
	// Neutralized reports whether the critical section was force-closed.
	Neutralized() bool
}

func (UnpinnedToken) Neutralized() bool    { return false }
func (NeutralizedToken) Neutralized() bool { return true }

var (
	_ UnpinResult = UnpinnedToken{}
	_ UnpinResult = NeutralizedToken{}
)

// PinnedGuard represents a thread currently inside a critical section. It
// is the only type with a Retire method, so retiring from an unpinned
// handle is a compile error. A PinnedGuard is single-use: Unpin consumes
// it, enforced by a runtime CAS guard (Go has no move-only types) that
// panics on reuse.
type PinnedGuard struct {
	mgr      *Manager
	index    int
	consumed atomic.Bool
}

// Pin publishes the calling thread's observed epoch and enters a critical
// section. pinned must be the last field written so that any observer
// seeing pinned=true also sees the matching observedEpoch.
func (u UnpinnedToken) Pin() *PinnedGuard {
	s := &u.mgr.table.slots[u.index]
	epoch := u.mgr.epoch.Load() // acquire
	s.neutralized.Store(false)  // release
	s.observedEpoch.Store(epoch) // release
	s.pinned.Store(true)         // release, must be last
	return &PinnedGuard{mgr: u.mgr, index: u.index}
}

// Unpin exits the critical section and reports whether the neutralizer
// force-closed it while pinned.
func (p *PinnedGuard) Unpin() UnpinResult {
	if !p.consumed.CompareAndSwap(false, true) {
		panic("debra: PinnedGuard used after Unpin")
	}
	s := &p.mgr.table.slots[p.index]
	s.pinned.Store(false)           // release
	if s.neutralized.Load() {       // acquire
		return NeutralizedToken{mgr: p.mgr, index: p.index}
	}
	return UnpinnedToken{mgr: p.mgr, index: p.index}
}

// Acknowledge clears the neutralized flag and returns a fresh
// UnpinnedToken, completing the Neutralized -> Unpinned transition.
func (n NeutralizedToken) Acknowledge() UnpinnedToken {
	s := &n.mgr.table.slots[n.index]
	s.neutralized.Store(false) // release
	return UnpinnedToken{mgr: n.mgr, index: n.index}
}

// Retire appends a (ptr, destructor) retirement to the pinned thread's
// current limbo bag, allocating a fresh bag on overflow, and returns the
// same guard so multiple retirements may be chained within one critical
// section: p.Retire(a, da).Retire(b, db). A single guard type carries
// Retire directly rather than routing through a separate result type,
// since nothing distinct would be gained by a second type that would
// carry the exact same, permanently-available method.
//
// No atomics guard currentBag/count: the per-slot bag list is
// single-writer, touched only by the slot's owning thread. headBag is
// updated with an atomic store on every new bag and tailBag only on its
// transition from nil, since the reclaimer reads them from a different
// goroutine.
func (p *PinnedGuard) Retire(ptr unsafe.Pointer, destructor func(unsafe.Pointer)) *PinnedGuard {
	if p.consumed.Load() {
		panic("debra: Retire called on a PinnedGuard already passed to Unpin")
	}
	s := &p.mgr.table.slots[p.index]
	// currentBag may be stale: a concurrent reclaim pass can fully
	// reclaim this slot's entire bag chain (including what was
	// currentBag) without touching this owner-only field, to avoid
	// writing it from another goroutine (see reclaim.go). Detect that by
	// comparing against headBag, which the reclaimer does update; a
	// fully-drained chain means headBag was reset to nil, so the bag
	// currentBag still points at has already had every destructor in it
	// invoked and must not be re-linked into the list.
	if s.currentBag != s.headBag.Load() {
		s.currentBag = nil
	}
	if s.currentBag == nil || s.currentBag.full() {
		observed := s.observedEpoch.Load()
		fresh := newLimboBag(p.mgr.limboBagCapacity, observed, s.currentBag)
		// fresh is always the new newest bag: invariant 3 requires bags
		// be prepended at the head, so headBag tracks it unconditionally.
		s.headBag.Store(fresh)
		s.currentBag = fresh
		// tailBag is set exactly once, the first time this slot ever
		// allocates a bag; it otherwise only moves forward during
		// reclamation (reclaim.go), never here.
		if s.tailBag.Load() == nil {
			s.tailBag.Store(fresh)
		}
	}
	s.currentBag.append(retiredObject{ptr: ptr, destructor: destructor})
	return p
}
