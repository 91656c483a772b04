package debra

import "sync/atomic"

// slot is one fixed-index cell in the manager's thread table (§3 "Thread
// slot"). Each slot carries a cache line of padding before and after its
// fields, so adjacent slots in slotTable never share a line; within a slot, fields
// that are written together (observedEpoch, pinned, neutralized) are kept
// adjacent since they are always touched by the same thread in the same
// operation.
type slot struct { // betteralign:ignore
	_ [cacheLineSize]byte

	state fastSlotState

	// observedEpoch is the value of the global epoch this slot's owner
	// captured at its most recent pin; 0 means never pinned.
	observedEpoch atomic.Uint64

	// pinned is true iff the owning thread is inside a critical section
	// and has not been force-unpinned by the neutralizer.
	pinned atomic.Bool

	// neutralized is set by the neutralizer; cleared on acknowledge or on
	// the next successful pin.
	neutralized atomic.Bool

	// threadID is an opaque, diagnostic-only OS thread identifier; 0 is
	// the "invalid/free" sentinel. See threadid_*.go: it is never used to
	// target real signal delivery, only to distinguish the calling
	// thread's own slot from others and for observability.
	threadID atomic.Uint64

	// currentBag is the slot owner's write cursor into the limbo-bag
	// list. Owner-only: never read or written by any other goroutine,
	// including the reclaimer (which only ever reads headBag/tailBag).
	currentBag *limboBag

	// headBag and tailBag bound the limbo-bag list. They are
	// atomic.Pointer because the reclaimer reads them from a different
	// goroutine than the slot's owner; the bags they point to change only
	// by the owner's appends to its current bag and by unlinking during
	// reclamation, which only
	// ever happens from the tail, and only while holding the implicit
	// single-reclaimer-at-a-time discipline the caller is expected to
	// provide (reclamation is not itself safe to run concurrently with
	// itself on the same slot).
	headBag atomic.Pointer[limboBag]
	tailBag atomic.Pointer[limboBag]

	_ [cacheLineSize]byte
}

func (s *slot) free() bool {
	return s.state.load() == slotFree
}

// reset clears all fields of a slot back to its zero/free state. Called
// while the slot is in slotDraining, immediately before the transition to
// slotFree completes a release.
func (s *slot) reset() {
	s.observedEpoch.Store(0)
	s.pinned.Store(false)
	s.neutralized.Store(false)
	s.threadID.Store(0)
	s.currentBag = nil
	s.headBag.Store(nil)
	s.tailBag.Store(nil)
}

// slotTable is a fixed array of per-thread state cells, plus the active
// mask tracking which are claimed. Sized at Manager construction time.
type slotTable struct {
	slots []slot

	// activeMask has bit i set iff slots[i] is claimed. A single machine
	// word supports up to 64 slots, which is why WithMaxThreads caps out
	// there.
	activeMask atomic.Uint64
}

func newSlotTable(maxThreads int) *slotTable {
	t := &slotTable{
		slots: make([]slot, maxThreads),
	}
	for i := range t.slots {
		t.slots[i].state.init()
	}
	return t
}

// claim scans for the first free slot and atomically marks it occupied,
// publishing threadID with a release store. Returns the slot index and a
// pointer to the claimed slot, or ErrRegistrationFull if every slot is
// occupied.
func (t *slotTable) claim(threadID uint64) (int, *slot, error) {
	n := len(t.slots)
	for i := 0; i < n; i++ {
		bit := uint64(1) << uint(i)
		for {
			cur := t.activeMask.Load()
			if cur&bit != 0 {
				// already claimed by a racing thread; move to the next slot
				break
			}
			if t.activeMask.CompareAndSwap(cur, cur|bit) {
				s := &t.slots[i]
				if !s.state.tryTransition(slotFree, slotClaiming) {
					// a concurrent Deregister raced the slot back to
					// Claiming state inconsistently; this cannot happen
					// under correct single-claimer-per-bit discipline,
					// but fail closed rather than corrupt state.
					t.activeMask.CompareAndSwap(cur|bit, cur)
					break
				}
				s.threadID.Store(threadID)
				s.state.store(slotActive)
				return i, s, nil
			}
			// CAS failed because of an unrelated bit changing concurrently; retry.
		}
	}
	return -1, nil, ErrRegistrationFull
}

// release drains the slot's remaining limbo bags (reclaiming every
// object, ignoring the safe-epoch check since the thread is gone and can
// no longer observe anything), then clears its active-mask bit.
func (t *slotTable) release(index int) int {
	s := &t.slots[index]
	if !s.state.tryTransition(slotActive, slotDraining) {
		return 0
	}
	reclaimed := drainBags(s.headBag.Load())
	s.reset()
	s.state.store(slotFree)
	bit := uint64(1) << uint(index)
	for {
		cur := t.activeMask.Load()
		if t.activeMask.CompareAndSwap(cur, cur&^bit) {
			break
		}
	}
	return reclaimed
}

// drainBags walks a bag chain head-to-tail (the only pointer-traversable
// direction, see reclaim.go) and reclaims every bag unconditionally,
// recovering any destructor panic so one misbehaving object doesn't abort
// the drain of the rest (mirrors Shutdown's swallow-on-drain policy).
// Recovered panics are discarded, not logged. Every entry counts as
// processed, including one whose destructor panicked.
func drainBags(head *limboBag) int {
	total := 0
	for b := head; b != nil; b = b.next {
		total += reclaimBagRecovering(b)
	}
	return total
}

func reclaimBagRecovering(b *limboBag) int {
	for _, obj := range b.objects {
		if obj.destructor == nil {
			continue
		}
		func() {
			defer func() {
				_ = recover()
			}()
			obj.destructor(obj.ptr)
		}()
	}
	return len(b.objects)
}
