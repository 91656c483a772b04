package debra

import (
	"sync/atomic"
)

// slotState represents the lifecycle state of a thread slot.
//
// State Machine:
//
//	slotFree (0) → slotClaiming (1)   [claim() CAS]
//	slotClaiming (1) → slotActive (2) [claim() publishes thread id]
//	slotActive (2) → slotDraining (3) [release()/Deregister()]
//	slotDraining (3) → slotFree (0)   [release() completes]
//
// Free → Claiming and Active → Draining use tryTransition (CAS); the
// Claiming → Active and Draining → Free steps use store, since the caller
// already holds the slot exclusively at that point. There is no
// irreversible terminal state here, since a slot may be claimed, drained,
// and reused indefinitely across a Manager's lifetime.
type slotState uint32

const (
	// slotFree indicates the slot is unclaimed and available for registration.
	slotFree slotState = 0
	// slotClaiming indicates a registering thread has won the active-mask bit
	// but has not yet published its thread id.
	slotClaiming slotState = 1
	// slotActive indicates the slot is claimed and in normal use.
	slotActive slotState = 2
	// slotDraining indicates the slot is being released: its remaining limbo
	// bags are being reclaimed before the slot returns to slotFree.
	slotDraining slotState = 3
)

func (s slotState) String() string {
	switch s {
	case slotFree:
		return "Free"
	case slotClaiming:
		return "Claiming"
	case slotActive:
		return "Active"
	case slotDraining:
		return "Draining"
	default:
		return "Unknown"
	}
}

// fastSlotState is a lock-free state machine with cache-line padding,
// embedded in each slot so that state transitions on one slot never cause
// false sharing with the state cell of an adjacent slot.
type fastSlotState struct { // betteralign:ignore
	_ [cacheLineSize]byte // cache line padding (before value)
	v atomic.Uint32        // state value
	_ [cacheLineSize - 4]byte // pad to complete cache line
}

func (s *fastSlotState) init() {
	s.v.Store(uint32(slotFree))
}

// load returns the current state atomically.
func (s *fastSlotState) load() slotState {
	return slotState(s.v.Load())
}

// tryTransition attempts to atomically transition from one state to another.
func (s *fastSlotState) tryTransition(from, to slotState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}

// store unconditionally sets the state; used only on paths that already
// hold exclusive access to the slot (e.g. completion of draining).
func (s *fastSlotState) store(to slotState) {
	s.v.Store(uint32(to))
}
