package debra

import (
	"testing"
	"unsafe"
)

func TestPinUnpinLifecycle(t *testing.T) {
	m, err := NewManager(WithMaxThreads(2))
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	unpinned, err := m.Register()
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	m.AdvanceEpoch() // E_g = 2

	pinned := unpinned.Pin()
	s := &m.table.slots[pinned.index]
	if !s.pinned.Load() {
		t.Fatal("Pin() should set pinned = true")
	}
	if s.observedEpoch.Load() != m.CurrentEpoch() {
		t.Errorf("observedEpoch = %d, want %d", s.observedEpoch.Load(), m.CurrentEpoch())
	}

	result := pinned.Unpin()
	if result.Neutralized() {
		t.Fatal("Unpin() should not report Neutralized for an ordinary unpin")
	}
	if s.pinned.Load() {
		t.Fatal("Unpin() should clear pinned")
	}
}

func TestUnpinPanicsOnReuse(t *testing.T) {
	m, _ := NewManager(WithMaxThreads(1))
	unpinned, _ := m.Register()
	pinned := unpinned.Pin()
	pinned.Unpin()

	defer func() {
		if recover() == nil {
			t.Fatal("second Unpin() should panic")
		}
	}()
	pinned.Unpin()
}

func TestNeutralizedAcknowledge(t *testing.T) {
	m, _ := NewManager(WithMaxThreads(1))
	unpinned, _ := m.Register()
	pinned := unpinned.Pin()

	s := &m.table.slots[pinned.index]
	if !neutralizeSlot(s) {
		t.Fatal("neutralizeSlot() should succeed on a pinned slot")
	}

	result := pinned.Unpin()
	if !result.Neutralized() {
		t.Fatal("Unpin() should report Neutralized after a force-unpin")
	}

	neutralizedToken, ok := result.(NeutralizedToken)
	if !ok {
		t.Fatalf("result type = %T, want NeutralizedToken", result)
	}
	reacquired := neutralizedToken.Acknowledge()
	if s.neutralized.Load() {
		t.Error("Acknowledge() should clear neutralized")
	}

	// the reacquired token should be usable to pin again
	reacquired.Pin().Unpin()
}

func TestRetireChainsAcrossMultipleBags(t *testing.T) {
	m, _ := NewManager(WithMaxThreads(1), WithLimboBagCapacity(4))
	unpinned, _ := m.Register()
	pinned := unpinned.Pin()

	const n = 10 // 4 + 4 + 2, spans three bags at capacity 4
	for i := 0; i < n; i++ {
		pinned.Retire(nil, nil)
	}

	s := &m.table.slots[pinned.index]
	head := s.headBag.Load()
	if head == nil {
		t.Fatal("headBag should be non-nil after retiring")
	}

	var bags int
	var total int
	for b := head; b != nil; b = b.next {
		bags++
		total += len(b.objects)
	}
	if bags != 3 {
		t.Errorf("bag count = %d, want 3", bags)
	}
	if total != n {
		t.Errorf("total retirements = %d, want %d", total, n)
	}
	if head != s.currentBag {
		t.Error("headBag should track currentBag after Retire")
	}
}

func TestRetireDetectsStaleCurrentBagAfterFullReclaim(t *testing.T) {
	m, _ := NewManager(WithMaxThreads(1), WithLimboBagCapacity(5))
	unpinned, _ := m.Register()
	pinned := unpinned.Pin()

	var firstGenDestroyed int
	pinned.Retire(nil, func(unsafe.Pointer) { firstGenDestroyed++ })
	pinned.Retire(nil, func(unsafe.Pointer) { firstGenDestroyed++ }) // bag is not full: 2/5

	s := &m.table.slots[pinned.index]
	if s.currentBag.full() {
		t.Fatal("bag should not be full yet, this test exercises the headBag-divergence path specifically")
	}
	firstGenBag := s.currentBag

	// simulate a full-chain reclaim, as reclaim.go's TryReclaim would do:
	// invoke destructors directly, then reset headBag/tailBag without
	// touching currentBag (the owner-only field).
	firstGenBag.reclaim()
	s.headBag.Store(nil)
	s.tailBag.Store(nil)

	// Retire must notice headBag diverged from the stale currentBag and
	// allocate a genuinely empty fresh bag, not one re-linked to the
	// already-reclaimed chain.
	var secondGenDestroyed int
	pinned.Retire(nil, func(unsafe.Pointer) { secondGenDestroyed++ })

	fresh := s.headBag.Load()
	if fresh == nil {
		t.Fatal("Retire() should have reallocated headBag after detecting staleness")
	}
	if len(fresh.objects) != 1 {
		t.Errorf("fresh bag object count = %d, want 1", len(fresh.objects))
	}
	if fresh.next != nil {
		t.Fatal("fresh bag must not re-link to the already-fully-reclaimed chain, or its destructors would fire again")
	}
	if firstGenDestroyed != 2 {
		t.Fatalf("firstGenDestroyed = %d, want 2 (from the simulated reclaim pass)", firstGenDestroyed)
	}

	pinned.Unpin()

	for i := 0; i < 3; i++ {
		m.AdvanceEpoch()
	}
	ready, ok := m.ReclaimStart().LoadEpochs().CheckSafe()
	if !ok {
		t.Fatal("CheckSafe() unexpectedly blocked")
	}
	ready.TryReclaim()

	if firstGenDestroyed != 2 {
		t.Errorf("firstGenDestroyed = %d after a later reclaim pass, want still 2 (no double invocation)", firstGenDestroyed)
	}
	if secondGenDestroyed != 1 {
		t.Errorf("secondGenDestroyed = %d, want 1", secondGenDestroyed)
	}
}

func TestRetirePanicsAfterUnpin(t *testing.T) {
	m, _ := NewManager(WithMaxThreads(1))
	unpinned, _ := m.Register()
	pinned := unpinned.Pin()
	pinned.Unpin()

	defer func() {
		if recover() == nil {
			t.Fatal("Retire() after Unpin() should panic")
		}
	}()
	pinned.Retire(unsafe.Pointer(nil), nil)
}
