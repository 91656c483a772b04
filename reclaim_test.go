package debra

import (
	"sync/atomic"
	"testing"
	"unsafe"
)

func TestReclaimBlockedWhenSafeEpochTooLow(t *testing.T) {
	m, _ := NewManager(WithMaxThreads(1))
	// fresh manager: E_g = 1, nothing pinned, safe epoch = 1
	loaded := m.ReclaimStart().LoadEpochs()
	if loaded.SafeEpoch() != 1 {
		t.Errorf("SafeEpoch() = %d, want 1", loaded.SafeEpoch())
	}
	if _, ok := loaded.CheckSafe(); ok {
		t.Fatal("CheckSafe() should report Blocked when safe epoch <= 1")
	}
}

func TestReclaimRespectsPinnedMinimum(t *testing.T) {
	m, _ := NewManager(WithMaxThreads(2))

	u1, _ := m.Register()
	u2, _ := m.Register()

	p1 := u1.Pin() // observes E_g = 1
	m.AdvanceEpoch()
	m.AdvanceEpoch()
	m.AdvanceEpoch() // E_g = 4
	p2 := u2.Pin()   // observes E_g = 4

	loaded := m.ReclaimStart().LoadEpochs()
	if loaded.SafeEpoch() != 1 {
		t.Errorf("SafeEpoch() = %d, want 1 (min of pinned observed epochs)", loaded.SafeEpoch())
	}

	p1.Unpin()
	p2.Unpin()
}

func TestTryReclaimDestroysObjectsBelowThreshold(t *testing.T) {
	m, _ := NewManager(WithMaxThreads(1), WithLimboBagCapacity(130))
	unpinned, _ := m.Register()
	pinned := unpinned.Pin() // observes E_g = 1

	var destroyedCount atomic.Int64
	const n = 130
	for i := 0; i < n; i++ {
		pinned.Retire(nil, func(unsafe.Pointer) {
			destroyedCount.Add(1)
		})
	}

	pinned.Unpin()

	for i := 0; i < 5; i++ {
		m.AdvanceEpoch()
	}

	ready, ok := m.ReclaimStart().LoadEpochs().CheckSafe()
	if !ok {
		t.Fatal("CheckSafe() should permit reclamation once nothing is pinned")
	}
	total := ready.TryReclaim()
	if total != n {
		t.Errorf("TryReclaim() = %d, want %d", total, n)
	}
	if got := destroyedCount.Load(); got != n {
		t.Errorf("destructor invocations = %d, want %d", got, n)
	}
	if m.TotalLimboCount() != 0 {
		t.Errorf("TotalLimboCount() = %d, want 0 after full reclamation", m.TotalLimboCount())
	}
}

func TestRetire130ObjectsSpansThreeDefaultCapacityBags(t *testing.T) {
	// retiring 130 objects at the default bag capacity (64) should span
	// exactly three bags (64 + 64 + 2).
	m, _ := NewManager(WithMaxThreads(1))
	unpinned, _ := m.Register()
	pinned := unpinned.Pin()

	const n = 130
	for i := 0; i < n; i++ {
		pinned.Retire(nil, nil)
	}

	s := &m.table.slots[pinned.index]
	var bags, total int
	for b := s.headBag.Load(); b != nil; b = b.next {
		bags++
		total += len(b.objects)
	}
	if bags != 3 {
		t.Errorf("bag count = %d, want 3", bags)
	}
	if total != n {
		t.Errorf("total retirements = %d, want %d", total, n)
	}

	pinned.Unpin()
}

func TestTryReclaimLeavesNewerBagsIntact(t *testing.T) {
	m, _ := NewManager(WithMaxThreads(1), WithLimboBagCapacity(1))
	unpinned, _ := m.Register()

	// retire one object per epoch across three epochs, each getting its own
	// bag (capacity 1), so the bag chain's epochs are 3, 2, 1 head-to-tail
	// (newest first).
	for e := 1; e <= 3; e++ {
		pinned := unpinned.Pin()
		pinned.Retire(nil, nil)
		unpinned = pinned.Unpin().(UnpinnedToken)
		m.AdvanceEpoch()
	}

	// the epoch-1 and epoch-2 bags are reclaimable: safe epoch with nothing
	// pinned equals current E_g (4), threshold = 3.
	ready, ok := m.ReclaimStart().LoadEpochs().CheckSafe()
	if !ok {
		t.Fatal("CheckSafe() unexpectedly blocked")
	}
	if ready.Threshold() != 3 {
		t.Fatalf("Threshold() = %d, want 3", ready.Threshold())
	}

	total := ready.TryReclaim()
	if total != 2 {
		t.Errorf("TryReclaim() = %d, want 2 (epochs 1 and 2 reclaimed, epoch 3 retained)", total)
	}
	if m.TotalLimboCount() != 1 {
		t.Errorf("TotalLimboCount() = %d, want 1 (epoch-3 bag retained)", m.TotalLimboCount())
	}
}
