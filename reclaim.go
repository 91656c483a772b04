package debra

// ReclaimStart begins a reclamation attempt.
type ReclaimStart struct {
	mgr *Manager
}

// EpochsLoaded carries the global epoch and computed safe epoch snapshot
// taken by LoadEpochs (EpochsLoaded state).
type EpochsLoaded struct {
	mgr   *Manager
	epoch uint64
	safe  uint64
}

// ReclaimReady carries the reclamation threshold computed by CheckSafe
// (ReclaimReady state): bags whose epoch is strictly below threshold may
// be reclaimed.
type ReclaimReady struct {
	mgr       *Manager
	threshold uint64
}

// ReclaimStart begins a reclamation pass. May be invoked by any thread,
// including a dedicated janitor goroutine the application runs; the core
// does not spawn one itself.
func (m *Manager) ReclaimStart() *ReclaimStart {
	return &ReclaimStart{mgr: m}
}

// Epoch returns the global epoch snapshot taken by LoadEpochs.
func (e *EpochsLoaded) Epoch() uint64 { return e.epoch }

// SafeEpoch exposes the computed safe epoch for observability.
func (e *EpochsLoaded) SafeEpoch() uint64 { return e.safe }

// Threshold exposes the reclamation threshold (safe epoch - 1).
func (r *ReclaimReady) Threshold() uint64 { return r.threshold }

// LoadEpochs computes the safe epoch: the minimum observed epoch across
// all currently pinned slots, or the global epoch itself if nothing is
// pinned.
func (r *ReclaimStart) LoadEpochs() *EpochsLoaded {
	m := r.mgr
	e := m.epoch.Load() // acquire
	safe := e
	for i := range m.table.slots {
		s := &m.table.slots[i]
		if s.pinned.Load() { // acquire
			if observed := s.observedEpoch.Load(); observed < safe { // acquire
				safe = observed
			}
		}
	}
	return &EpochsLoaded{mgr: m, epoch: e, safe: safe}
}

// CheckSafe returns (ReclaimReady, true) if the safe epoch permits
// reclamation, or (nil, false) — ReclaimBlocked — if safe <= 1, meaning
// nothing can be safely reclaimed yet.
func (e *EpochsLoaded) CheckSafe() (*ReclaimReady, bool) {
	if e.safe <= 1 {
		return nil, false
	}
	return &ReclaimReady{mgr: e.mgr, threshold: e.safe - 1}, true
}

// TryReclaim walks every slot's limbo-bag list and invokes the destructor
// of every retirement whose bag epoch is strictly below the threshold,
// returning the total count reclaimed.
//
// Conceptually this should walk from the oldest bag toward the newest,
// stopping at the first bag that fails the epoch test, but the only
// pointer-traversable direction through a bag list is newest-to-oldest
// (next points toward older bags — there is no prev link). This
// implementation collects the newest-to-oldest chain into a slice, then
// scans that slice from its tail end (the oldest bag) backward toward the
// head, which is equivalent since bag epochs are non-increasing
// newest-to-oldest, so the reclaimable set is always a contiguous run
// ending at the tail — without requiring a real doubly linked list.
func (r *ReclaimReady) TryReclaim() int {
	m := r.mgr
	total := 0
	for i := range m.table.slots {
		s := &m.table.slots[i]
		total += r.reclaimSlot(s)
		if m.metrics != nil {
			count := 0
			for b := s.headBag.Load(); b != nil; b = b.next {
				count += len(b.objects)
			}
			m.metrics.Limbo.Update(i, count)
		}
	}
	m.logger.Debug().
		Uint64(`threshold`, r.threshold).
		Int(`reclaimed`, total).
		Log(`reclaim pass complete`)
	if m.metrics != nil {
		m.metrics.Reclaims.Increment()
		if total > 0 {
			m.metrics.ReclaimedObjects.Add(int64(total))
		}
	}
	return total
}

func (r *ReclaimReady) reclaimSlot(s *slot) int {
	head := s.headBag.Load()
	if head == nil {
		return 0
	}

	// Collect head -> tail (newest -> oldest) into a slice.
	var chain []*limboBag
	for b := head; b != nil; b = b.next {
		chain = append(chain, b)
	}

	// Scan from the oldest (end of slice) backward, reclaiming every bag
	// whose epoch is strictly below the threshold, stopping at the first
	// one that is not.
	cut := len(chain)
	reclaimed := 0
	for i := len(chain) - 1; i >= 0; i-- {
		if chain[i].epoch >= r.threshold {
			break
		}
		reclaimed += chain[i].reclaim()
		cut = i
	}
	if cut == len(chain) {
		// nothing reclaimed
		return 0
	}

	if cut == 0 {
		// The entire chain, including the head (which Retire keeps in
		// sync with s.currentBag — see guard.go), was reclaimed. This
		// method never writes s.currentBag itself: that field is
		// owner-only, and a reclaiming goroutine writing it would race
		// with a concurrent Retire on the owning thread. Instead, Retire
		// re-derives validity by comparing its stale currentBag against
		// a fresh headBag.Load() and reallocates when they diverge (see
		// guard.go), so leaving currentBag dangling here is safe.
		s.headBag.Store(nil)
		s.tailBag.Store(nil)
		return reclaimed
	}

	// the surviving prefix chain[0:cut] remains; its last element becomes
	// the new tail, and its next pointer (which pointed into the
	// reclaimed suffix) must be cleared.
	newTail := chain[cut-1]
	newTail.next = nil
	s.tailBag.Store(newTail)
	return reclaimed
}
