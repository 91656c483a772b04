package debra

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

var managerIDCounter atomic.Uint64

// Manager owns the slot table, global epoch, and active mask, and
// initializes/tears down the other components. There is no process-wide
// manager pointer or installed signal handler to manage separately:
// NeutralizeStalled acts directly on the caller's own *Manager rather than
// routing through a real OS signal handler, so there is nothing else for
// NewManager to register or install.
type Manager struct { // betteralign:ignore
	_ [0]func() // prevent comparison

	id uint64

	table *slotTable

	// epoch is the global epoch E_g, initialized to 1 (0 is reserved for
	// "never observed").
	epoch atomic.Uint64

	limboBagCapacity       int
	epochsBeforeNeutralize uint64

	logger            *logiface.Logger[*stumpy.Event]
	metrics           *Metrics
	neutralizeLimiter *catrate.Limiter

	shutdownOnce sync.Once
	shutdown     atomic.Bool
}

// NewManager constructs and initializes a Manager: E_g := 1, all slots
// zeroed, active mask cleared.
func NewManager(opts ...ManagerOption) (*Manager, error) {
	cfg, err := resolveManagerOptions(opts)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		id:                     managerIDCounter.Add(1),
		table:                  newSlotTable(cfg.maxThreads),
		limboBagCapacity:       cfg.limboBagCapacity,
		epochsBeforeNeutralize: cfg.epochsBeforeNeutralize,
		logger:                 cfg.logger,
		neutralizeLimiter:      newNeutralizeLimiter(cfg.neutralizationRates),
	}
	m.epoch.Store(1)
	if m.logger == nil {
		m.logger = newNoopLogger()
	}
	if cfg.metricsEnabled {
		m.metrics = &Metrics{
			Reclaims:         NewRateCounter(10*time.Second, 100*time.Millisecond),
			ReclaimedObjects: NewRateCounter(10*time.Second, 100*time.Millisecond),
			Neutralizations:  NewRateCounter(10*time.Second, 100*time.Millisecond),
			Limbo:            newLimboMetrics(),
		}
	}

	m.logger.Info().
		Uint64(`manager_id`, m.id).
		Int(`max_threads`, cfg.maxThreads).
		Int(`limbo_bag_capacity`, cfg.limboBagCapacity).
		Log(`manager initialized`)

	return m, nil
}

// Register claims a free slot for the calling thread, returning an
// UnpinnedToken. Returns ErrRegistrationFull if every slot is occupied;
// no slot is consumed and no side effects occur in that case.
func (m *Manager) Register() (UnpinnedToken, error) {
	if m.shutdown.Load() {
		return UnpinnedToken{}, wrapError("Register", ErrAlreadyShutdown)
	}
	index, _, err := m.table.claim(currentThreadID())
	if err != nil {
		m.logger.Warning().Log(`registration failed: no free slot`)
		return UnpinnedToken{}, wrapError("Register", err)
	}
	m.logger.Debug().Int(`slot`, index).Log(`thread registered`)
	return UnpinnedToken{mgr: m, index: index}, nil
}

// Deregister releases a slot, draining (bulk-reclaiming) its remaining
// limbo bags before the slot returns to Free and may be reused by a
// future registration.
func (m *Manager) Deregister(u UnpinnedToken) error {
	if u.mgr != m {
		return wrapError("Deregister", ErrUnknownSlot)
	}
	reclaimed := m.table.release(u.index)
	m.logger.Debug().Int(`slot`, u.index).Int(`reclaimed`, reclaimed).Log(`thread deregistered`)
	if m.metrics != nil && reclaimed > 0 {
		m.metrics.ReclaimedObjects.Add(int64(reclaimed))
	}
	return nil
}

// AdvanceEpoch increments the global epoch and returns its new value.
// Safe to call without anyone pinned; it simply shifts the reclamation
// window forward.
func (m *Manager) AdvanceEpoch() uint64 {
	return m.epoch.Add(1)
}

// CurrentEpoch returns the current global epoch.
func (m *Manager) CurrentEpoch() uint64 {
	return m.epoch.Load()
}

// SlotSnapshot is the observable state of one slot, exposed for
// inspection and testing.
type SlotSnapshot struct {
	Index         int
	ObservedEpoch uint64
	Pinned        bool
	Neutralized   bool
	ThreadID      uint64
	Active        bool
}

// SlotSnapshot returns a point-in-time snapshot of every slot's
// (observed_epoch, pinned, neutralized, thread_id) tuple.
func (m *Manager) SlotSnapshot() []SlotSnapshot {
	out := make([]SlotSnapshot, len(m.table.slots))
	mask := m.table.activeMask.Load()
	for i := range m.table.slots {
		s := &m.table.slots[i]
		out[i] = SlotSnapshot{
			Index:         i,
			ObservedEpoch: s.observedEpoch.Load(),
			Pinned:        s.pinned.Load(),
			Neutralized:   s.neutralized.Load(),
			ThreadID:      s.threadID.Load(),
			Active:        mask&(uint64(1)<<uint(i)) != 0,
		}
	}
	return out
}

// TotalLimboCount returns the total count of limbo-bag entries across all
// slots, exposed for inspection and testing.
func (m *Manager) TotalLimboCount() int {
	total := 0
	for i := range m.table.slots {
		s := &m.table.slots[i]
		for b := s.headBag.Load(); b != nil; b = b.next {
			total += len(b.objects)
		}
	}
	return total
}

// Metrics returns the Manager's metrics, or nil if WithMetrics(true) was
// not supplied.
func (m *Manager) Metrics() *Metrics {
	return m.metrics
}

// Shutdown drains remaining bags on every slot, invoking destructors and
// swallowing (recovering) any panic rather than propagating it, since a
// single misbehaving destructor should not prevent every other slot from
// draining. A Manager that is never shut down leaks retired-object memory
// but does not corrupt anything.
func (m *Manager) Shutdown(ctx context.Context) error {
	var total int
	m.shutdownOnce.Do(func() {
		m.shutdown.Store(true)
		for i := range m.table.slots {
			select {
			case <-ctx.Done():
				return
			default:
			}
			s := &m.table.slots[i]
			total += drainBags(s.headBag.Load())
			s.reset()
		}
		m.logger.Info().
			Uint64(`manager_id`, m.id).
			Int(`reclaimed`, total).
			Log(`manager shut down`)
	})
	return ctx.Err()
}
