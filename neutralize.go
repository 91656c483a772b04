package debra

import (
	"context"
	"time"

	"github.com/joeycumines/go-catrate"
)

// neutralizeSlot force-closes a stalled thread's critical section directly
// via atomic compare-and-swap. A Go goroutine cannot be interrupted
// asynchronously the way a POSIX signal interrupts a thread, so rather
// than routing through a signal handler, the neutralizer performs the
// handler's own effect itself.
//
// It touches only the two atomic booleans of the target's own slot:
// pinned is cleared and neutralized is set, with no other state access.
func neutralizeSlot(s *slot) (delivered bool) {
	if s.threadID.Load() == 0 {
		return false
	}
	if !s.pinned.CompareAndSwap(true, false) {
		// not pinned (or a concurrent unpin already won the race) — a
		// no-op; there is nothing left to force-close.
		return false
	}
	s.neutralized.Store(true) // release
	return true
}

// NeutralizeStalled scans registered slots and force-unpins those pinned
// at an epoch older than epochsBeforeNeutralize behind the current global
// epoch. It never targets the calling thread's own slot — self-
// neutralization could force-unpin a thread mid-critical-section from
// inside its own call stack. Returns the number of slots neutralized.
func (m *Manager) NeutralizeStalled(ctx context.Context) int {
	callerThreadID := currentThreadID()
	e := m.epoch.Load() // acquire
	var cutoff uint64
	if e > m.epochsBeforeNeutralize {
		cutoff = e - m.epochsBeforeNeutralize
	}

	sent := 0
	for i := range m.table.slots {
		select {
		case <-ctx.Done():
			return sent
		default:
		}
		s := &m.table.slots[i]
		tid := s.threadID.Load()
		if tid == 0 || tid == callerThreadID {
			continue
		}
		if !s.pinned.Load() {
			continue
		}
		if s.observedEpoch.Load() >= cutoff {
			continue
		}
		if neutralizeSlot(s) {
			sent++
			m.logNeutralization(i, tid)
			if m.metrics != nil {
				m.metrics.Neutralizations.Increment()
			}
		}
	}
	return sent
}

// logNeutralization emits a throttled log line for slot index, keyed
// through go-catrate so a persistently stalled slot doesn't flood the log
// on every single neutralizer pass. The force-unpin CAS above is never
// throttled — only this ancillary observability path is.
func (m *Manager) logNeutralization(index int, threadID uint64) {
	if m.neutralizeLimiter == nil {
		m.emitNeutralizationLog(index, threadID)
		return
	}
	if _, ok := m.neutralizeLimiter.Allow(index); ok {
		m.emitNeutralizationLog(index, threadID)
	}
}

func (m *Manager) emitNeutralizationLog(index int, threadID uint64) {
	m.logger.Warning().
		Int(`slot`, index).
		Uint64(`thread_id`, threadID).
		Log(`neutralized stalled thread`)
}

// newNeutralizeLimiter builds the go-catrate limiter used to throttle
// neutralization observability, or nil if rates is empty/nil (disabling
// throttling entirely, the default). catrate.NewLimiter panics on an
// empty map, so the empty case must be handled before calling it.
func newNeutralizeLimiter(rates map[time.Duration]int) *catrate.Limiter {
	if len(rates) == 0 {
		return nil
	}
	return catrate.NewLimiter(rates)
}
