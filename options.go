package debra

import (
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// defaultMaxThreads is the default upper bound on concurrently registered
// threads (spec default, fits one machine word for the active mask).
const defaultMaxThreads = 64

// defaultLimboBagCapacity is the default number of retirements per bag.
const defaultLimboBagCapacity = 64

// defaultEpochsBeforeNeutralize is the default staleness tolerance before
// the neutralizer signals a pinned thread.
const defaultEpochsBeforeNeutralize = uint64(2)

// managerOptions holds configuration options for Manager creation.
type managerOptions struct {
	maxThreads             int
	limboBagCapacity       int
	epochsBeforeNeutralize uint64
	logger                 *logiface.Logger[*stumpy.Event]
	metricsEnabled         bool
	neutralizationRates    map[time.Duration]int
}

// --- Manager Options ---

// ManagerOption configures a Manager instance.
type ManagerOption interface {
	applyManager(*managerOptions) error
}

// managerOptionImpl implements ManagerOption.
type managerOptionImpl struct {
	applyManagerFunc func(*managerOptions) error
}

func (m *managerOptionImpl) applyManager(opts *managerOptions) error {
	return m.applyManagerFunc(opts)
}

// WithMaxThreads sets the upper bound on concurrently registered threads.
// Must be positive and no greater than 64, since the active mask is a
// single machine word.
func WithMaxThreads(n int) ManagerOption {
	return &managerOptionImpl{func(opts *managerOptions) error {
		if n <= 0 || n > 64 {
			return wrapError("WithMaxThreads", ErrInvalidConfiguration)
		}
		opts.maxThreads = n
		return nil
	}}
}

// WithLimboBagCapacity sets the number of retirements held per limbo bag
// before a fresh bag is allocated. Must be positive.
func WithLimboBagCapacity(n int) ManagerOption {
	return &managerOptionImpl{func(opts *managerOptions) error {
		if n <= 0 {
			return wrapError("WithLimboBagCapacity", ErrInvalidConfiguration)
		}
		opts.limboBagCapacity = n
		return nil
	}}
}

// WithEpochsBeforeNeutralize sets the staleness tolerance, in epochs,
// before the neutralizer will force-unpin a stalled thread.
func WithEpochsBeforeNeutralize(epochs uint64) ManagerOption {
	return &managerOptionImpl{func(opts *managerOptions) error {
		if epochs == 0 {
			return wrapError("WithEpochsBeforeNeutralize", ErrInvalidConfiguration)
		}
		opts.epochsBeforeNeutralize = epochs
		return nil
	}}
}

// WithLogger injects a structured logger. The zero value (nil) leaves the
// Manager using a no-op logger, so omitting this option never panics or
// blocks.
func WithLogger(logger *logiface.Logger[*stumpy.Event]) ManagerOption {
	return &managerOptionImpl{func(opts *managerOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithMetrics enables rate and occupancy metrics collection on the
// Manager. When enabled, metrics are accessible via Manager.Metrics.
func WithMetrics(enabled bool) ManagerOption {
	return &managerOptionImpl{func(opts *managerOptions) error {
		opts.metricsEnabled = enabled
		return nil
	}}
}

// WithNeutralizationRateLimit throttles how often the neutralizer emits
// log lines for repeatedly-stalled slots, using the same category-keyed
// sliding window rate limiter as go-catrate. The force-unpin CAS itself is
// never rate-limited, and neither is the Neutralizations metric — only the
// log line is. A nil or empty map disables throttling entirely (the
// default).
func WithNeutralizationRateLimit(rates map[time.Duration]int) ManagerOption {
	return &managerOptionImpl{func(opts *managerOptions) error {
		opts.neutralizationRates = rates
		return nil
	}}
}

// resolveManagerOptions applies ManagerOption instances to managerOptions.
func resolveManagerOptions(opts []ManagerOption) (*managerOptions, error) {
	cfg := &managerOptions{
		maxThreads:             defaultMaxThreads,
		limboBagCapacity:       defaultLimboBagCapacity,
		epochsBeforeNeutralize: defaultEpochsBeforeNeutralize,
	}
	for _, opt := range opts {
		if opt == nil {
			continue // skip nil options gracefully
		}
		if err := opt.applyManager(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
