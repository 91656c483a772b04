package debra

import (
	"errors"
	"fmt"
)

// Standard errors returned by this package's recoverable failure modes.
// Anything not listed here and not a typed result (UnpinResult,
// ReclaimReady/false) is not expected to occur in correct usage.
var (
	// ErrRegistrationFull is returned by Manager.Register when every slot
	// is occupied. No slot is consumed and no side effects occur.
	ErrRegistrationFull = errors.New("debra: registration failed, no free slot")

	// ErrInvalidConfiguration is returned by NewManager when a
	// ManagerOption supplies an out-of-range value.
	ErrInvalidConfiguration = errors.New("debra: invalid configuration")

	// ErrAlreadyShutdown is returned by Manager.Register once Shutdown has
	// been called. Other operations do not check for shutdown.
	ErrAlreadyShutdown = errors.New("debra: manager already shut down")

	// ErrUnknownSlot is returned by Deregister when passed a token issued
	// by a different Manager. A token whose slot was already released is
	// not detected.
	ErrUnknownSlot = errors.New("debra: slot is not owned by this token")
)

// wrapError wraps err with an operation label, preserving it for
// errors.Is/errors.As through the standard %w verb.
func wrapError(op string, err error) error {
	return fmt.Errorf("debra: %s: %w", op, err)
}
