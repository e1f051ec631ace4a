package ledger

import "errors"

var (
	// ErrAccountNotFound is permanent: retrying the same call cannot succeed.
	ErrAccountNotFound = errors.New("account not found")
	// ErrDeviceNotFound is returned for heartbeats from unregistered keys.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrInsufficientPoints rejects a conversion that would overdraw points.
	ErrInsufficientPoints = errors.New("insufficient_points")
	// ErrConversionDisabled is returned while the global switch is off.
	ErrConversionDisabled = errors.New("conversion_disabled")
	// ErrDailyCapReached rejects an earn once the UTC-day budget is spent.
	ErrDailyCapReached = errors.New("daily_cap_reached")
	// ErrCooldownActive rejects an earn arriving before the per-type cooldown expires.
	ErrCooldownActive = errors.New("cooldown_active")
)
