package domain

import "errors"

// Protocol outcomes. Callers match these with errors.Is; the HTTP layer maps
// them to status codes. AlreadyTerminal, WindowExpired and BadPassword are
// final answers; retrying cannot change them. StoreUnavailable is the only
// transient one and is safe to retry because every state transition is a CAS.
var (
	ErrAlertNotFound        = errors.New("alert not found")
	ErrGuardianUnreachable  = errors.New("guardian unreachable")
	ErrAlreadyTerminal      = errors.New("confirmation already terminal")
	ErrWindowExpired        = errors.New("cancellation window expired")
	ErrBadPassword          = errors.New("bad password")
	ErrNoPasswordConfigured = errors.New("no cancel password configured")
	ErrStoreUnavailable     = errors.New("store unavailable")
)
