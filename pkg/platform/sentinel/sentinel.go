package sentinel

import "errors"

// Sentinel errors describe facts about stored state. Stores return them
// (optionally wrapped) and services translate them into domain errors:
//   - ErrNotFound: no such row or key
//   - ErrConflict: a uniqueness or state precondition was violated
//   - ErrExpired: the record exists but its lifetime is over
//   - ErrAlreadyUsed: a single-use record (challenge) was consumed
//   - ErrUnavailable: the backing store could not be reached
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrExpired     = errors.New("expired")
	ErrAlreadyUsed = errors.New("already used")
	ErrUnavailable = errors.New("unavailable")
)
