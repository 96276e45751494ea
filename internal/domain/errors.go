package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrLockHeld     = errors.New("lock already held")
	ErrLockLost     = errors.New("lock lost")
	ErrUnauthorized = errors.New("unauthorized")

	// Ledger and configuration failures. Ledger errors wrap one of these so
	// the scheduling loop can classify them with errors.Is.
	ErrRead          = errors.New("auction read failed")
	ErrSimulation    = errors.New("bid simulation failed")
	ErrSubmission    = errors.New("bid submission failed")
	ErrConfirmation  = errors.New("transaction confirmation failed")
	ErrSettlement    = errors.New("settlement failed")
	ErrConfiguration = errors.New("invalid configuration")
)
