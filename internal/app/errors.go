package app

import "errors"

// Rejection sentinels returned by MatchActor.SubmitMove and friends. HTTP
// handlers translate these to the wire error envelope; they are never
// presented to callers as Go panics.
var (
	ErrUnauthorized      = errors.New("app: not authorized for this match")
	ErrNotYourTurn       = errors.New("app: not your turn")
	ErrVersionMismatch   = errors.New("app: expected version does not match current state version")
	ErrInvalidMoveSchema = errors.New("app: move failed schema validation")
	ErrIllegalMove       = errors.New("app: move rejected by the engine")
	ErrTerminal          = errors.New("app: match has already ended")
	ErrAlreadyEnded      = errors.New("app: match has already ended")
	ErrInitFailed        = errors.New("app: match initialization failed")
	ErrActorBusy         = errors.New("app: actor mailbox is full")
)
