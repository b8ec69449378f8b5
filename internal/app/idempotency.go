package app

// idempotentResponse is the cached outcome of a submitMove call, keyed by
// moveId. The exact same value is returned to every retry of the same
// moveId for the lifetime of the record.
type idempotentResponse struct {
	result SubmitMoveResult
	err    error
}

// idempotencyTable is a per-match, in-memory record of every moveId the
// actor has ever answered. Like subscriber bookkeeping it is only ever
// touched from the actor's mailbox goroutine. Keys are released along with
// the rest of the actor's state DefaultIdempotencyRetention after match
// end; there is no separate GC goroutine.
type idempotencyTable map[string]idempotentResponse

func (t idempotencyTable) lookup(moveID string) (idempotentResponse, bool) {
	r, ok := t[moveID]
	return r, ok
}

func (t idempotencyTable) store(moveID string, result SubmitMoveResult, err error) {
	t[moveID] = idempotentResponse{result: result, err: err}
}
