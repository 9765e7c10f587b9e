package types

import "errors"

// Engine error taxonomy. Handlers map these onto HTTP status codes;
// everything else is matched with errors.Is against the wrapped chain.
var (
	// ErrNotFound means a referenced record or assignment does not exist
	ErrNotFound = errors.New("not found")

	// ErrAlreadyClaimed means another agent holds a live lease on the record.
	// This is expected contention, not a fault: callers surface "in use" and
	// pick another record instead of retrying.
	ErrAlreadyClaimed = errors.New("record already claimed")

	// ErrNotHolder means the caller does not hold the lease it tried to mutate
	ErrNotHolder = errors.New("not the lease holder")

	// ErrForbidden means the caller does not own the assignment
	ErrForbidden = errors.New("forbidden")

	// ErrAlreadyCompleted guards completed assignments against duplicate
	// transition requests (network retries). Callers may treat it as success.
	ErrAlreadyCompleted = errors.New("assignment already completed")

	// ErrValidation means the request itself is malformed (bad counts,
	// unknown category, more records requested than available)
	ErrValidation = errors.New("validation failed")
)
