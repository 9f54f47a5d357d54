package imaging

import "errors"

// ErrNotFound means the queue entry was already removed, usually because
// another operator handled it. Callers treat it as "someone else got there
// first", not as a loud failure.
var ErrNotFound = errors.New("entry not found in unassigned queue")

// ErrNoPatient is returned by manual assignment when the explicit patient
// reference does not resolve.
var ErrNoPatient = errors.New("patient not found")
