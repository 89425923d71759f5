package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

// ErrorUpstreamUnavailable means the e-boekhouden API could not be reached or
// rejected our session; a run aborts on it, keeping partial results.
var ErrorUpstreamUnavailable = errors.New("upstream unavailable")

// ErrorUnresolvableReference means no fallback was admissible for a party,
// account, or item reference (e.g. no default payable configured).
var ErrorUnresolvableReference = errors.New("unresolvable reference")
