// Package rate implements the token-bucket gate applied to sensitive engine
// operations (signup, signin, password-reset request).
//
// Refill is computed lazily from elapsed time at each check; there is no
// background timer. A limiter holds either one process-wide bucket or one
// bucket per caller identity, selected by Scope.
package rate
