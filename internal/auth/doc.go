// Package auth verifies bearer tokens against a remote signing key set.
//
// The Verifier implements the security-critical path: scheme check, unverified
// key id read, key resolution through the KeyCache (one forced refresh on an
// unknown id), RS256-only verification of signature/issuer/audience/expiry,
// and identity extraction. The KeyCache replaces its key set wholesale,
// collapses concurrent refreshes via singleflight and fails closed behind a
// circuit breaker when the key endpoint is down.
package auth
