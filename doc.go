// Package account implements a user-account backend: registration, email
// activation, session login/logout, password change and reset, and profile
// management exposed through go-router handlers.
//
// Tokens:
//   - Activation and password reset links carry a signed token bound to a
//     fingerprint of the user's mutable state (activation flag, password hash,
//     last login). Once the state changes the token stops verifying, so links
//     are single-use without a persisted token table.
//   - User ids travel in links through an IdentityEncoder, a reversible
//     transport encoding that is not a secret.
//
// Concurrency:
//   - State transitions (activation, password replacement) are compare-and-set
//     updates at the storage layer. Concurrent confirmations for the same user
//     resolve to exactly one winner; the rest observe the new state.
//
// Activity sinks:
//   - ActivitySink is a best-effort audit emitter for logins, activations,
//     password changes and account deletion. Errors are logged, never returned.
package account
