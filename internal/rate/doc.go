// Package rate provides the Redis-backed fixed-window limiter consulted at
// the login boundary and before one-time code dispatch.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - ali: login per client IP
//   - acr: code dispatch per email
package rate
