// Package flows contains pure-function orchestrators for the token lifecycle
// operations of the Engine: refresh rotation, access validation and logout.
//
// Each flow function accepts a typed dependency struct and returns a result
// carrying a failure kind. The root package maps failure kinds to its public
// error taxonomy.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import the root package (to avoid import cycles).
//   - Perform I/O directly. All I/O goes through dependency interfaces.
package flows
