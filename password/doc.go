// Package password hashes and checks account passwords.
//
// New hashes are Argon2id in PHC form:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Legacy bcrypt hashes ($2a$, $2b$, $2y$) still verify. NeedsUpgrade flags
// them, along with Argon2id hashes made with weaker parameters than the
// current Config, so a successful login can store a fresh hash.
//
// The package holds no state beyond its Config and imports nothing else from
// authsvc.
package password
