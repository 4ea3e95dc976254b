package session

// Grant is what the store keeps for one live refresh token: whose it is, the
// role at issue time, and its lifetime in unix seconds. Records are keyed by
// the token's SHA-256 digest so the token itself is never persisted.
type Grant struct {
	UserID    string
	Role      string
	CreatedAt int64
	ExpiresAt int64
}

// Expired reports whether g has lapsed at unix time now.
func (g *Grant) Expired(now int64) bool {
	return g.ExpiresAt <= now
}
