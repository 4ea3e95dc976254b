package jwt

import (
	"testing"
	"time"
)

// FuzzParseTokens feeds arbitrary strings to both parsers. Nothing may panic,
// and a token accepted by one parser must be rejected by the other.
func FuzzParseTokens(f *testing.F) {
	mgr, err := NewManager(Config{
		AccessKey:  testAccessKey,
		RefreshKey: testRefreshKey,
		AccessTTL:  5 * time.Minute,
		RefreshTTL: time.Hour,
		Issuer:     "fuzz",
	})
	if err != nil {
		f.Fatal(err)
	}

	access, _, err := mgr.CreateAccess("u-1", "user")
	if err != nil {
		f.Fatal(err)
	}
	f.Add(access)
	f.Add("")
	f.Add("a.b.c")
	f.Add("eyJhbGciOiJub25lIn0.eyJzdWIiOiJ1LTEifQ.")

	f.Fuzz(func(t *testing.T, input string) {
		a, aerr := mgr.ParseAccess(input)
		r, rerr := mgr.ParseRefresh(input)
		if aerr == nil && a == nil {
			t.Fatal("ParseAccess returned nil claims without error")
		}
		if rerr == nil && r == nil {
			t.Fatal("ParseRefresh returned nil claims without error")
		}
		if aerr == nil && rerr == nil {
			t.Fatal("token accepted as both access and refresh")
		}
	})
}
