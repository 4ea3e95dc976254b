package permission

import "testing"

func TestParseRole(t *testing.T) {
	cases := map[string]Role{"user": RoleUser, "ADMIN": RoleAdmin, " admin ": RoleAdmin}
	for in, want := range cases {
		got, err := ParseRole(in)
		if err != nil || got != want {
			t.Fatalf("ParseRole(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseRole("root"); err != ErrUnknownRole {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}

func TestHasRole(t *testing.T) {
	admins := NewSet(RoleAdmin)
	if !HasRole(RoleAdmin, admins) {
		t.Fatal("expected admin to be allowed")
	}
	if HasRole(RoleUser, admins) {
		t.Fatal("expected user to be denied")
	}
	if HasRole(RoleAdmin, NewSet()) {
		t.Fatal("expected empty set to deny")
	}
	if !HasRole(RoleUser, NewSet(RoleUser, RoleAdmin)) {
		t.Fatal("expected user to be allowed by mixed set")
	}
}
