package turncred

import (
	"strings"
	"testing"
	"time"
)

func TestGenerateProducesDistinctCredentialsPerUser(t *testing.T) {
	u1, p1 := Generate("secret", "alice", time.Hour)
	u2, p2 := Generate("secret", "bob", time.Hour)
	if u1 == u2 || p1 == p2 {
		t.Fatalf("expected distinct credentials per user, got (%q,%q) and (%q,%q)", u1, p1, u2, p2)
	}
	if !strings.HasSuffix(u1, ":alice") {
		t.Fatalf("username = %q, want suffix :alice", u1)
	}
}

func TestGenerateIsDeterministicForSameExpiry(t *testing.T) {
	// Same secret+user+ttl computed twice in immediate succession should
	// usually land on the same expiry second and thus the same password;
	// verify the HMAC itself is a pure function of its inputs by making two
	// calls close together and checking that whenever the usernames (and so
	// the expiry seconds) match, the passwords match too.
	u1, p1 := Generate("secret", "alice", time.Hour)
	u2, p2 := Generate("secret", "alice", time.Hour)
	if u1 == u2 && p1 != p2 {
		t.Fatal("identical usernames must yield identical passwords")
	}
}
