package core

import (
	"context"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

const seedFixture = `
users:
  - name: Jane Smith
    email: jane@example.com
    password: seedpass1
    admin: true
    verified: true
  - name: Max Power
    email: MAX@Example.com
    password: seedpass2
`

func TestParseSeedFile(t *testing.T) {
	sf, err := ParseSeedFile([]byte(seedFixture))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(sf.Users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(sf.Users))
	}
	if !sf.Users[0].Admin || !sf.Users[0].Verified {
		t.Errorf("flags not decoded: %+v", sf.Users[0])
	}
	if sf.Users[1].Admin || sf.Users[1].Verified {
		t.Errorf("flags must default false: %+v", sf.Users[1])
	}
}

func TestParseSeedFileRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"not yaml":      "users: [}",
		"empty list":    "users: []",
		"missing email": "users:\n  - name: X\n    password: p",
	}
	for name, input := range cases {
		if _, err := ParseSeedFile([]byte(input)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestApplySeedSkipsExisting(t *testing.T) {
	repo := newMemoryUserRepo()
	ctx := context.Background()

	sf, err := ParseSeedFile([]byte(seedFixture))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	created, err := ApplySeed(ctx, repo, sf, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if created != 2 {
		t.Fatalf("expected 2 created, got %d", created)
	}

	// Emails are stored normalized.
	u, err := repo.FindByEmail(ctx, "max@example.com")
	if err != nil {
		t.Fatalf("find seeded user: %v", err)
	}
	if strings.ToLower(u.Email) != u.Email {
		t.Errorf("email not normalized: %q", u.Email)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("seedpass2")) != nil {
		t.Error("stored hash does not match seed password")
	}

	// A second run is a no-op.
	created, err = ApplySeed(ctx, repo, sf, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("re-apply: %v", err)
	}
	if created != 0 {
		t.Fatalf("re-apply created %d users", created)
	}
}
