package password

import (
	"strings"
	"testing"
)

func testVault(t *testing.T) *Vault {
	t.Helper()

	cfg := DefaultConfig()
	// Keep test runs fast; still above the enforced minimums.
	cfg.Memory = 8 * 1024
	cfg.Time = 1
	cfg.Parallelism = 1

	v, err := NewVault(cfg)
	if err != nil {
		t.Fatalf("NewVault failed: %v", err)
	}
	return v
}

func TestHashVerifyRoundTrip(t *testing.T) {
	v := testVault(t)

	digest, err := v.Hash("Correct-Horse-1!")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if !strings.HasPrefix(digest, "$argon2id$") {
		t.Fatalf("unexpected digest format: %q", digest)
	}

	if !v.Verify("Correct-Horse-1!", digest) {
		t.Fatal("expected matching password to verify")
	}
	if v.Verify("correct-horse-1!", digest) {
		t.Fatal("expected non-matching password to fail verification")
	}
}

func TestHashIsSalted(t *testing.T) {
	v := testVault(t)

	first, err := v.Hash("SamePassword9$")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	second, err := v.Hash("SamePassword9$")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	if first == second {
		t.Fatal("two hashes of the same input must not be byte-identical")
	}
	if !v.Verify("SamePassword9$", first) || !v.Verify("SamePassword9$", second) {
		t.Fatal("both salted hashes must verify")
	}
}

func TestVerifyMalformedDigest(t *testing.T) {
	v := testVault(t)

	cases := []string{
		"",
		"not-a-digest",
		"$argon2id$v=19$m=65536,t=3,p=2$short$short",
		"$bcrypt$v=19$m=65536,t=3,p=2$AAAA$BBBB",
		"$argon2id$v=1$m=65536,t=3,p=2$AAAA$BBBB",
	}
	for _, digest := range cases {
		if v.Verify("anything", digest) {
			t.Fatalf("malformed digest %q must not verify", digest)
		}
	}
}

func TestNewVaultRejectsWeakParams(t *testing.T) {
	weak := []Config{
		{Memory: 1024, Time: 3, Parallelism: 2, SaltLength: 16, KeyLength: 32},
		{Memory: 64 * 1024, Time: 0, Parallelism: 2, SaltLength: 16, KeyLength: 32},
		{Memory: 64 * 1024, Time: 3, Parallelism: 0, SaltLength: 16, KeyLength: 32},
		{Memory: 64 * 1024, Time: 3, Parallelism: 2, SaltLength: 8, KeyLength: 32},
		{Memory: 64 * 1024, Time: 3, Parallelism: 2, SaltLength: 16, KeyLength: 8},
	}
	for i, cfg := range weak {
		if _, err := NewVault(cfg); err == nil {
			t.Fatalf("case %d: expected weak config to be rejected", i)
		}
	}
}

func TestNeedsRehash(t *testing.T) {
	v := testVault(t)

	digest, err := v.Hash("Rehash-Me-77?")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	needs, err := v.NeedsRehash(digest)
	if err != nil {
		t.Fatalf("NeedsRehash failed: %v", err)
	}
	if needs {
		t.Fatal("digest produced with current params should not need rehash")
	}

	stronger := DefaultConfig()
	sv, err := NewVault(stronger)
	if err != nil {
		t.Fatalf("NewVault failed: %v", err)
	}
	needs, err = sv.NeedsRehash(digest)
	if err != nil {
		t.Fatalf("NeedsRehash failed: %v", err)
	}
	if !needs {
		t.Fatal("digest produced with weaker params should need rehash")
	}
}
