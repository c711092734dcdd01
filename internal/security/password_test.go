package security

import "testing"

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, errHash := HashPassword("hunter22")
	if errHash != nil {
		t.Fatalf("hash: %v", errHash)
	}
	if hash == "hunter22" {
		t.Fatalf("hash must not equal the plaintext")
	}
	if !VerifyPassword("hunter22", hash) {
		t.Fatalf("correct password should verify")
	}
	if VerifyPassword("hunter23", hash) {
		t.Fatalf("wrong password must not verify")
	}
}

func TestHashPasswordEmpty(t *testing.T) {
	if _, errHash := HashPassword(""); errHash == nil {
		t.Fatalf("empty password should be rejected")
	}
}
