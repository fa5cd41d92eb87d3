package auth

import "testing"

func TestHashPassword(t *testing.T) {
	// sha256("password")
	const want = "5e884898da28047151d0e56f8dc6292773603d0d6aabbdd62a11ef721d1542d8"
	if got := HashPassword("password"); got != want {
		t.Errorf("HashPassword = %s, want %s", got, want)
	}
}

func TestCheckPassword(t *testing.T) {
	hash := HashPassword("s3cret")
	if !CheckPassword("s3cret", hash) {
		t.Error("expected matching password to check")
	}
	if CheckPassword("S3cret", hash) {
		t.Error("expected different password to fail")
	}
	if CheckPassword("s3cret", "") {
		t.Error("expected empty hash to fail")
	}
}
