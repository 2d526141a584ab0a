package util

import (
	"strings"
	"testing"
)

func TestStorageKeyPlain(t *testing.T) {
	if got := StorageKey("retain:app", "nav/home"); got != "retain:app:nav/home" {
		t.Fatalf("got %q", got)
	}
}

func TestStorageKeyHashesLongKeys(t *testing.T) {
	long := strings.Repeat("x", maxPlainKey+1)
	got := StorageKey("retain:app", long)
	if got != "retain:app:h:"+Redact(long) || len(Redact(long)) != 16 {
		t.Fatalf("got %q", got)
	}
	if StorageKey("retain:app", long+"y") == got {
		t.Fatalf("distinct keys must not collide")
	}
}
