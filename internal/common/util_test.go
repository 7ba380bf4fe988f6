package common

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func TestGenerateRandByteArray_Sizes(t *testing.T) {
	// The sizes the key chain actually requests: salt, GCM nonce, AES key.
	for _, size := range []int{16, 12, 32} {
		buf := GenerateRandByteArray(size)
		if len(buf) != size {
			t.Fatalf("expected %d bytes, got %d", size, len(buf))
		}
	}
}

func TestGenerateRandByteArray_DrawsFreshBytes(t *testing.T) {
	a := GenerateRandByteArray(32)
	b := GenerateRandByteArray(32)
	if bytes.Equal(a, b) {
		t.Fatalf("two 32-byte draws are identical; entropy source is broken")
	}
}

func TestMakeRandHexString(t *testing.T) {
	const size = 16 // the blob service's storage-key suffix

	s, err := MakeRandHexString(size)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s) != size*2 {
		t.Fatalf("expected %d hex chars, got %d", size*2, len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		t.Fatalf("not valid hex: %v", err)
	}

	other, err := MakeRandHexString(size)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s == other {
		t.Fatalf("two random suffixes collided: %q", s)
	}
}

func TestMakeRandHexString_ZeroSize(t *testing.T) {
	s, err := MakeRandHexString(0)
	if err != nil {
		t.Fatalf("unexpected error for size=0: %v", err)
	}
	if s != "" {
		t.Fatalf("expected empty string for size=0, got %q", s)
	}
}

func TestWipeByteArray(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}
	WipeByteArray(buf)
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("expected buf[%d]==0, got %d", i, v)
		}
	}
}

func TestWipeByteArray_NilSafe(t *testing.T) {
	WipeByteArray(nil)
}
