package adapters

import (
	"encoding/hex"
	"testing"
)

// TestShieldNativeSelectorMatchesSpec freezes the literal selector value
// spec.md §6 names for shieldNative(bytes32).
func TestShieldNativeSelectorMatchesSpec(t *testing.T) {
	got := ShieldNativeSelector()
	want := "b13d48f2"
	if hex.EncodeToString(got[:]) != want {
		t.Fatalf("shieldNative selector = %x, want %s", got, want)
	}
}

func TestEncodeShieldNativeProducesCallableData(t *testing.T) {
	var commitment [32]byte
	commitment[31] = 1
	data, err := EncodeShieldNative(commitment)
	if err != nil {
		t.Fatalf("EncodeShieldNative: %v", err)
	}
	if len(data) < 4 {
		t.Fatalf("encoded call data too short")
	}
	var got [4]byte
	copy(got[:], data[:4])
	if got != ShieldNativeSelector() {
		t.Fatalf("packed call data selector does not match the precomputed selector")
	}
}
