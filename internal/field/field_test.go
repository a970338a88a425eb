package field

import (
	"testing"
)

// TestCommitDeterministic freezes testable property 1 from spec.md §8:
// commit(...) is stable across runs for the same inputs.
func TestCommitDeterministic(t *testing.T) {
	owner := FromUint64(42)
	amount := FromUint64(10_000000000000000000)
	token := FromUint64(0)
	blinding := FromUint64(7)

	a := Commit(owner, amount, token, blinding)
	b := Commit(owner, amount, token, blinding)

	if !Equal(a, b) {
		t.Fatalf("commit is not deterministic: %s != %s", a.String(), b.String())
	}
}

func TestCommitChangesWithBlinding(t *testing.T) {
	owner := FromUint64(42)
	amount := FromUint64(100)
	token := FromUint64(0)

	a := Commit(owner, amount, token, FromUint64(1))
	b := Commit(owner, amount, token, FromUint64(2))

	if Equal(a, b) {
		t.Fatalf("commitments with different blinding must differ")
	}
}

// TestNullifyDeterministic freezes testable property 2: nullify(...) is
// stable, and two different leaf indices of the same commitment diverge.
func TestNullifyDeterministic(t *testing.T) {
	commitment := FromUint64(123)
	spendingKey := FromUint64(9)

	n1a := Nullify(commitment, 0, spendingKey)
	n1b := Nullify(commitment, 0, spendingKey)
	if !Equal(n1a, n1b) {
		t.Fatalf("nullify is not deterministic")
	}

	n2 := Nullify(commitment, 1, spendingKey)
	if Equal(n1a, n2) {
		t.Fatalf("different leaf indices of the same commitment must produce different nullifiers")
	}
}

func TestMiMC2IsPureAndOrderSensitive(t *testing.T) {
	a := FromUint64(1)
	b := FromUint64(2)

	left := MiMC2(a, b)
	right := MiMC2(a, b)
	if !Equal(left, right) {
		t.Fatalf("MiMC2 must be a pure function of its inputs")
	}

	reversed := MiMC2(b, a)
	if Equal(left, reversed) {
		t.Fatalf("MiMC2(a,b) should not equal MiMC2(b,a) in general")
	}
}

func TestFromBytesRoundTrip(t *testing.T) {
	x := FromUint64(0xdeadbeef)
	b := ToBytes(x)
	y := FromBytes(b[:])
	if !Equal(x, y) {
		t.Fatalf("round trip through bytes changed the value")
	}
}
