package note

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/notfartdev/zdoge-shielded-core/internal/field"
	"github.com/notfartdev/zdoge-shielded-core/pkg/types"
)

func testNote(t *testing.T) *types.Note {
	t.Helper()
	owner := field.FromUint64(7)
	blinding := field.FromUint64(99)
	amount := uint256.NewInt(10)
	token := common.HexToAddress("0x0000000000000000000000000000000000000000")
	n := New(owner, amount, token, "DOGE", 18, blinding)
	return n
}

func TestShareableRoundTrip(t *testing.T) {
	n := testNote(t)

	s, err := ToShareableString(n)
	if err != nil {
		t.Fatalf("ToShareableString: %v", err)
	}

	got, err := FromShareableString(s)
	if err != nil {
		t.Fatalf("FromShareableString: %v", err)
	}

	if !field.Equal(got.Commitment, n.Commitment) {
		t.Fatalf("round-tripped note has a different commitment")
	}
	if got.Amount.Cmp(n.Amount) != 0 {
		t.Fatalf("round-tripped note has a different amount")
	}
}

func TestShareableRejectsBadChecksum(t *testing.T) {
	n := testNote(t)
	s, _ := ToShareableString(n)
	corrupted := s[:len(s)-1] + "1"
	if corrupted == s {
		corrupted = s[:len(s)-1] + "2"
	}
	if _, err := FromShareableString(corrupted); err == nil {
		t.Fatalf("expected an error decoding a corrupted shareable string")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	n := testNote(t)
	data, err := ToJSON(n)
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	got, err := FromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if !field.Equal(got.Commitment, n.Commitment) {
		t.Fatalf("JSON round trip changed the commitment")
	}
}

func TestBackupRoundTrip(t *testing.T) {
	n := testNote(t)
	data, err := Serialize("zdoge:test", []*types.Note{n})
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	addr, notes, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if addr != "zdoge:test" {
		t.Fatalf("address not preserved: %s", addr)
	}
	if len(notes) != 1 || !field.Equal(notes[0].Commitment, n.Commitment) {
		t.Fatalf("notes not preserved through backup round trip")
	}
}
