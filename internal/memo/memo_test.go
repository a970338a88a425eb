package memo

import (
	"testing"

	"golang.org/x/crypto/curve25519"
)

func keypair(t *testing.T, seed byte) (priv, pub [32]byte) {
	t.Helper()
	for i := range priv {
		priv[i] = seed
	}
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64
	curve25519.ScalarBaseMult(&pub, &priv)
	return priv, pub
}

// TestMemoRoundTrip freezes testable property 6 from spec.md §8: a memo
// encrypted to a recipient's viewing key decrypts back to the same
// payload, and is rejected (not mis-decrypted) by any other identity.
func TestMemoRoundTrip(t *testing.T) {
	recipientPriv, recipientPub := keypair(t, 7)
	otherPriv, _ := keypair(t, 9)

	payload := &Payload{
		Amount:        "0x0a",
		TokenAddress:  "0x0000000000000000000000000000000000000000",
		TokenSymbol:   "DOGE",
		TokenDecimals: 18,
		OwnerPubkey:   "0x01",
		Blinding:      "0x02",
	}

	ciphertext, err := EncryptTo(recipientPub, payload)
	if err != nil {
		t.Fatalf("EncryptTo: %v", err)
	}

	got, err := TryDecrypt(recipientPriv, ciphertext)
	if err != nil {
		t.Fatalf("TryDecrypt: %v", err)
	}
	if got == nil {
		t.Fatalf("expected the recipient to decrypt successfully")
	}
	if got.Amount != payload.Amount || got.TokenSymbol != payload.TokenSymbol {
		t.Fatalf("decrypted payload does not match original")
	}

	notForMe, err := TryDecrypt(otherPriv, ciphertext)
	if err != nil {
		t.Fatalf("TryDecrypt for wrong identity should not error: %v", err)
	}
	if notForMe != nil {
		t.Fatalf("a memo encrypted for a different identity must not decrypt")
	}
}

func TestTryDecryptRejectsGarbage(t *testing.T) {
	priv, _ := keypair(t, 1)
	if got, err := TryDecrypt(priv, []byte("too short")); err != nil || got != nil {
		t.Fatalf("expected a silent nil,nil for undersized input")
	}
}
