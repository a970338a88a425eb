package field

// Commit derives a note commitment:
//
//	commitment = MiMC(tag_commitment, owner_pubkey, amount, token_address, blinding)
//
// The domain tag and absorb order are fixed so that the off-chain engine,
// the deployed Groth16 circuits and the on-chain hasher all agree byte for
// byte (spec.md §3, §4.1).
func Commit(ownerPubkey, amount, token, blinding Fr) Fr {
	return MiMCK([]Fr{tagCommitment, ownerPubkey, amount, token, blinding})
}

// Nullify derives the one-shot spend tag for a note at a known leaf index:
//
//	nullifier = MiMC(tag_nullifier, commitment, leaf_index, spending_key)
//
// Two different leaf indices of the same commitment (which cannot happen
// for a well-formed pool, but is a property tests exercise) yield distinct
// nullifiers, satisfying testable property 2 in spec.md §8.
func Nullify(commitment Fr, leafIndex uint64, spendingKey Fr) Fr {
	return MiMCK([]Fr{tagNullifier, commitment, FromUint64(leafIndex), spendingKey})
}
