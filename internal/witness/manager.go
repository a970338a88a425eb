package witness

import (
	"fmt"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"github.com/notfartdev/zdoge-shielded-core/pkg/types"
)

// Circuit names the four operations spec.md §4.8 defines proofs for.
type Circuit uint8

const (
	CircuitShield Circuit = iota
	CircuitTransfer
	CircuitUnshield
	CircuitSwap
)

func (c Circuit) String() string {
	switch c {
	case CircuitShield:
		return "shield"
	case CircuitTransfer:
		return "transfer"
	case CircuitUnshield:
		return "unshield"
	case CircuitSwap:
		return "swap"
	default:
		return "unknown"
	}
}

// compiled holds one circuit's constraint system and Groth16 keypair.
type compiled struct {
	ccs frontend.CompiledConstraintSystem
	pk  groth16.ProvingKey
	vk  groth16.VerifyingKey
}

// Manager compiles the four circuits once and serves Prove/Verify calls
// against them, mirroring the teacher's internal/zkp/circuits.go
// CircuitManager split between compiled circuits and their keys.
type Manager struct {
	mu       sync.RWMutex
	circuits map[Circuit]*compiled
}

// NewManager returns an empty Manager; call Setup for each circuit before
// proving. A trusted setup per circuit is a one-time, offline step in a
// real deployment — spec.md treats the resulting proving/verifying keys
// as externally distributed artifacts, not something generated per run.
func NewManager() *Manager {
	return &Manager{circuits: make(map[Circuit]*compiled)}
}

// Setup compiles circuit and runs Groth16's trusted setup for it.
func (m *Manager) Setup(c Circuit) error {
	var circuit frontend.Circuit
	switch c {
	case CircuitShield:
		circuit = &ShieldCircuit{}
	case CircuitTransfer:
		circuit = &TransferCircuit{}
	case CircuitUnshield:
		circuit = &UnshieldCircuit{}
	case CircuitSwap:
		circuit = &SwapCircuit{}
	default:
		return fmt.Errorf("witness: unknown circuit %d", c)
	}

	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, circuit)
	if err != nil {
		return fmt.Errorf("witness: compiling %s circuit: %w", c, err)
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return fmt.Errorf("witness: setup for %s circuit: %w", c, err)
	}

	m.mu.Lock()
	m.circuits[c] = &compiled{ccs: ccs, pk: pk, vk: vk}
	m.mu.Unlock()
	return nil
}

// VerifyingKey exposes a compiled circuit's verifying key, which the
// client publishes alongside the pool contract for on-chain verification.
func (m *Manager) VerifyingKey(c Circuit) (groth16.VerifyingKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.circuits[c]
	if !ok {
		return nil, fmt.Errorf("witness: %s circuit not set up", c)
	}
	return entry.vk, nil
}

// Proof is a serialized Groth16 proof plus its public inputs, ready to be
// submitted to the pool contract by an adapter.
type Proof struct {
	Circuit      Circuit
	ProofBytes   []byte
	PublicBytes  []byte
}

// Prove builds a full witness from assignment (one of the circuit structs
// in circuits.go, populated by the builders in this package) and returns
// a serialized proof.
func (m *Manager) Prove(c Circuit, assignment frontend.Circuit) (*Proof, error) {
	m.mu.RLock()
	entry, ok := m.circuits[c]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("witness: %s circuit not set up", c)
	}

	w, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("witness: %w: %s", types.ErrCryptoInvariant, err)
	}

	proof, err := groth16.Prove(entry.ccs, entry.pk, w)
	if err != nil {
		return nil, fmt.Errorf("witness: %w: proving %s failed: %s", types.ErrCryptoInvariant, c, err)
	}

	publicWitness, err := w.Public()
	if err != nil {
		return nil, err
	}

	proofBytes, err := marshalProof(proof)
	if err != nil {
		return nil, err
	}
	publicBytes, err := marshalWitness(publicWitness)
	if err != nil {
		return nil, err
	}

	return &Proof{Circuit: c, ProofBytes: proofBytes, PublicBytes: publicBytes}, nil
}

// Verify re-checks a proof locally against the circuit's verifying key —
// cheap insurance against shipping a proof for a stale or mismatched
// witness. The pkg/shielded operations do not call it before submitting.
func (m *Manager) Verify(p *Proof) (bool, error) {
	m.mu.RLock()
	entry, ok := m.circuits[p.Circuit]
	m.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("witness: %s circuit not set up", p.Circuit)
	}

	proof := groth16.NewProof(ecc.BN254)
	if err := unmarshalProof(proof, p.ProofBytes); err != nil {
		return false, err
	}

	publicWitness, err := frontend.NewWitness(nil, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return false, err
	}
	if err := unmarshalWitness(publicWitness, p.PublicBytes); err != nil {
		return false, err
	}

	if err := groth16.Verify(proof, entry.vk, publicWitness); err != nil {
		return false, nil
	}
	return true, nil
}
