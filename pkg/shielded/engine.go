// Package shielded wires every internal package into the public
// WalletEngine API a host application drives: init, shield, transfer,
// unshield, swap, notes/balance, backup/restore (spec.md §9 Design
// Notes). Where the teacher's node wires its components together inside
// cmd/ccoind/main.go's run(), this package is the equivalent assembly
// point for a client library instead of a long-running daemon process.
package shielded

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"github.com/notfartdev/zdoge-shielded-core/internal/adapters"
	"github.com/notfartdev/zdoge-shielded-core/internal/discovery"
	"github.com/notfartdev/zdoge-shielded-core/internal/field"
	"github.com/notfartdev/zdoge-shielded-core/internal/identity"
	"github.com/notfartdev/zdoge-shielded-core/internal/memo"
	"github.com/notfartdev/zdoge-shielded-core/internal/merkle"
	"github.com/notfartdev/zdoge-shielded-core/internal/note"
	"github.com/notfartdev/zdoge-shielded-core/internal/planner"
	"github.com/notfartdev/zdoge-shielded-core/internal/store"
	"github.com/notfartdev/zdoge-shielded-core/internal/witness"
	"github.com/notfartdev/zdoge-shielded-core/pkg/types"
)

// Notifier is the capability a host supplies to learn about state
// changes without polling the engine (spec.md §9: "the source's implicit
// event bus becomes an explicit notifier the host passes in").
type Notifier interface {
	OnStateChanged()
	OnNoteDiscovered(n *types.Note)
}

// noopNotifier is used when a host doesn't care to be notified.
type noopNotifier struct{}

func (noopNotifier) OnStateChanged()             {}
func (noopNotifier) OnNoteDiscovered(*types.Note) {}

// TxParams carries the per-transaction fields a host's own nonce/gas
// strategy must supply; the engine has no opinion on gas pricing.
type TxParams struct {
	ChainID   *big.Int
	Nonce     uint64
	GasTipCap *big.Int
	GasFeeCap *big.Int
	Gas       uint64
}

// Config assembles an Engine. Wallet, Chain and Relayer are the spec.md
// §4.10 external adapters; Tree and Manager are the local chain replica
// and the compiled circuit set; Persist is whichever backend
// internal/persistence provides. LogSource and Notifier are optional —
// a host that only wants to shield/transfer/unshield without running
// live discovery may leave LogSource nil.
type Config struct {
	ChainID     *big.Int
	PoolAddress common.Address

	Wallet  adapters.Wallet
	Chain   *adapters.ChainRPC
	Relayer *adapters.Relayer
	Tree    *merkle.Tree
	Manager *witness.Manager
	Persist store.Persistence

	LogSource       discovery.LogSource
	DiscoveryConfig discovery.Config
	Notifier        Notifier

	NextTxParams func(ctx context.Context) (*TxParams, error)
}

// Engine is the public WalletEngine: one per unlocked identity.
type Engine struct {
	cfg      Config
	identity *types.Identity
	store    *store.Store
	loop     *discovery.Loop
}

// New derives the wallet's shielded identity (spec.md §4.2) by asking
// cfg.Wallet to sign the canonical message, loads or creates its Note
// Store, and — if cfg.LogSource is set — starts the discovery loop.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	if cfg.Notifier == nil {
		cfg.Notifier = noopNotifier{}
	}

	msg := identity.CanonicalMessage(cfg.ChainID, cfg.PoolAddress.Hex())
	sig, err := cfg.Wallet.SignMessage(ctx, []byte(msg))
	if err != nil {
		return nil, types.NewOpError("shielded.New", types.KindUserInput, err)
	}
	id, err := identity.Derive(sig)
	if err != nil {
		return nil, err
	}

	st, err := store.New(id.Address, cfg.Persist)
	if err != nil {
		return nil, err
	}

	e := &Engine{cfg: cfg, identity: id, store: st}

	if cfg.LogSource != nil {
		dcfg := cfg.DiscoveryConfig
		if dcfg.PollInterval == 0 {
			dcfg = discovery.DefaultConfig()
		}
		e.loop = discovery.New(dcfg, cfg.LogSource, e.handleEvents)
		e.loop.Start(ctx)
	}

	return e, nil
}

// Close stops the discovery loop, flushing any pending batch.
func (e *Engine) Close() {
	if e.loop != nil {
		e.loop.Stop()
	}
}

// Address exposes the derived key material's public-facing part — the
// shielded address a counterparty sends to.
func (e *Engine) Address() string { return e.identity.Address }

// Notes returns every unspent note across all tokens.
func (e *Engine) Notes() []*types.Note { return e.store.AllNotes() }

// Balance sums unspent, spendable notes for a token key (an EVM address's
// hex form, or a legacy symbol — see types.Note.EffectiveTokenKey).
func (e *Engine) Balance(tokenKey string) *uint256.Int { return e.store.Balance(tokenKey) }

// MaxSendable reports the largest amount a single transfer/unshield/swap
// of tokenKey could send, net of relayer fees (spec.md §4.6).
func (e *Engine) MaxSendable(ctx context.Context, tokenKey string) (*uint256.Int, error) {
	fees, err := e.cfg.Relayer.Info(ctx)
	if err != nil {
		return nil, err
	}
	return planner.MaxSendable(e.store.NotesForToken(tokenKey), fees), nil
}

// Backup serializes the identity's address and every known note into the
// spec.md §6 wallet_backup JSON envelope. Key material itself is never
// included — only the caller's original signature can rederive it.
func (e *Engine) Backup() (string, error) {
	data, err := note.Serialize(e.identity.Address, e.store.AllNotes())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Restore loads notes from a backup envelope previously produced by
// Backup into the Note Store, re-verifying every note's commitment.
func (e *Engine) Restore(backup string) error {
	_, notes, err := note.Deserialize([]byte(backup))
	if err != nil {
		return err
	}
	for _, n := range notes {
		if err := e.store.AddPending(n); err != nil {
			return err
		}
	}
	e.cfg.Notifier.OnStateChanged()
	return nil
}

// Shield deposits amount of token into the pool, owned by this identity.
// The returned Note is pending until discovery confirms its leaf index.
func (e *Engine) Shield(ctx context.Context, token common.Address, symbol string, decimals uint8, amount *uint256.Int) (*types.Note, error) {
	if amount == nil || amount.IsZero() {
		return nil, fmt.Errorf("shielded: %w", types.ErrInvalidAmount)
	}

	blinding, err := field.Random()
	if err != nil {
		return nil, fmt.Errorf("shielded: drawing blinding factor: %w", err)
	}
	n := note.New(e.identity.AddressPubkey, amount, token, symbol, decimals, blinding)

	if err := e.store.AddPending(n); err != nil {
		return nil, err
	}

	assignment := witness.ShieldAssignment(n)
	if _, err := e.cfg.Manager.Prove(witness.CircuitShield, assignment); err != nil {
		return nil, err
	}

	commitmentBytes := n.Commitment.Bytes()
	var calldata []byte
	var value *big.Int
	if token == (common.Address{}) {
		calldata, err = adapters.EncodeShieldNative(commitmentBytes)
		value = amount.ToBig()
	} else {
		calldata, err = adapters.EncodeShieldToken(token, amount.ToBig(), commitmentBytes)
		value = big.NewInt(0)
	}
	if err != nil {
		return nil, fmt.Errorf("shielded: encoding shield call: %w", err)
	}

	if _, err := e.sendTx(ctx, value, calldata); err != nil {
		return nil, err
	}

	e.cfg.Notifier.OnStateChanged()
	return n, nil
}

// Transfer shields amount of a token to recipientAddress (a "zdoge:"
// address string), leaving self-change behind. Mirrors spec.md §4.6's
// transfer row: plan -> build witness -> prove -> relay.
func (e *Engine) Transfer(ctx context.Context, recipientAddress string, tokenKey string, amount *uint256.Int) (common.Hash, error) {
	recipientPubkey, recipientEncPub, err := identity.DecodeAddress(recipientAddress)
	if err != nil {
		return common.Hash{}, fmt.Errorf("shielded: %w", types.ErrInvalidAddress)
	}

	fees, err := e.cfg.Relayer.Info(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	candidates := e.store.NotesForToken(tokenKey)
	plan, err := planner.Plan(candidates, amount, fees)
	if err != nil {
		return common.Hash{}, err
	}

	token := plan.Inputs[0].TokenAddress
	symbol := plan.Inputs[0].TokenSymbol
	decimals := plan.Inputs[0].TokenDecimals

	recipientBlinding, err := field.Random()
	if err != nil {
		return common.Hash{}, err
	}
	recipientNote := note.New(recipientPubkey, plan.SendAmount, token, symbol, decimals, recipientBlinding)

	changeNote, err := e.selfChangeNote(plan.ChangeAmount, token, symbol, decimals)
	if err != nil {
		return common.Hash{}, err
	}

	assignment, err := witness.TransferAssignment(plan.Inputs, e.identity.SpendingKey, recipientNote, changeNote, plan.Fee.ToBig(), e.cfg.Tree)
	if err != nil {
		return common.Hash{}, err
	}
	proof, err := e.cfg.Manager.Prove(witness.CircuitTransfer, assignment)
	if err != nil {
		return common.Hash{}, err
	}

	recipientMemo, err := e.sealMemo(recipientEncPub, recipientNote)
	if err != nil {
		return common.Hash{}, err
	}
	changeMemo, err := e.sealMemo(e.identity.EncryptionPublicKey, changeNote)
	if err != nil {
		return common.Hash{}, err
	}

	if err := e.markInputsSpent(plan.Inputs); err != nil {
		return common.Hash{}, err
	}
	if err := e.store.AddPending(changeNote); err != nil {
		return common.Hash{}, err
	}

	result, err := e.cfg.Relayer.Transfer(ctx, adapters.TransferRequest{
		PoolAddress:       e.cfg.PoolAddress.Hex(),
		Proof:             hexEncode(proof.ProofBytes),
		Root:              hexEncodeFr(e.cfg.Tree.Root()),
		NullifierHash:     hexEncodeFr(nullifierOf(plan.Inputs[0], e.identity.SpendingKey)),
		OutputCommitment1: hexEncodeFr(recipientNote.Commitment),
		OutputCommitment2: hexEncodeFr(changeNote.Commitment),
		EncryptedMemo1:    hexEncode(recipientMemo),
		EncryptedMemo2:    hexEncode(changeMemo),
		Fee:               plan.Fee.String(),
	})
	if err != nil {
		return common.Hash{}, err
	}

	e.cfg.Notifier.OnStateChanged()
	return common.HexToHash(result.TxHash), nil
}

// Unshield withdraws amount of a token to a public EVM address, routed
// through the relayer so the withdrawal transaction's sender is never
// the wallet's own on-chain identity.
func (e *Engine) Unshield(ctx context.Context, tokenKey string, recipient common.Address, amount *uint256.Int) (common.Hash, error) {
	fees, err := e.cfg.Relayer.Info(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	candidates := e.store.NotesForToken(tokenKey)
	plan, err := planner.Plan(candidates, amount, fees)
	if err != nil {
		return common.Hash{}, err
	}
	return e.submitUnshield(ctx, plan, recipient)
}

// Consolidate sweeps every eligible (spendable, non-dust) note of tokenKey
// to recipient via the one-note-per-transaction unshield sequence spec.md
// §4.7's Plan::Consolidate names — used when no single or two-note plan
// covers a request but the notes' combined value, net of each note's own
// fee, does (spec.md §8 scenario 3). Each batch planner.Consolidate
// returns is a single note, so every call here nets amount-fee(amount) to
// recipient with zero change.
func (e *Engine) Consolidate(ctx context.Context, tokenKey string, recipient common.Address) ([]common.Hash, error) {
	fees, err := e.cfg.Relayer.Info(ctx)
	if err != nil {
		return nil, err
	}
	batches := planner.Consolidate(e.store.NotesForToken(tokenKey), fees)

	hashes := make([]common.Hash, 0, len(batches))
	for _, batch := range batches {
		n := batch[0]
		fee := fees.Fee(n.Amount)
		plan := &planner.Plan{
			Inputs:       batch,
			SendAmount:   new(uint256.Int).Sub(n.Amount, fee),
			Fee:          fee,
			ChangeAmount: uint256.NewInt(0),
		}
		txHash, err := e.submitUnshield(ctx, plan, recipient)
		if err != nil {
			return hashes, err
		}
		hashes = append(hashes, txHash)
	}
	return hashes, nil
}

// submitUnshield builds, proves and relays a withdrawal for an
// already-selected plan — shared by Unshield's single request and
// Consolidate's per-note sweep.
func (e *Engine) submitUnshield(ctx context.Context, plan *planner.Plan, recipient common.Address) (common.Hash, error) {
	token := plan.Inputs[0].TokenAddress
	symbol := plan.Inputs[0].TokenSymbol
	decimals := plan.Inputs[0].TokenDecimals

	changeNote, err := e.selfChangeNote(plan.ChangeAmount, token, symbol, decimals)
	if err != nil {
		return common.Hash{}, err
	}

	assignment, err := witness.UnshieldAssignment(plan.Inputs, e.identity.SpendingKey, plan.SendAmount.ToBig(), recipient, changeNote, plan.Fee.ToBig(), e.cfg.Tree)
	if err != nil {
		return common.Hash{}, err
	}
	proof, err := e.cfg.Manager.Prove(witness.CircuitUnshield, assignment)
	if err != nil {
		return common.Hash{}, err
	}

	if err := e.markInputsSpent(plan.Inputs); err != nil {
		return common.Hash{}, err
	}
	if err := e.store.AddPending(changeNote); err != nil {
		return common.Hash{}, err
	}

	result, err := e.cfg.Relayer.Unshield(ctx, adapters.UnshieldRequest{
		PoolAddress:   e.cfg.PoolAddress.Hex(),
		Proof:         hexEncode(proof.ProofBytes),
		Root:          hexEncodeFr(e.cfg.Tree.Root()),
		NullifierHash: hexEncodeFr(nullifierOf(plan.Inputs[0], e.identity.SpendingKey)),
		Recipient:     recipient.Hex(),
		Amount:        plan.SendAmount.String(),
		Fee:           plan.Fee.String(),
		Token:         token.Hex(),
	})
	if err != nil {
		return common.Hash{}, err
	}

	e.cfg.Notifier.OnStateChanged()
	return common.HexToHash(result.TxHash), nil
}

// Swap spends amountIn of tokenIn for at least minOut of tokenOut,
// submitting its own proof directly (spec.md §4.6's swap row has no
// relayer hop: the pool contract performs the exchange itself).
func (e *Engine) Swap(ctx context.Context, tokenInKey string, tokenIn, tokenOut common.Address, amountIn, minOut *uint256.Int) (common.Hash, error) {
	flat := flatFee{}
	candidates := e.store.NotesForToken(tokenInKey)
	plan, err := planner.Plan(candidates, amountIn, flat)
	if err != nil {
		return common.Hash{}, err
	}

	symbol := plan.Inputs[0].TokenSymbol
	decimals := plan.Inputs[0].TokenDecimals

	outBlinding, err := field.Random()
	if err != nil {
		return common.Hash{}, err
	}
	outNote := note.New(e.identity.AddressPubkey, minOut, tokenOut, "", 0, outBlinding)

	changeNote, err := e.selfChangeNote(plan.ChangeAmount, tokenIn, symbol, decimals)
	if err != nil {
		return common.Hash{}, err
	}

	assignment, err := witness.SwapAssignment(plan.Inputs, e.identity.SpendingKey, outNote, changeNote, tokenIn, tokenOut, amountIn.ToBig(), minOut.ToBig(), plan.Fee.ToBig(), e.cfg.Tree)
	if err != nil {
		return common.Hash{}, err
	}
	proof, err := e.cfg.Manager.Prove(witness.CircuitSwap, assignment)
	if err != nil {
		return common.Hash{}, err
	}

	if err := e.markInputsSpent(plan.Inputs); err != nil {
		return common.Hash{}, err
	}
	if err := e.store.AddPending(outNote); err != nil {
		return common.Hash{}, err
	}
	if err := e.store.AddPending(changeNote); err != nil {
		return common.Hash{}, err
	}

	calldata, err := adapters.EncodeSwap(
		proof.ProofBytes,
		e.cfg.Tree.Root().Bytes(),
		nullifierOf(plan.Inputs[0], e.identity.SpendingKey).Bytes(),
		tokenIn, tokenOut,
		amountIn.ToBig(), minOut.ToBig(),
		outNote.Commitment.Bytes(), changeNote.Commitment.Bytes(),
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("shielded: encoding swap call: %w", err)
	}

	txHash, err := e.sendTx(ctx, big.NewInt(0), calldata)
	if err != nil {
		return common.Hash{}, err
	}

	e.cfg.Notifier.OnStateChanged()
	return txHash, nil
}

// flatFee is the zero-fee schedule used for swap planning — swap fees
// are a pool-side exchange spread, not a relayer cut (spec.md §4.6).
type flatFee struct{}

func (flatFee) Fee(*uint256.Int) *uint256.Int { return uint256.NewInt(0) }

func (e *Engine) markInputsSpent(inputs []*types.Note) error {
	for _, in := range inputs {
		if err := e.store.MarkSpent(in.Commitment, nullifierOf(in, e.identity.SpendingKey)); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) selfChangeNote(amount *uint256.Int, token common.Address, symbol string, decimals uint8) (*types.Note, error) {
	blinding, err := field.Random()
	if err != nil {
		return nil, err
	}
	return note.New(e.identity.AddressPubkey, amount, token, symbol, decimals, blinding), nil
}

func (e *Engine) sealMemo(recipientEncPub [32]byte, n *types.Note) ([]byte, error) {
	ownerBytes := n.OwnerPubkey.Bytes()
	blindingBytes := n.Blinding.Bytes()
	payload := &memo.Payload{
		Amount:        n.Amount.Hex(),
		TokenAddress:  n.TokenAddress.Hex(),
		TokenSymbol:   n.TokenSymbol,
		TokenDecimals: n.TokenDecimals,
		OwnerPubkey:   fmt.Sprintf("0x%x", ownerBytes),
		Blinding:      fmt.Sprintf("0x%x", blindingBytes),
	}
	return memo.EncryptTo(recipientEncPub, payload)
}

func (e *Engine) sendTx(ctx context.Context, value *big.Int, calldata []byte) (common.Hash, error) {
	params, err := e.cfg.NextTxParams(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("shielded: resolving transaction params: %w", err)
	}
	to := e.cfg.PoolAddress
	tx := ethtypes.NewTx(&ethtypes.DynamicFeeTx{
		ChainID:   params.ChainID,
		Nonce:     params.Nonce,
		GasTipCap: params.GasTipCap,
		GasFeeCap: params.GasFeeCap,
		Gas:       params.Gas,
		To:        &to,
		Value:     value,
		Data:      calldata,
	})
	return e.cfg.Wallet.SendTransaction(ctx, tx)
}

// handleEvents is the discovery loop's notify callback: it reconciles a
// batch of pool log events against the local Merkle replica and Note
// Store, trial-decrypting memos for commitments that don't already
// belong to a pending note of ours.
func (e *Engine) handleEvents(events []discovery.Event) {
	for _, ev := range events {
		switch ev.Kind {
		case discovery.EventShield, discovery.EventTransfer, discovery.EventUnshield:
			e.reconcileCommitment(ev)
		}
		if ev.Nullifier != nil {
			e.reconcileNullifier(*ev.Nullifier)
		}
	}
	e.cfg.Notifier.OnStateChanged()
}

func (e *Engine) reconcileCommitment(ev discovery.Event) {
	// The local replica only advances in lockstep with the chain's own
	// leaf ordering (spec.md §4.4); an out-of-order or re-delivered
	// event is left for a full resync rather than corrupting the root.
	if ev.LeafIndex == e.cfg.Tree.Size() {
		e.cfg.Tree.Insert(ev.Commitment)
	}
	root := e.cfg.Tree.Root()

	if e.store.Has(ev.Commitment) {
		e.store.Confirm(ev.Commitment, ev.LeafIndex, root)
		return
	}

	if len(ev.Memo) == 0 {
		return
	}
	payload, err := memo.TryDecrypt(e.identity.EncryptionPrivateKey, ev.Memo)
	if err != nil || payload == nil {
		return
	}
	owner, err := memo.OwnerPubkeyField(payload)
	if err != nil || !field.Equal(owner, e.identity.AddressPubkey) {
		return
	}
	n, err := noteFromMemoPayload(payload)
	if err != nil {
		return
	}
	if !field.Equal(n.Commitment, ev.Commitment) {
		return
	}
	if err := e.store.AddPending(n); err != nil {
		return
	}
	if err := e.store.Confirm(n.Commitment, ev.LeafIndex, root); err != nil {
		return
	}
	e.cfg.Notifier.OnNoteDiscovered(n)
}

// reconcileNullifier marks our own note spent the moment its nullifier
// is revealed on-chain by anyone. Inputs of this engine's own spends are
// already archived by markInputsSpent before submission, so they are not
// found here.
func (e *Engine) reconcileNullifier(nullifier fr.Element) {
	for _, n := range e.store.AllNotes() {
		if n.LeafIndex == nil {
			continue
		}
		if field.Equal(field.Nullify(n.Commitment, *n.LeafIndex, e.identity.SpendingKey), nullifier) {
			e.store.MarkSpent(n.Commitment, nullifier)
			return
		}
	}
}

func noteFromMemoPayload(p *memo.Payload) (*types.Note, error) {
	amount, err := uint256.FromHex(p.Amount)
	if err != nil {
		return nil, err
	}
	owner, err := memo.OwnerPubkeyField(p)
	if err != nil {
		return nil, err
	}
	blinding, err := hexToFr(p.Blinding)
	if err != nil {
		return nil, err
	}
	return note.New(owner, amount, common.HexToAddress(p.TokenAddress), p.TokenSymbol, p.TokenDecimals, blinding), nil
}

func hexToFr(s string) (fr.Element, error) {
	var out fr.Element
	b, err := hexDecode(s)
	if err != nil {
		return out, err
	}
	out.SetBytes(b)
	return out, nil
}

func nullifierOf(n *types.Note, spendingKey fr.Element) fr.Element {
	return field.Nullify(n.Commitment, *n.LeafIndex, spendingKey)
}

func hexEncodeFr(x fr.Element) string {
	b := x.Bytes()
	return hexEncode(b[:])
}

func hexEncode(b []byte) string {
	return fmt.Sprintf("0x%x", b)
}

func hexDecode(s string) ([]byte, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	return hex.DecodeString(s)
}
