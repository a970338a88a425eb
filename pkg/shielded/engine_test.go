package shielded

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/notfartdev/zdoge-shielded-core/internal/store"
)

// fakeWallet signs with a fixed, deterministic signature so identity
// derivation is reproducible across test runs.
type fakeWallet struct {
	addr common.Address
}

func (w fakeWallet) Address() common.Address { return w.addr }
func (w fakeWallet) SignMessage(ctx context.Context, message []byte) ([]byte, error) {
	sig := make([]byte, 65)
	copy(sig, message)
	return sig, nil
}
func (w fakeWallet) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) (common.Hash, error) {
	return tx.Hash(), nil
}

type memPersist struct {
	snap *store.Snapshot
}

func (m *memPersist) Load() (*store.Snapshot, error) { return m.snap, nil }
func (m *memPersist) Save(s *store.Snapshot) error   { m.snap = s; return nil }

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(context.Background(), Config{
		ChainID:     big.NewInt(1337),
		PoolAddress: common.HexToAddress("0x00000000000000000000000000000000000001"),
		Wallet:      fakeWallet{addr: common.HexToAddress("0x00000000000000000000000000000000000002")},
		Persist:     &memPersist{},
		NextTxParams: func(ctx context.Context) (*TxParams, error) {
			return &TxParams{ChainID: big.NewInt(1337), Gas: 500000, GasFeeCap: big.NewInt(1), GasTipCap: big.NewInt(1)}, nil
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestNewDerivesStableIdentity(t *testing.T) {
	e1 := newTestEngine(t)
	e2 := newTestEngine(t)
	if e1.Address() != e2.Address() {
		t.Fatalf("identity derivation is not deterministic: %s vs %s", e1.Address(), e2.Address())
	}
}

func TestBackupRestoreRoundTrip(t *testing.T) {
	e := newTestEngine(t)

	backup, err := e.Backup()
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}

	fresh := newTestEngine(t)
	if err := fresh.Restore(backup); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if len(fresh.Notes()) != len(e.Notes()) {
		t.Fatalf("restored note count does not match backup")
	}
}

func TestBalanceEmptyWalletIsZero(t *testing.T) {
	e := newTestEngine(t)
	bal := e.Balance("DOGE")
	if !bal.IsZero() {
		t.Fatalf("expected zero balance for a fresh wallet, got %s", bal.String())
	}
}
