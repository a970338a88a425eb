package adapters

import (
	"context"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/notfartdev/zdoge-shielded-core/internal/discovery"
	"github.com/notfartdev/zdoge-shielded-core/internal/field"
	"github.com/notfartdev/zdoge-shielded-core/pkg/types"
)

// ChainRPC wraps go-ethereum's ethclient with a narrow surface: balances,
// logs, receipts and raw transaction broadcast. It has no method for
// read-only contract calls. Every
// call is retried by the caller, not here — this layer only classifies
// the error.
type ChainRPC struct {
	client *ethclient.Client
	pool   common.Address
}

// NewChainRPC dials rpcURL and binds to the pool contract address.
func NewChainRPC(ctx context.Context, rpcURL string, pool common.Address) (*ChainRPC, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, types.NewOpError("adapters.NewChainRPC", types.KindRelayerUnavailable, err)
	}
	return &ChainRPC{client: client, pool: pool}, nil
}

func (c *ChainRPC) GetBalance(ctx context.Context, addr common.Address) (*big.Int, error) {
	bal, err := c.client.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, types.NewOpError("adapters.GetBalance", types.KindRelayerUnavailable, err)
	}
	return bal, nil
}

// SendRawTransaction broadcasts a signed transaction, the call a Wallet's
// sender callback delegates to (see NewLocalWallet).
func (c *ChainRPC) SendRawTransaction(ctx context.Context, tx *ethtypes.Transaction) (common.Hash, error) {
	if err := c.client.SendTransaction(ctx, tx); err != nil {
		return common.Hash{}, types.NewOpError("adapters.SendRawTransaction", types.KindRelayerUnavailable, err)
	}
	return tx.Hash(), nil
}

func (c *ChainRPC) WaitForReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	receipt, err := waitMined(ctx, c.client, txHash)
	if err != nil {
		return nil, types.NewOpError("adapters.WaitForReceipt", types.KindRelayerUnavailable, err)
	}
	return receipt, nil
}

// waitMined polls for a receipt, the way go-ethereum's own bind.WaitMined
// does, without pulling in the full bind package.
func waitMined(ctx context.Context, client *ethclient.Client, txHash common.Hash) (*ethtypes.Receipt, error) {
	for {
		receipt, err := client.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if err != ethereum.NotFound {
			return nil, err
		}
	}
}

// GetLogs fetches pool event logs in [fromBlock, toBlock].
func (c *ChainRPC) GetLogs(ctx context.Context, fromBlock, toBlock uint64, topics [][]common.Hash) ([]ethtypes.Log, error) {
	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{c.pool},
		Topics:    topics,
	}
	logs, err := c.client.FilterLogs(ctx, q)
	if err != nil {
		return nil, types.NewOpError("adapters.GetLogs", types.KindRelayerUnavailable, err)
	}
	return logs, nil
}

// discoveryLogSource adapts ChainRPC to discovery.LogSource, tracking its
// own fromBlock cursor across polls.
type discoveryLogSource struct {
	rpc       *ChainRPC
	fromBlock uint64
	decode    func(ethtypes.Log) (discovery.Event, bool)
}

// NewDiscoveryLogSource builds a discovery.LogSource starting at
// startBlock. decode turns a raw log into a discovery.Event, returning
// false for logs that don't match a known event signature.
func NewDiscoveryLogSource(rpc *ChainRPC, startBlock uint64, decode func(ethtypes.Log) (discovery.Event, bool)) discovery.LogSource {
	return &discoveryLogSource{rpc: rpc, fromBlock: startBlock, decode: decode}
}

func (d *discoveryLogSource) PollEvents(ctx context.Context) ([]discovery.Event, error) {
	latest, err := d.rpc.client.BlockNumber(ctx)
	if err != nil {
		return nil, err
	}
	if latest < d.fromBlock {
		return nil, nil
	}
	logs, err := d.rpc.GetLogs(ctx, d.fromBlock, latest, nil)
	if err != nil {
		return nil, err
	}

	var events []discovery.Event
	for _, l := range logs {
		if ev, ok := d.decode(l); ok {
			events = append(events, ev)
		}
	}
	d.fromBlock = latest + 1
	return events, nil
}

// frFromHash lifts a 32-byte log topic into the scalar field, the form a
// commitment or nullifier is emitted in on-chain.
func frFromHash(h common.Hash) field.Fr {
	return field.FromBytes(h.Bytes())
}
