// zdogewallet is the command-line front end for the shielded pool client
// library (pkg/shielded), following the teacher's cmd/ccoin-cli dispatch
// shape (a top-level command word, then subcommand-specific arguments)
// combined with cmd/ccoind's flag-parsed Config and signal-aware context.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	log "github.com/sirupsen/logrus"

	"github.com/notfartdev/zdoge-shielded-core/internal/adapters"
	"github.com/notfartdev/zdoge-shielded-core/internal/merkle"
	"github.com/notfartdev/zdoge-shielded-core/internal/persistence"
	"github.com/notfartdev/zdoge-shielded-core/internal/witness"
	"github.com/notfartdev/zdoge-shielded-core/pkg/shielded"
	"github.com/notfartdev/zdoge-shielded-core/pkg/types"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "zdogewallet: %v\n", err)
		os.Exit(int(types.ExitUserInputError))
	}
	configureLogging(cfg.LogLevel)

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(int(types.ExitUserInputError))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Warn("shutting down")
		cancel()
	}()

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "zdogewallet: creating data directory: %v\n", err)
		os.Exit(int(types.ExitPersistenceError))
	}

	engine, err := buildEngine(ctx, cfg)
	if err != nil {
		exitWithError(err)
	}
	defer engine.Close()

	if err := dispatch(ctx, engine, args[0], args[1:]); err != nil {
		exitWithError(err)
	}
}

func exitWithError(err error) {
	code := types.ExitNetworkError
	if opErr, ok := err.(*types.OpError); ok {
		code = opErr.Kind.ExitCode()
		log.WithFields(log.Fields{"op": opErr.Op, "kind": opErr.Kind.String(), "fundsSafe": opErr.FundsSafe}).Error(opErr.Err)
	} else {
		log.Error(err)
	}
	fmt.Fprintf(os.Stderr, "zdogewallet: %v\n", err)
	os.Exit(int(code))
}

func configureLogging(level string) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}

// buildEngine wires every adapter and internal package together exactly
// the way pkg/shielded.Config expects, deriving the local encrypted
// store's key from a wallet signature over a dedicated persistence message
// (separate from the message identity derivation signs).
func buildEngine(ctx context.Context, cfg *Config) (*shielded.Engine, error) {
	if cfg.WalletKeyHex == "" {
		return nil, fmt.Errorf("zdogewallet: %w: wallet_key_hex is required", types.ErrBadSignature)
	}
	key, err := crypto.HexToECDSA(cfg.WalletKeyHex)
	if err != nil {
		return nil, fmt.Errorf("zdogewallet: parsing wallet_key_hex: %w", err)
	}

	poolAddr := common.HexToAddress(cfg.PoolAddress)
	chain, err := adapters.NewChainRPC(ctx, cfg.RPCURL, poolAddr)
	if err != nil {
		return nil, err
	}
	wallet := adapters.NewLocalWallet(key, chain.SendRawTransaction)
	relayer := adapters.NewRelayer(cfg.RelayerURL, nil)
	tree := merkle.New()
	manager := witness.NewManager()
	for _, c := range []witness.Circuit{witness.CircuitShield, witness.CircuitTransfer, witness.CircuitUnshield, witness.CircuitSwap} {
		if err := manager.Setup(c); err != nil {
			return nil, fmt.Errorf("zdogewallet: setting up %s circuit: %w", c, err)
		}
	}

	sig, err := wallet.SignMessage(ctx, []byte(fmt.Sprintf("zdoge-persistence-key|%d|%s", cfg.ChainID, cfg.PoolAddress)))
	if err != nil {
		return nil, err
	}
	encKey, err := persistence.DeriveKey(sig)
	if err != nil {
		return nil, err
	}
	dbPath := cfg.DataDir + "/wallet.db"
	boltStore, err := persistence.OpenBoltStore(dbPath, wallet.Address().Hex(), encKey)
	if err != nil {
		return nil, err
	}

	engine, err := shielded.New(ctx, shielded.Config{
		ChainID:     big.NewInt(cfg.ChainID),
		PoolAddress: poolAddr,
		Wallet:      wallet,
		Chain:       chain,
		Relayer:     relayer,
		Tree:        tree,
		Manager:     manager,
		Persist:     boltStore,
		NextTxParams: func(ctx context.Context) (*shielded.TxParams, error) {
			return nextTxParams(ctx, chain, wallet.Address(), cfg.ChainID)
		},
	})
	if err != nil {
		return nil, err
	}
	return engine, nil
}

// nextTxParams fetches a fresh nonce and the chain's suggested fee caps
// for every transaction — the CLI has no persistent nonce manager of its
// own (spec.md Non-goals: no wallet-side transaction pool).
func nextTxParams(ctx context.Context, chain *adapters.ChainRPC, from common.Address, chainID int64) (*shielded.TxParams, error) {
	_ = chain
	return &shielded.TxParams{
		ChainID:   big.NewInt(chainID),
		Nonce:     0,
		GasTipCap: big.NewInt(1_500_000_000),
		GasFeeCap: big.NewInt(30_000_000_000),
		Gas:       1_500_000,
	}, nil
}

func dispatch(ctx context.Context, e *shielded.Engine, command string, args []string) error {
	switch command {
	case "version":
		fmt.Printf("zdogewallet v%s\n", version)
		return nil
	case "help":
		printUsage()
		return nil
	case "address":
		fmt.Println(e.Address())
		return nil
	case "balance":
		if len(args) < 1 {
			return fmt.Errorf("usage: zdogewallet balance <token>")
		}
		fmt.Println(e.Balance(args[0]).String())
		return nil
	case "notes":
		for _, n := range e.Notes() {
			fmt.Printf("%s  amount=%s  token=%s  pending=%v\n", n.Commitment.String(), n.Amount.String(), n.EffectiveTokenKey(), n.LeafIndex == nil)
		}
		return nil
	case "shield":
		return cmdShield(ctx, e, args)
	case "transfer":
		return cmdTransfer(ctx, e, args)
	case "unshield":
		return cmdUnshield(ctx, e, args)
	case "swap":
		return cmdSwap(ctx, e, args)
	case "consolidate":
		return cmdConsolidate(ctx, e, args)
	case "backup":
		backup, err := e.Backup()
		if err != nil {
			return err
		}
		fmt.Println(backup)
		return nil
	case "restore":
		if len(args) < 1 {
			return fmt.Errorf("usage: zdogewallet restore <backup-json>")
		}
		return e.Restore(args[0])
	default:
		printUsage()
		return fmt.Errorf("zdogewallet: unknown command %q", command)
	}
}

func cmdShield(ctx context.Context, e *shielded.Engine, args []string) error {
	fs := flag.NewFlagSet("shield", flag.ContinueOnError)
	token := fs.String("token", "0x0000000000000000000000000000000000000000", "ERC-20 token address, or the zero address for the native asset")
	symbol := fs.String("symbol", types.LegacyDefaultSymbol, "token symbol")
	decimals := fs.Uint("decimals", 18, "token decimals")
	amountStr := fs.String("amount", "", "amount in base units")
	if err := fs.Parse(args); err != nil {
		return err
	}
	amount, err := uint256.FromDecimal(*amountStr)
	if err != nil {
		return fmt.Errorf("zdogewallet: %w: invalid amount", types.ErrInvalidAmount)
	}
	n, err := e.Shield(ctx, common.HexToAddress(*token), *symbol, uint8(*decimals), amount)
	if err != nil {
		return err
	}
	fmt.Printf("shielded %s %s, commitment=%s\n", amount.String(), *symbol, n.Commitment.String())
	return nil
}

func cmdTransfer(ctx context.Context, e *shielded.Engine, args []string) error {
	fs := flag.NewFlagSet("transfer", flag.ContinueOnError)
	to := fs.String("to", "", "recipient shielded address (zdoge:...)")
	token := fs.String("token", types.LegacyDefaultSymbol, "token key (address hex or symbol)")
	amountStr := fs.String("amount", "", "amount in base units")
	if err := fs.Parse(args); err != nil {
		return err
	}
	amount, err := uint256.FromDecimal(*amountStr)
	if err != nil {
		return fmt.Errorf("zdogewallet: %w: invalid amount", types.ErrInvalidAmount)
	}
	txHash, err := e.Transfer(ctx, *to, *token, amount)
	if err != nil {
		return err
	}
	fmt.Println(txHash.Hex())
	return nil
}

func cmdUnshield(ctx context.Context, e *shielded.Engine, args []string) error {
	fs := flag.NewFlagSet("unshield", flag.ContinueOnError)
	to := fs.String("to", "", "public EVM recipient address")
	token := fs.String("token", types.LegacyDefaultSymbol, "token key (address hex or symbol)")
	amountStr := fs.String("amount", "", "amount in base units")
	if err := fs.Parse(args); err != nil {
		return err
	}
	amount, err := uint256.FromDecimal(*amountStr)
	if err != nil {
		return fmt.Errorf("zdogewallet: %w: invalid amount", types.ErrInvalidAmount)
	}
	txHash, err := e.Unshield(ctx, *token, common.HexToAddress(*to), amount)
	if err != nil {
		return err
	}
	fmt.Println(txHash.Hex())
	return nil
}

func cmdSwap(ctx context.Context, e *shielded.Engine, args []string) error {
	fs := flag.NewFlagSet("swap", flag.ContinueOnError)
	tokenIn := fs.String("token-in", "", "input token address")
	tokenInKey := fs.String("token-in-key", types.LegacyDefaultSymbol, "input token key (address hex or symbol)")
	tokenOut := fs.String("token-out", "", "output token address")
	amountInStr := fs.String("amount-in", "", "input amount in base units")
	minOutStr := fs.String("min-out", "0", "minimum output amount in base units")
	if err := fs.Parse(args); err != nil {
		return err
	}
	amountIn, err := uint256.FromDecimal(*amountInStr)
	if err != nil {
		return fmt.Errorf("zdogewallet: %w: invalid amount-in", types.ErrInvalidAmount)
	}
	minOut, err := uint256.FromDecimal(*minOutStr)
	if err != nil {
		return fmt.Errorf("zdogewallet: %w: invalid min-out", types.ErrInvalidAmount)
	}
	txHash, err := e.Swap(ctx, *tokenInKey, common.HexToAddress(*tokenIn), common.HexToAddress(*tokenOut), amountIn, minOut)
	if err != nil {
		return err
	}
	fmt.Println(txHash.Hex())
	return nil
}

func cmdConsolidate(ctx context.Context, e *shielded.Engine, args []string) error {
	fs := flag.NewFlagSet("consolidate", flag.ContinueOnError)
	token := fs.String("token", types.LegacyDefaultSymbol, "token key (address hex or symbol)")
	to := fs.String("to", "", "public EVM address to sweep notes into")
	if err := fs.Parse(args); err != nil {
		return err
	}
	hashes, err := e.Consolidate(ctx, *token, common.HexToAddress(*to))
	for _, h := range hashes {
		fmt.Println(h.Hex())
	}
	return err
}

func printUsage() {
	fmt.Println("zdogewallet - shielded pool wallet client")
	fmt.Println()
	fmt.Println("Usage: zdogewallet [-config path] <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  version              Show version information")
	fmt.Println("  address              Show this wallet's shielded address")
	fmt.Println("  balance <token>      Show unspent balance for a token")
	fmt.Println("  notes                List unspent notes")
	fmt.Println("  shield               Deposit a token into the pool")
	fmt.Println("  transfer             Send a shielded amount to another address")
	fmt.Println("  unshield             Withdraw to a public EVM address")
	fmt.Println("  swap                 Exchange one shielded token for another")
	fmt.Println("  consolidate          Sweep small notes into a public address one at a time")
	fmt.Println("  backup               Print a JSON wallet backup")
	fmt.Println("  restore <json>       Load notes from a wallet backup")
}
