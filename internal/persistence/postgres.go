package persistence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notfartdev/zdoge-shielded-core/internal/store"
	"github.com/notfartdev/zdoge-shielded-core/pkg/types"
)

// PostgresConfig mirrors the teacher's internal/storage/postgres.go
// Config shape, narrowed to what a client-side optional remote backend
// needs (no block-height or consensus fields).
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
}

// DefaultPostgresConfig mirrors the teacher's DefaultConfig, repointed at
// a wallet-state database instead of a node database.
func DefaultPostgresConfig() *PostgresConfig {
	return &PostgresConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "zdoge",
		Password: "",
		Database: "zdoge_wallet",
		SSLMode:  "disable",
		MaxConns: 10,
	}
}

// PostgresStore is the optional remote Persistence backend (spec.md §9
// Supplemented Features): a multi-device wallet can share state across
// installs by pointing every client at the same database instead of a
// per-device bbolt file. One row per wallet address, one encrypted blob
// per row — schema and split mirror BoltStore exactly.
type PostgresStore struct {
	pool          *pgxpool.Pool
	walletAddress string
	key           [32]byte
}

// OpenPostgresStore connects to cfg and ensures the wallet_state table
// exists.
func OpenPostgresStore(ctx context.Context, cfg *PostgresConfig, walletAddress string, key [32]byte) (*PostgresStore, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode, cfg.MaxConns,
	)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, types.NewOpError("persistence.OpenPostgresStore", types.KindPersistence, err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, types.NewOpError("persistence.OpenPostgresStore", types.KindPersistence, err)
	}

	const schema = `CREATE TABLE IF NOT EXISTS wallet_state (
		wallet_address TEXT PRIMARY KEY,
		sealed_snapshot BYTEA NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, types.NewOpError("persistence.OpenPostgresStore", types.KindPersistence, err)
	}

	return &PostgresStore{pool: pool, walletAddress: walletAddress, key: key}, nil
}

func (p *PostgresStore) Close() { p.pool.Close() }

// Load implements store.Persistence.
func (p *PostgresStore) Load() (*store.Snapshot, error) {
	ctx := context.Background()
	var sealed []byte
	err := p.pool.QueryRow(ctx, `SELECT sealed_snapshot FROM wallet_state WHERE wallet_address = $1`, p.walletAddress).Scan(&sealed)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, types.NewOpError("persistence.Load", types.KindPersistence, err)
	}

	plaintext, err := Open(p.key, sealed)
	if err != nil {
		return nil, fmt.Errorf("persistence: %w: decrypting snapshot: %s", types.ErrCryptoInvariant, err)
	}
	return unmarshalSnapshot(plaintext)
}

// Save implements store.Persistence.
func (p *PostgresStore) Save(snap *store.Snapshot) error {
	plaintext, err := marshalSnapshot(snap)
	if err != nil {
		return types.NewOpError("persistence.Save", types.KindPersistence, err)
	}
	sealed, err := Seal(p.key, plaintext)
	if err != nil {
		return types.NewOpError("persistence.Save", types.KindPersistence, err)
	}

	ctx := context.Background()
	const upsert = `INSERT INTO wallet_state (wallet_address, sealed_snapshot, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (wallet_address) DO UPDATE SET sealed_snapshot = $2, updated_at = now()`
	if _, err := p.pool.Exec(ctx, upsert, p.walletAddress, sealed); err != nil {
		return types.NewOpError("persistence.Save", types.KindPersistence, err)
	}
	return nil
}
