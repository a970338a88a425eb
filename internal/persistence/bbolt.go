package persistence

import (
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/notfartdev/zdoge-shielded-core/internal/store"
	"github.com/notfartdev/zdoge-shielded-core/pkg/types"
)

var bucketName = []byte("zdoge_wallet_state")

// BoltStore is the default local Persistence backend: a single bbolt file
// holding one encrypted blob per wallet address (spec.md §6, §4.5a).
type BoltStore struct {
	db            *bolt.DB
	walletAddress string
	key           [32]byte
}

// OpenBoltStore opens (creating if necessary) a bbolt database at path
// and binds it to one wallet address and encryption key.
func OpenBoltStore(path string, walletAddress string, key [32]byte) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, types.NewOpError("persistence.OpenBoltStore", types.KindPersistence, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, types.NewOpError("persistence.OpenBoltStore", types.KindPersistence, err)
	}
	return &BoltStore{db: db, walletAddress: walletAddress, key: key}, nil
}

func (b *BoltStore) Close() error { return b.db.Close() }

// Load implements store.Persistence. A missing key is not an error: it
// means this wallet has never been saved before.
func (b *BoltStore) Load() (*store.Snapshot, error) {
	var sealed []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		v := bucket.Get([]byte(b.walletAddress))
		if v != nil {
			sealed = append(sealed, v...)
		}
		return nil
	})
	if err != nil {
		return nil, types.NewOpError("persistence.Load", types.KindPersistence, err)
	}
	if sealed == nil {
		return nil, nil
	}

	plaintext, err := Open(b.key, sealed)
	if err != nil {
		return nil, fmt.Errorf("persistence: %w: decrypting snapshot: %s", types.ErrCryptoInvariant, err)
	}
	return unmarshalSnapshot(plaintext)
}

// Save implements store.Persistence.
func (b *BoltStore) Save(snap *store.Snapshot) error {
	plaintext, err := marshalSnapshot(snap)
	if err != nil {
		return types.NewOpError("persistence.Save", types.KindPersistence, err)
	}
	sealed, err := Seal(b.key, plaintext)
	if err != nil {
		return types.NewOpError("persistence.Save", types.KindPersistence, err)
	}

	err = b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		return bucket.Put([]byte(b.walletAddress), sealed)
	})
	if err != nil {
		return types.NewOpError("persistence.Save", types.KindPersistence, err)
	}
	return nil
}
