// Package storage is the demo BlockStore: a BadgerDB-backed persistence
// layer for committed blocks and transactions, fronted by a bounded LRU
// cache, adapted from the teacher's storage/db.go and generalized from a
// single-key/value blockchain store to this module's Block/StakeLedger
// shape.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"

	"github.com/dgraph-io/badger/v3"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/concordbft/concord/types"
)

// ErrNotFound is returned when a requested block, transaction or genesis
// record does not exist in the store.
var ErrNotFound = errors.New("storage: not found")

const latestHeightKey = "latest_height"

// BlockStore persists committed blocks keyed by both height and content
// hash, plus the individual transactions they carry, in BadgerDB. A
// bounded LRU cache sits in front of the height-keyed lookup path to
// avoid a disk read on every GetBlock during normal-path replay.
type BlockStore struct {
	db     *badger.DB
	cache  *lru.Cache[uint64, *types.Block]
	logger *zap.Logger
}

// Open opens or creates a BadgerDB store at path with an LRU cache of
// cacheSize recently-committed blocks in front of it.
func Open(path string, cacheSize int, logger *zap.Logger) (*BlockStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Badger's own logger is noisy; we log at the call sites instead.

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	cache, err := lru.New[uint64, *types.Block](cacheSize)
	if err != nil {
		db.Close()
		return nil, err
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlockStore{db: db, cache: cache, logger: logger}, nil
}

// Close closes the underlying database.
func (s *BlockStore) Close() error {
	return s.db.Close()
}

// SaveBlock persists block by height and by hash, records every embedded
// transaction individually, advances the latest-height marker, and
// refreshes the cache entry.
func (s *BlockStore) SaveBlock(block *types.Block) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		data, err := json.Marshal(block)
		if err != nil {
			return err
		}

		if err := txn.Set(makeBlockKey(block.Header.Height), data); err != nil {
			return err
		}
		if err := txn.Set(makeBlockHashKey(block.ID()), data); err != nil {
			return err
		}
		for i := range block.Transactions {
			tx := &block.Transactions[i]
			txData, err := json.Marshal(tx)
			if err != nil {
				return err
			}
			if err := txn.Set(makeTxKey(tx.Hash()), txData); err != nil {
				return err
			}
		}
		return txn.Set([]byte(latestHeightKey), encodeUint64(block.Header.Height))
	})
	if err != nil {
		return err
	}

	s.cache.Add(block.Header.Height, block)
	s.logger.Debug("persisted block", zap.Uint64("height", block.Header.Height), zap.String("id", block.ID().String()))
	return nil
}

// GetBlock retrieves a block by height, consulting the cache first.
func (s *BlockStore) GetBlock(height uint64) (*types.Block, error) {
	if block, ok := s.cache.Get(height); ok {
		return block, nil
	}

	block, err := s.lookup(makeBlockKey(height))
	if err != nil {
		return nil, err
	}
	s.cache.Add(height, block)
	return block, nil
}

// GetBlockByHash retrieves a block by its content hash, bypassing the
// height-keyed cache.
func (s *BlockStore) GetBlockByHash(hash types.Hash) (*types.Block, error) {
	return s.lookup(makeBlockHashKey(hash))
}

func (s *BlockStore) lookup(key []byte) (*types.Block, error) {
	var block types.Block
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &block)
		})
	})
	if err != nil {
		return nil, err
	}
	return &block, nil
}

// GetLatestHeight returns the height of the most recently saved block, or
// 0 if the store is empty.
func (s *BlockStore) GetLatestHeight() (uint64, error) {
	var height uint64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(latestHeightKey))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			height = decodeUint64(val)
			return nil
		})
	})
	return height, err
}

// GetLatestBlock retrieves the block at GetLatestHeight.
func (s *BlockStore) GetLatestBlock() (*types.Block, error) {
	height, err := s.GetLatestHeight()
	if err != nil {
		return nil, err
	}
	return s.GetBlock(height)
}

// GetTransaction retrieves a transaction by its content hash.
func (s *BlockStore) GetTransaction(hash types.Hash) (*types.Transaction, error) {
	var tx types.Transaction
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(makeTxKey(hash))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return tx.UnmarshalJSON(val)
		})
	})
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func makeBlockKey(height uint64) []byte {
	key := make([]byte, 9)
	key[0] = 'b'
	binary.BigEndian.PutUint64(key[1:], height)
	return key
}

func makeBlockHashKey(hash types.Hash) []byte {
	key := make([]byte, 33)
	key[0] = 'h'
	copy(key[1:], hash[:])
	return key
}

func makeTxKey(hash types.Hash) []byte {
	key := make([]byte, 33)
	key[0] = 't'
	copy(key[1:], hash[:])
	return key
}

func encodeUint64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func decodeUint64(buf []byte) uint64 {
	if len(buf) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(buf)
}
