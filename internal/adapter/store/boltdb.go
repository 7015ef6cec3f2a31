package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"alsrag/internal/adapter/vector"
	"alsrag/internal/domain"
)

// ErrNotFound is returned when a chunk id does not exist.
var ErrNotFound = errors.New("not found")

var (
	bucketChunks    = []byte("chunks")
	bucketURLChunks = []byte("url_chunks")
	bucketMeta      = []byte("meta")
)

// BoltStore persists chunk records in bbolt and keeps every row in memory for
// brute-force cosine search.
//
// Layout:
//
//	chunks:     seq (uint64, big endian) -> JSON chunk
//	url_chunks: url 0x00 seq             -> empty
//	meta:       schema_version, config_hash
type BoltStore struct {
	db        *bbolt.DB
	dimension int

	mu   sync.RWMutex
	rows []row // insertion order
}

type row struct {
	seq   uint64
	chunk domain.Chunk
}

// NewBoltStore opens (creating if needed) the database at path. A positive
// dimension makes Insert reject embeddings of any other length.
func NewBoltStore(path string, dimension int) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketChunks, bucketURLChunks, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &BoltStore{db: db, dimension: dimension}
	if err := s.load(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}
	return s, nil
}

func (s *BoltStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rows = s.rows[:0]
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketChunks).ForEach(func(k, v []byte) error {
			var c domain.Chunk
			if err := json.Unmarshal(v, &c); err != nil {
				return fmt.Errorf("corrupt chunk %x: %w", k, err)
			}
			s.rows = append(s.rows, row{seq: binary.BigEndian.Uint64(k), chunk: c})
			return nil
		})
	})
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}

func urlPrefix(url string) []byte {
	return append([]byte(url), 0)
}

func urlKey(url string, seq uint64) []byte {
	return append(urlPrefix(url), seqKey(seq)...)
}

func (s *BoltStore) Insert(_ context.Context, chunk domain.Chunk) error {
	if s.dimension > 0 && len(chunk.Embedding) != s.dimension {
		return fmt.Errorf("embedding dimension mismatch: expected %d, got %d", s.dimension, len(chunk.Embedding))
	}
	if chunk.ID == "" {
		chunk.ID = uuid.NewString()
	}

	data, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("failed to marshal chunk: %w", err)
	}

	// Holding mu across the write keeps rows in the same order as the keys.
	s.mu.Lock()
	defer s.mu.Unlock()

	var seq uint64
	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketChunks)
		seq, err = b.NextSequence()
		if err != nil {
			return err
		}
		if err := b.Put(seqKey(seq), data); err != nil {
			return err
		}
		return tx.Bucket(bucketURLChunks).Put(urlKey(chunk.URL, seq), nil)
	})
	if err != nil {
		return fmt.Errorf("failed to insert chunk %s#%d: %w", chunk.URL, chunk.ChunkNumber, err)
	}

	s.rows = append(s.rows, row{seq: seq, chunk: chunk})
	return nil
}

func (s *BoltStore) SimilaritySearch(_ context.Context, embedding []float32, k int, filter domain.Filter) ([]domain.ScoredChunk, error) {
	if s.dimension > 0 && len(embedding) != s.dimension {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", s.dimension, len(embedding))
	}

	s.mu.RLock()
	chunks := make([]domain.Chunk, len(s.rows))
	for i, r := range s.rows {
		chunks[i] = r.chunk
	}
	s.mu.RUnlock()

	return vector.TopK(embedding, chunks, k, filter), nil
}

func (s *BoltStore) ListDistinctURLs(_ context.Context, filter domain.Filter) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, r := range s.rows {
		if filter.Matches(r.chunk) {
			seen[r.chunk.URL] = struct{}{}
		}
	}

	urls := make([]string, 0, len(seen))
	for u := range seen {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls, nil
}

func (s *BoltStore) GetChunksByURL(_ context.Context, url string, filter domain.Filter) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketChunks)
		prefix := urlPrefix(url)
		c := tx.Bucket(bucketURLChunks).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			v := data.Get(k[len(prefix):])
			if v == nil {
				continue
			}
			var chunk domain.Chunk
			if err := json.Unmarshal(v, &chunk); err != nil {
				return err
			}
			if filter.Matches(chunk) {
				chunks = append(chunks, chunk)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read chunks for %s: %w", url, err)
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].ChunkNumber < chunks[j].ChunkNumber
	})
	return chunks, nil
}

// GetChunk looks a chunk up by its ID.
func (s *BoltStore) GetChunk(_ context.Context, id string) (domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rows {
		if r.chunk.ID == id {
			return r.chunk, nil
		}
	}
	return domain.Chunk{}, fmt.Errorf("chunk %s: %w", id, ErrNotFound)
}

func (s *BoltStore) DeleteByURL(_ context.Context, url string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := make(map[uint64]struct{})
	err := s.db.Update(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketChunks)
		index := tx.Bucket(bucketURLChunks)
		prefix := urlPrefix(url)

		var keys [][]byte
		c := index.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			seqBytes := k[len(prefix):]
			if err := data.Delete(seqBytes); err != nil {
				return err
			}
			if err := index.Delete(k); err != nil {
				return err
			}
			deleted[binary.BigEndian.Uint64(seqBytes)] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks for %s: %w", url, err)
	}

	kept := s.rows[:0]
	for _, r := range s.rows {
		if _, ok := deleted[r.seq]; !ok {
			kept = append(kept, r)
		}
	}
	s.rows = kept
	return len(deleted), nil
}

func (s *BoltStore) Count(_ context.Context, filter domain.Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, r := range s.rows {
		if filter.Matches(r.chunk) {
			n++
		}
	}
	return n, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
