// SPDX-License-Identifier: MIT

// Package blob stores raw uploaded material objects in a local Badger
// database. Objects are chunked, checksummed at write time and verifiable
// later, so silent corruption surfaces as an integrity failure instead of
// garbage content downstream.
package blob

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/coursesmith/coursesmith/internal/domain/fault"
	"github.com/coursesmith/coursesmith/internal/log"
)

// chunkSize keeps individual Badger values well under the transaction limit.
const chunkSize = 1 << 20 // 1 MiB

// ErrChecksumMismatch reports stored bytes that no longer hash to the
// manifest checksum.
var ErrChecksumMismatch = fmt.Errorf("blob: checksum mismatch")

// manifest is the per-object metadata record.
type manifest struct {
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	Checksum  string    `json:"checksum"` // hex SHA-256
	Chunks    int       `json:"chunks"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is a Badger-backed object store.
type Store struct {
	db *badger.DB
}

// Open opens or creates the store at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("blob: open: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

func metaKey(key string) []byte { return []byte("meta:" + key) }

func chunkKey(key string, i int) []byte {
	return []byte(fmt.Sprintf("obj:%s:%08d", key, i))
}

// PutResult describes a stored object.
type PutResult struct {
	Key      string
	Size     int64
	Checksum string
}

// Put stores one object under a fresh key of the form
// {courseID}/{uuid}/{filename}. Small objects (per sizeHint) are written in
// a single transaction; larger or unknown-size streams go chunk by chunk
// with cleanup of everything already written if any step fails.
func (s *Store) Put(ctx context.Context, courseID, filename string, r io.Reader, sizeHint int64) (*PutResult, error) {
	key := fmt.Sprintf("%s/%s/%s", courseID, uuid.NewString(), filename)

	if sizeHint > 0 && sizeHint <= chunkSize {
		return s.putSmall(key, filename, r)
	}
	return s.putChunked(ctx, key, filename, r)
}

func (s *Store) putSmall(key, filename string, r io.Reader) (*PutResult, error) {
	data, err := io.ReadAll(io.LimitReader(r, chunkSize+1))
	if err != nil {
		return nil, fmt.Errorf("blob: read: %w", err)
	}
	if len(data) > chunkSize {
		// the hint lied; fall back to the chunked path for the rest
		return s.putChunked(context.Background(), key, filename, io.MultiReader(bytes.NewReader(data), r))
	}

	sum := sha256.Sum256(data)
	m := manifest{
		Filename:  filename,
		Size:      int64(len(data)),
		Checksum:  hex.EncodeToString(sum[:]),
		Chunks:    1,
		CreatedAt: time.Now().UTC(),
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(chunkKey(key, 0), data); err != nil {
			return err
		}
		return txn.Set(metaKey(key), raw)
	})
	if err != nil {
		return nil, fmt.Errorf("blob: write: %w", err)
	}
	return &PutResult{Key: key, Size: m.Size, Checksum: m.Checksum}, nil
}

func (s *Store) putChunked(ctx context.Context, key, filename string, r io.Reader) (*PutResult, error) {
	hash := sha256.New()
	buf := make([]byte, chunkSize)
	var size int64
	var chunks int

	abort := func() {
		if err := s.deleteChunks(key, chunks); err != nil {
			log.WithComponent("blob").Warn().Err(err).Str("key", key).Msg("abort cleanup failed")
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			abort()
			return nil, err
		}
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			hash.Write(data)
			size += int64(n)
			werr := s.db.Update(func(txn *badger.Txn) error {
				return txn.Set(chunkKey(key, chunks), data)
			})
			if werr != nil {
				abort()
				return nil, fmt.Errorf("blob: write chunk %d: %w", chunks, werr)
			}
			chunks++
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			abort()
			return nil, fmt.Errorf("blob: read: %w", err)
		}
	}

	m := manifest{
		Filename:  filename,
		Size:      size,
		Checksum:  hex.EncodeToString(hash.Sum(nil)),
		Chunks:    chunks,
		CreatedAt: time.Now().UTC(),
	}
	raw, err := json.Marshal(m)
	if err != nil {
		abort()
		return nil, err
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(metaKey(key), raw)
	}); err != nil {
		abort()
		return nil, fmt.Errorf("blob: write manifest: %w", err)
	}
	return &PutResult{Key: key, Size: size, Checksum: m.Checksum}, nil
}

func (s *Store) readManifest(key string) (*manifest, error) {
	var m manifest
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &m)
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, fault.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// WriteTo streams the object into w, verifying the checksum along the way.
// A mismatch aborts with ErrChecksumMismatch after the bytes already went
// out, so callers that need strict verification should Verify first.
func (s *Store) WriteTo(ctx context.Context, key string, w io.Writer) (int64, error) {
	m, err := s.readManifest(key)
	if err != nil {
		return 0, err
	}

	hash := sha256.New()
	var written int64
	for i := 0; i < m.Chunks; i++ {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		err := s.db.View(func(txn *badger.Txn) error {
			item, err := txn.Get(chunkKey(key, i))
			if err != nil {
				return err
			}
			return item.Value(func(val []byte) error {
				hash.Write(val)
				n, werr := w.Write(val)
				written += int64(n)
				return werr
			})
		})
		if err != nil {
			return written, fmt.Errorf("blob: read chunk %d: %w", i, err)
		}
	}
	if hex.EncodeToString(hash.Sum(nil)) != m.Checksum {
		return written, ErrChecksumMismatch
	}
	return written, nil
}

// Read returns the whole object in memory.
func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := s.WriteTo(ctx, key, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Stat returns size and checksum without touching the data.
func (s *Store) Stat(_ context.Context, key string) (size int64, checksum string, err error) {
	m, err := s.readManifest(key)
	if err != nil {
		return 0, "", err
	}
	return m.Size, m.Checksum, nil
}

// Verify recomputes the checksum over the stored chunks. It returns
// ErrChecksumMismatch when the object is corrupt; callers flag the owning
// entry as integrity-broken.
func (s *Store) Verify(ctx context.Context, key string) error {
	_, err := s.WriteTo(ctx, key, io.Discard)
	return err
}

// Delete removes the object and its manifest.
func (s *Store) Delete(_ context.Context, key string) error {
	m, err := s.readManifest(key)
	if err != nil {
		return err
	}
	if err := s.deleteChunks(key, m.Chunks); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(metaKey(key))
	})
}

func (s *Store) deleteChunks(key string, chunks int) error {
	for i := 0; i < chunks; i++ {
		err := s.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(chunkKey(key, i))
		})
		if err != nil {
			return err
		}
	}
	return nil
}
