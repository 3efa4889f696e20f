/*
 * Copyright (c) 2024. Shuojiang Liu.
 * Licensed under the MIT License (the "License");
 * you may not use this file except in compliance with the License.
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package titanium implements an embedded, single-process Bitcask-style
// key-value store: an append-only log of records on disk, paired with a
// full in-memory index from key to byte position.
package titanium

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/LiuShuoJiang/titanium/internal/config"
	"github.com/LiuShuoJiang/titanium/internal/index"
	"github.com/LiuShuoJiang/titanium/internal/record"
	"github.com/LiuShuoJiang/titanium/internal/storage"
	"github.com/LiuShuoJiang/titanium/internal/wal"
	"github.com/LiuShuoJiang/titanium/titaniumerr"
	"github.com/gofrs/flock"
)

const (
	dataFileSuffix = ".bs"
	fileLockName   = ".titanium-lock"
)

// ErrNotRestored and friends are the sentinel errors returned directly by
// the engine; finer-grained I/O and corruption classification goes through
// titaniumerr.Error instead of a flat sentinel set.
//
// A zero-length key is an ordinary key, not an error: the on-disk format
// and the index have no trouble representing key_len == 0, and Set("", ...)
// / Get("") round-trip like any other key.
var (
	ErrNotRestored     = errors.New("titanium: Restore must be called before accepting writes")
	ErrAlreadyRestored = errors.New("titanium: Restore has already been called")
	ErrDatabaseInUse   = errors.New("titanium: data directory is in use by another instance")
)

// archiveHandle holds the random-access reader for a rotated-out file.
type archiveHandle struct {
	reader storage.RandomReader
}

// Engine is a single open Titanium database.
type Engine struct {
	mu sync.RWMutex

	fs       storage.FileSystem
	cfg      config.Provider
	dataDir  string
	fileLock *flock.Flock

	activeFileID uint32
	activeFile   storage.File
	writer       *wal.Writer

	archives map[uint32]archiveHandle

	idx *index.Map

	seqNo    uint64
	restored bool

	bytesWritten int64
	log          *slog.Logger
}

// Stats summarizes the engine's current state.
type Stats struct {
	KeyCount     int
	FileCount    int
	BytesWritten int64
}

func fileName(id uint32) string {
	return fmt.Sprintf("%04d%s", id, dataFileSuffix)
}

// Open enumerates the *.bs files under the configured data directory,
// reuses the highest-numbered one as the active file if it has room, and
// returns an Engine that does not yet accept writes: Restore must be
// called once before Set/Get/Remove.
func Open(cfg config.Provider, fs storage.FileSystem) (*Engine, error) {
	snap := cfg.Snapshot()
	if err := snap.Validate(); err != nil {
		return nil, err
	}

	if err := fs.CreateDirAll(snap.DataDir); err != nil {
		return nil, titaniumerr.Wrap(titaniumerr.IO, "create data directory", err)
	}

	var fileLock *flock.Flock
	if _, ok := fs.(*storage.OS); ok {
		fileLock = flock.New(filepath.Join(snap.DataDir, fileLockName))
		held, err := fileLock.TryLock()
		if err != nil {
			return nil, titaniumerr.Wrap(titaniumerr.IO, "acquire data directory lock", err)
		}
		if !held {
			return nil, ErrDatabaseInUse
		}
	}

	e := &Engine{
		fs:       fs,
		cfg:      cfg,
		dataDir:  snap.DataDir,
		fileLock: fileLock,
		archives: make(map[uint32]archiveHandle),
		idx:      index.New(),
		log:      slog.Default(),
	}

	if err := e.openFiles(snap); err != nil {
		e.releaseLock()
		return nil, err
	}

	return e, nil
}

func (e *Engine) releaseLock() {
	if e.fileLock != nil {
		_ = e.fileLock.Unlock()
	}
}

func (e *Engine) openFiles(snap config.Snapshot) error {
	infos, err := e.fs.ListFiles(snap.DataDir)
	if err != nil {
		return titaniumerr.Wrap(titaniumerr.IO, "list data directory", err)
	}

	var ids []int
	for _, info := range infos {
		if !strings.HasSuffix(info.Name, dataFileSuffix) {
			continue
		}
		stem := strings.TrimSuffix(info.Name, dataFileSuffix)
		id, err := strconv.Atoi(stem)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for i, id := range ids {
		isLast := i == len(ids)-1
		path := filepath.Join(snap.DataDir, fileName(uint32(id)))

		if !isLast {
			reader, err := e.fs.OpenReader(path)
			if err != nil {
				return titaniumerr.Wrap(titaniumerr.IO, "open archive file", err)
			}
			e.archives[uint32(id)] = archiveHandle{reader: reader}
			continue
		}

		meta, err := e.fs.Metadata(path)
		if err != nil {
			return titaniumerr.Wrap(titaniumerr.IO, "stat candidate active file", err)
		}
		if meta.Size >= snap.MaxFileSize {
			// Too full to reuse: archive it and start a fresh active file.
			reader, err := e.fs.OpenReader(path)
			if err != nil {
				return titaniumerr.Wrap(titaniumerr.IO, "open archive file", err)
			}
			e.archives[uint32(id)] = archiveHandle{reader: reader}
			return e.createActiveFile(snap.DataDir, uint32(id)+1)
		}

		f, err := e.fs.OpenFile(path)
		if err != nil {
			return titaniumerr.Wrap(titaniumerr.IO, "reopen active file", err)
		}
		e.activeFileID = uint32(id)
		e.activeFile = f
		e.writer = wal.NewWriter(f, meta.Size)
	}

	if e.activeFile == nil {
		return e.createActiveFile(snap.DataDir, 0)
	}
	return nil
}

func (e *Engine) createActiveFile(dataDir string, id uint32) error {
	path := filepath.Join(dataDir, fileName(id))
	f, err := e.fs.CreateFile(path)
	if err != nil {
		return titaniumerr.Wrap(titaniumerr.IO, "create active file", err)
	}
	e.activeFileID = id
	e.activeFile = f
	e.writer = wal.NewWriter(f, 0)
	e.log.Debug("titanium: opened active file", "file_id", id)
	return nil
}

// Close flushes and closes every open file handle and releases the data
// directory lock, giving the storage abstraction's factory-issued handles
// somewhere to be released.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.releaseLock()

	if e.activeFile != nil {
		if err := e.writer.Sync(); err != nil {
			return err
		}
		if err := e.activeFile.Close(); err != nil {
			return err
		}
	}
	for id, archive := range e.archives {
		if err := archive.reader.Close(); err != nil {
			return fmt.Errorf("titanium: close archive file %d: %w", id, err)
		}
	}
	return nil
}

// Sync explicitly flushes and fsyncs the active file.
func (e *Engine) Sync() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.writer == nil {
		return nil
	}
	return e.writer.Sync()
}

// Stat returns a snapshot of the engine's current state.
func (e *Engine) Stat() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Stats{
		KeyCount:     e.idx.Size(),
		FileCount:    len(e.archives) + 1,
		BytesWritten: e.bytesWritten,
	}
}

// Set writes key/value with a normal (non-TTL) record.
func (e *Engine) Set(key, value []byte) error {
	return e.set(key, value, false, 0)
}

// SetWithTTL writes key/value as a TTL-bearing record that becomes
// unreadable once ttl has elapsed since the write.
func (e *Engine) SetWithTTL(key, value []byte, ttl time.Duration) error {
	return e.set(key, value, true, ttl)
}

func (e *Engine) set(key, value []byte, withTTL bool, ttl time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.restored {
		return ErrNotRestored
	}

	snap := e.cfg.Snapshot()
	if uint32(len(key)) > snap.MaxKeySize {
		return titaniumerr.New(titaniumerr.InvalidData, "key exceeds max_key_size")
	}
	if uint32(len(value)) > snap.MaxValueSize {
		return titaniumerr.New(titaniumerr.InvalidData, "value exceeds max_val_size")
	}

	if err := e.rotateIfNeeded(snap); err != nil {
		return err
	}

	seqNo, err := e.nextSeqNo()
	if err != nil {
		return err
	}

	rec := &record.Record{
		EntryType:      0,
		CreatedAt:      uint64(time.Now().UnixMilli()),
		SequenceNumber: seqNo,
		Key:            key,
		Value:          value,
	}
	if withTTL {
		rec.EntryType |= record.FlagTTL
		rec.ExpireAt = uint64(time.Now().Add(ttl).UnixMilli())
	}

	offset, size, err := e.appendAndPersist(rec, snap)
	if err != nil {
		return err
	}

	e.idx.Put(key, index.Entry{
		FileID:   e.activeFileID,
		Offset:   uint64(offset),
		ValueLen: uint32(len(value)),
	})
	_ = size
	return nil
}

// Remove deletes key, appending a tombstone record. No-op if key is not
// indexed.
func (e *Engine) Remove(key []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.restored {
		return ErrNotRestored
	}

	if _, ok := e.idx.Get(key); !ok {
		return nil
	}

	snap := e.cfg.Snapshot()
	if err := e.rotateIfNeeded(snap); err != nil {
		return err
	}

	seqNo, err := e.nextSeqNo()
	if err != nil {
		return err
	}

	rec := &record.Record{
		EntryType:      record.FlagTombstone,
		CreatedAt:      uint64(time.Now().UnixMilli()),
		SequenceNumber: seqNo,
		Key:            key,
	}

	if _, _, err := e.appendAndPersist(rec, snap); err != nil {
		return err
	}

	e.idx.Remove(key)
	return nil
}

// Get looks up key and, if present and not expired, returns its record.
func (e *Engine) Get(key []byte) (*record.Record, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.restored {
		return nil, ErrNotRestored
	}

	entry, ok := e.idx.Get(key)
	if !ok {
		return nil, nil
	}

	snap := e.cfg.Snapshot()
	limits := record.Limits{MaxKeySize: snap.MaxKeySize, MaxValueSize: snap.MaxValueSize}

	reader, err := e.readerFor(entry.FileID)
	if err != nil {
		return nil, err
	}

	rec, err := record.DecodeFull(&offsetReader{r: reader, pos: int64(entry.Offset)}, limits)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, titaniumerr.New(titaniumerr.InvalidData, "index pointed at an empty record")
	}

	if rec.HasTTL() && uint64(time.Now().UnixMilli()) > rec.ExpireAt {
		return nil, nil
	}

	return rec, nil
}

func (e *Engine) readerFor(fileID uint32) (storage.RandomReader, error) {
	if fileID == e.activeFileID {
		return e.activeFile, nil
	}
	archive, ok := e.archives[fileID]
	if !ok {
		return nil, titaniumerr.New(titaniumerr.IO, "data file not found for index entry")
	}
	return archive.reader, nil
}

// rotateIfNeeded implements size-based rotation trigger: checked at
// the start of every write so a record is never split across files.
func (e *Engine) rotateIfNeeded(snap config.Snapshot) error {
	if e.writer.CurrentOffset() < snap.MaxFileSize {
		return nil
	}
	return e.rotate(snap)
}

func (e *Engine) rotate(snap config.Snapshot) error {
	if err := e.writer.Sync(); err != nil {
		return err
	}

	path := filepath.Join(snap.DataDir, fileName(e.activeFileID))
	reader, err := e.fs.OpenReader(path)
	if err != nil {
		return titaniumerr.Wrap(titaniumerr.IO, "reopen rotated file for reads", err)
	}
	if err := e.activeFile.Close(); err != nil {
		return titaniumerr.Wrap(titaniumerr.IO, "close rotated-out active file", err)
	}
	e.archives[e.activeFileID] = archiveHandle{reader: reader}

	return e.createActiveFile(snap.DataDir, e.activeFileID+1)
}

func (e *Engine) nextSeqNo() (uint64, error) {
	if e.seqNo == ^uint64(0) {
		return 0, titaniumerr.New(titaniumerr.Overflow, "sequence number would exceed 2^64-1")
	}
	e.seqNo++
	return e.seqNo, nil
}

func (e *Engine) appendAndPersist(rec *record.Record, snap config.Snapshot) (offset int64, size int64, err error) {
	offset, size, err = e.writer.Write(rec)
	if err != nil {
		return 0, 0, titaniumerr.Wrap(titaniumerr.IO, "append record", err)
	}
	e.bytesWritten += size

	if snap.WriteMode == config.Sync {
		if err := e.writer.Sync(); err != nil {
			return 0, 0, titaniumerr.Wrap(titaniumerr.IO, "fsync after write", err)
		}
	} else {
		if err := e.writer.FlushToOS(); err != nil {
			return 0, 0, titaniumerr.Wrap(titaniumerr.IO, "flush write buffer", err)
		}
	}

	return offset, size, nil
}

// offsetReader adapts a storage.RandomReader into an io.Reader that reads
// sequentially starting at pos, advancing pos after every Read — the
// "stateless reader adapter" calls for: it never mutates the
// underlying file's own cursor, so concurrent positional reads never
// interfere with one another.
type offsetReader struct {
	r   storage.RandomReader
	pos int64
}

func (o *offsetReader) Read(buf []byte) (int, error) {
	n, err := o.r.ReadAt(buf, o.pos)
	o.pos += int64(n)
	return n, err
}
