// Package wal implements the buffered, append-only log writer: it wraps a
// single active file handle in a user-space buffer, tracks the offset the
// next record will land at, and exposes the explicit flush-vs-sync
// durability split the engine drives on every write.
package wal

import (
	"bufio"

	"github.com/LiuShuoJiang/titanium/internal/record"
	"github.com/LiuShuoJiang/titanium/internal/storage"
)

const bufferSize = 64 * 1024

// fileWriter adapts storage.Writer to io.Writer so bufio.Writer can sit in
// front of it.
type fileWriter struct {
	f storage.Writer
}

func (w fileWriter) Write(p []byte) (int, error) {
	return w.f.Write(p)
}

// Writer is the buffered append-only log writer for a single active file.
type Writer struct {
	file          storage.File
	buf           *bufio.Writer
	currentOffset int64
}

// NewWriter constructs a Writer over file, with currentOffset initialized
// to startOffset — the existing file length when reopening an active file
// that already has data.
func NewWriter(file storage.File, startOffset int64) *Writer {
	return &Writer{
		file:          file,
		buf:           bufio.NewWriterSize(fileWriter{file}, bufferSize),
		currentOffset: startOffset,
	}
}

// CurrentOffset returns the byte position immediately after the last
// written record — the next record's start offset.
func (w *Writer) CurrentOffset() int64 {
	return w.currentOffset
}

// Write encodes rec and appends it to the buffer, returning the offset the
// record now occupies — the value to store in the index.
func (w *Writer) Write(rec *record.Record) (offsetBefore int64, size int64, err error) {
	encoded := record.Encode(rec)
	offsetBefore = w.currentOffset

	if _, err := w.buf.Write(encoded); err != nil {
		return 0, 0, err
	}
	w.currentOffset += int64(len(encoded))

	return offsetBefore, int64(len(encoded)), nil
}

// FlushToOS flushes the user-space buffer without fsyncing.
func (w *Writer) FlushToOS() error {
	return w.buf.Flush()
}

// Sync flushes the buffer, then requests a storage-level fsync. Called
// after every write in synchronous durability mode, and before rotation.
func (w *Writer) Sync() error {
	if err := w.buf.Flush(); err != nil {
		return err
	}
	return w.file.Sync()
}

// SetOffset adjusts the tracked offset; used by recovery after truncating
// the active file to its last-good boundary.
func (w *Writer) SetOffset(n int64) {
	w.currentOffset = n
}
