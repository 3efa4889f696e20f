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

package titanium

import (
	"fmt"
	"sort"

	"github.com/LiuShuoJiang/titanium/internal/index"
	"github.com/LiuShuoJiang/titanium/internal/record"
	"github.com/LiuShuoJiang/titanium/internal/storage"
	"github.com/LiuShuoJiang/titanium/titaniumerr"
)

// Restore runs the recovery scanner: it walks every data file, archive
// files first in ascending file-ID order, then the active file last,
// rebuilding the in-memory index and recovering the highest sequence
// number seen. It must be called exactly once, after Open and before any
// Set/Get/Remove call.
//
// It header-only decodes every record (the index only needs key, file ID,
// offset, and value length, never the value bytes themselves) and, on a
// corruption-class error, truncates the file at the last good record
// boundary instead of aborting the whole open.
func (e *Engine) Restore() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.restored {
		return ErrAlreadyRestored
	}

	ids := make([]uint32, 0, len(e.archives)+1)
	for id := range e.archives {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	ids = append(ids, e.activeFileID)

	var maxSeqNo uint64
	snap := e.cfg.Snapshot()
	limits := record.Limits{MaxKeySize: snap.MaxKeySize, MaxValueSize: snap.MaxValueSize}

	for _, id := range ids {
		isActive := id == e.activeFileID
		reader, err := e.readerFor(id)
		if err != nil {
			return err
		}

		lastGood, seen, err := e.scanFile(reader, id, limits, &maxSeqNo)
		if err != nil {
			if !titaniumerr.IsCorruption(err) {
				return fmt.Errorf("titanium: recovering file %d: %w", id, err)
			}
			e.log.Warn("titanium: truncating corrupt tail",
				"file_id", id, "good_bytes", lastGood, "scanned_records", seen, "cause", err)
			if err := e.truncateFile(id, isActive, lastGood); err != nil {
				return err
			}
		}
	}

	e.seqNo = maxSeqNo
	e.restored = true
	return nil
}

// scanFile header-decodes every record in reader starting at offset 0,
// applying each to the index (or removing a tombstoned key), and tracking
// the highest sequence number observed. It returns the offset immediately
// after the last successfully decoded record — the truncation point to
// use if a corruption-class error is eventually returned.
func (e *Engine) scanFile(reader storage.RandomReader, fileID uint32, limits record.Limits, maxSeqNo *uint64) (lastGood int64, records int, err error) {
	or := &offsetReader{r: reader}

	for {
		recordStart := or.pos

		hdr, err := record.DecodeHeaderOnly(or, limits)
		if err != nil {
			return recordStart, records, err
		}
		if hdr == nil {
			// Clean end of file.
			return or.pos, records, nil
		}

		bodySize := int64(4) + int64(hdr.ValueLen) // body_crc + value
		if _, err := skipN(or, bodySize); err != nil {
			return recordStart, records, err
		}

		if hdr.SequenceNumber > *maxSeqNo {
			*maxSeqNo = hdr.SequenceNumber
		}

		if hdr.IsTombstone() {
			e.idx.Remove(hdr.Key)
		} else {
			e.idx.Put(hdr.Key, index.Entry{
				FileID:   fileID,
				Offset:   uint64(recordStart),
				ValueLen: hdr.ValueLen,
			})
		}
		records++
	}
}

// skipN reads and discards exactly n bytes from or, classifying a short
// read as corruption the same way the record codec's own readFull does:
// this body region was promised by a header whose own CRC already
// validated, so if the bytes aren't there, they were truncated mid-write.
func skipN(or *offsetReader, n int64) (int64, error) {
	if n == 0 {
		return 0, nil
	}
	buf := make([]byte, n)
	read := 0
	for int64(read) < n {
		k, err := or.Read(buf[read:])
		read += k
		if err != nil {
			return int64(read), titaniumerr.Wrap(titaniumerr.UnexpectedEOF, "short read inside record body", err)
		}
	}
	return int64(read), nil
}

// truncateFile drops everything at and after offset in the file identified
// by id. For the active file this also rewinds the writer's tracked
// offset so the next append lands exactly where the good data ends.
func (e *Engine) truncateFile(id uint32, isActive bool, offset int64) error {
	if isActive {
		if err := e.activeFile.SetLen(offset); err != nil {
			return titaniumerr.Wrap(titaniumerr.IO, "truncate active file to last good record", err)
		}
		e.writer.SetOffset(offset)
		return nil
	}

	archive, ok := e.archives[id]
	if !ok {
		return titaniumerr.New(titaniumerr.IO, "truncate target is not a known archive file")
	}
	writable, ok := archive.reader.(storage.Writer)
	if !ok {
		// Archive readers opened via OpenReader (and mmap readers in
		// particular) are read-only by construction; a corrupt archive tail
		// is left in place rather than rewritten, since archive files are
		// never appended to again.
		return nil
	}
	if err := writable.SetLen(offset); err != nil {
		return titaniumerr.Wrap(titaniumerr.IO, "truncate archive file to last good record", err)
	}
	return nil
}
