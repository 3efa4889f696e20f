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
	"os"

	"github.com/LiuShuoJiang/titanium/internal/config"
)

// Options is the user-facing configuration surface. It is a plain value
// type; internally it is turned into a config.Provider so the engine itself
// never depends on Options directly.
type Options struct {
	// DirectoryPath is the path to the data directory.
	DirectoryPath string

	// DataFileSize is the rotation threshold, in bytes.
	DataFileSize int64

	// SyncWrites indicates whether every write is fsynced before returning.
	SyncWrites bool

	// MaxKeySize is the maximum accepted key length.
	MaxKeySize uint32

	// MaxValueSize is the maximum accepted value length.
	MaxValueSize uint32
}

// DefaultOptions is a 256MiB rotation threshold, buffered (non-fsyncing)
// writes, and the OS temp directory.
var DefaultOptions = Options{
	DirectoryPath: os.TempDir(),
	DataFileSize:  256 * 1024 * 1024,
	SyncWrites:    false,
	MaxKeySize:    1 << 16,
	MaxValueSize:  1 << 20,
}

// snapshot converts Options into the immutable config.Snapshot the engine
// actually consumes.
func (o Options) snapshot() config.Snapshot {
	mode := config.Buffer
	if o.SyncWrites {
		mode = config.Sync
	}
	return config.Snapshot{
		DataDir:      o.DirectoryPath,
		MaxKeySize:   o.MaxKeySize,
		MaxValueSize: o.MaxValueSize,
		MaxFileSize:  o.DataFileSize,
		WriteMode:    mode,
	}
}

// Provider returns a config.Provider that always serves this Options
// value's snapshot — the Static implementation is the only Provider this
// module constructs; wiring up an external, reloading Provider is left to
// the caller.
func (o Options) Provider() config.Provider {
	return config.NewStatic(o.snapshot())
}
