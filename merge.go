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

import "github.com/LiuShuoJiang/titanium/titaniumerr"

// ErrMergeNotImplemented is returned by Merge: compaction is designed but
// not yet built.
var ErrMergeNotImplemented = titaniumerr.New(titaniumerr.IO, "merge/compaction is not implemented")

// Merge is reserved for a log-compaction pass: rewriting live records out of archive files into a fresh set of
// files and discarding the rest, to reclaim space held by overwritten and
// tombstoned keys. It remains a stub.
func (e *Engine) Merge() error {
	return ErrMergeNotImplemented
}
