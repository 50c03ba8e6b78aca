// Copyright 2026 The PktMask Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
)

// scopedTempFile allocates a sibling temp file next to target (so a final
// os.Rename, if ever used, stays on the same filesystem) and tracks it for
// guaranteed removal. The executor uses these for every inter-stage hop;
// all are removed on every exit path, success or failure.
type scopedTempFile struct {
	path string
}

func newScopedTempFile(nearPath, tag string) (*scopedTempFile, error) {
	dir := filepath.Dir(nearPath)
	f, err := os.CreateTemp(dir, fmt.Sprintf(".pktmask-%s-*.tmp", tag))
	if err != nil {
		return nil, fmt.Errorf("pipeline: allocate temp file: %w", err)
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("pipeline: close temp file: %w", err)
	}
	return &scopedTempFile{path: path}, nil
}

func (t *scopedTempFile) Remove() {
	if t == nil || t.path == "" {
		return
	}
	_ = os.Remove(t.path)
}
