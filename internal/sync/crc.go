/*
 * thcrap patch mirror, (C) 2024 RetroCyber
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package sync

import (
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
)

// joinPatchPath joins a patch directory with a files.js relative path,
// translating the wire protocol's forward slashes to the local OS form.
func joinPatchPath(patchDir, relPath string) string {
	return filepath.Join(patchDir, filepath.FromSlash(relPath))
}

// fileCRC32 computes the CRC32 (IEEE) of path, matching the integrity
// token upstream publishes in files.js. Returns (0, false, nil) if the
// file does not exist.
func fileCRC32(path string) (uint32, bool, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	defer f.Close()

	h := crc32.NewIEEE()
	if _, err := io.Copy(h, f); err != nil {
		return 0, false, err
	}
	return h.Sum32(), true, nil
}

// fileMatchesCRC32 reports whether path exists and its CRC32 equals want.
func fileMatchesCRC32(path string, want uint32) (bool, error) {
	got, exists, err := fileCRC32(path)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}
	return got == want, nil
}
