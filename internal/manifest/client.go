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

package manifest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/RetroCyber/thcrap-patch-mirror/internal/probe"
	"github.com/RetroCyber/thcrap-patch-mirror/internal/transport"
)

// FetchRepo fetches and parses a repo descriptor. mode=ModeAddRepo
// treats url as a repo root (reads <url>/repo.js); mode=ModeAddPatch
// treats url as a patch (reads <url>/../repo.js). Fails if the payload
// is not JSON or lacks an id.
func FetchRepo(ctx context.Context, c *transport.Client, rawURL string, mode Mode) (*RepoDescriptor, error) {
	base := ensureTrailingSlash(rawURL)
	var repoJSURL string
	switch mode {
	case ModeAddRepo:
		repoJSURL = base + "repo.js"
	case ModeAddPatch:
		repoJSURL = parentOf(base) + "repo.js"
	default:
		return nil, probe.NewError(fmt.Errorf("manifest: invalid mode %d", mode)).Trace(rawURL).ToError()
	}

	var desc RepoDescriptor
	if err := c.GetJSON(ctx, repoJSURL, &desc); err != nil {
		return nil, probe.NewError(err).Trace(repoJSURL).ToError()
	}
	if desc.ID == "" {
		return nil, probe.NewError(fmt.Errorf("manifest: %s has no repo id", repoJSURL)).Trace(repoJSURL).ToError()
	}
	return &desc, nil
}

// fetchFileMap fetches <patchURL>/files.js and returns the raw mapping,
// preserving explicit nulls ("deleted upstream") as nil entries — the
// UPDATE diff needs presence-with-null distinguished from absence.
func fetchFileMap(ctx context.Context, c *transport.Client, patchURL string) (map[string]*uint32, error) {
	filesJSURL := ensureTrailingSlash(patchURL) + "files.js"
	var raw map[string]*uint32
	if err := c.GetJSON(ctx, filesJSURL, &raw); err != nil {
		return nil, probe.NewError(err).Trace(filesJSURL).ToError()
	}
	return raw, nil
}

// FetchPatchFiles returns the mapping from relative path to integrity
// token for a patch's current file list, excluding entries whose token
// is null.
func FetchPatchFiles(ctx context.Context, c *transport.Client, patchURL string) (map[string]uint32, error) {
	raw, err := fetchFileMap(ctx, c, patchURL)
	if err != nil {
		return nil, err
	}
	out := make(map[string]uint32, len(raw))
	for k, v := range raw {
		if v != nil {
			out[k] = *v
		}
	}
	return out, nil
}

// FetchPatchVersion returns the sha256 hex digest of the raw bytes of a
// patch's files.js — the opaque upstream change signal stored in the
// version record.
func FetchPatchVersion(ctx context.Context, c *transport.Client, patchURL string) (string, error) {
	filesJSURL := ensureTrailingSlash(patchURL) + "files.js"
	body, err := c.GetBytes(ctx, filesJSURL)
	if err != nil {
		return "", probe.NewError(err).Trace(filesJSURL).ToError()
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}

// FetchFileMapRaw exposes the unfiltered files.js mapping (including
// null entries) for the UPDATE path, which needs to see explicit
// deletions.
func FetchFileMapRaw(ctx context.Context, c *transport.Client, patchURL string) (map[string]*uint32, error) {
	return fetchFileMap(ctx, c, patchURL)
}

// FetchPatchFilesVerbatim fetches a patch's files.js and returns both
// the parsed (unfiltered) map and the exact upstream bytes, so the ADD
// state machine can persist __files.js verbatim while also working with
// the parsed map to schedule downloads.
func FetchPatchFilesVerbatim(ctx context.Context, c *transport.Client, patchURL string) (map[string]*uint32, []byte, error) {
	filesJSURL := ensureTrailingSlash(patchURL) + "files.js"
	raw, err := c.GetBytes(ctx, filesJSURL)
	if err != nil {
		return nil, nil, probe.NewError(err).Trace(filesJSURL).ToError()
	}
	var m map[string]*uint32
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, probe.NewError(err).Trace(filesJSURL).ToError()
	}
	return m, raw, nil
}

func ensureTrailingSlash(u string) string {
	if strings.HasSuffix(u, "/") {
		return u
	}
	return u + "/"
}

// parentOf returns the parent "directory" of a slash-terminated URL,
// i.e. strips the last path segment before the trailing slash.
func parentOf(u string) string {
	trimmed := strings.TrimSuffix(u, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return u
	}
	return trimmed[:idx+1]
}
