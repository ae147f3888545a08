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

// Package config loads config.json (site_url, mirror_dir, thpatch) and
// caches the resolved mirror directory in mirror.json, mirroring
// mirror_repo.py's load_custom_dir. The interactive "regenerate config"
// flow lives in the CLI; this package only validates and reads.
package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Config is the config.json schema. RepoBuildCmd is optional: when
// empty, the caller falls back to a no-op repo_build implementation.
type Config struct {
	SiteURL      string `json:"site_url"`
	MirrorDir    string `json:"mirror_dir"`
	Thpatch      string `json:"thpatch"`
	RepoBuildCmd string `json:"repo_build_cmd,omitempty"`
}

// ErrInvalid is returned when a required key is missing or empty.
var ErrInvalid = errors.New("config: missing or empty required key")

// Load reads and validates config.json at path. The site URL is
// normalized to always end in a trailing slash, matching the original's
// format_url helper.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if c.SiteURL == "" || c.MirrorDir == "" || c.Thpatch == "" {
		return nil, ErrInvalid
	}
	c.SiteURL = ensureTrailingSlash(c.SiteURL)
	return &c, nil
}

func ensureTrailingSlash(url string) string {
	if strings.HasSuffix(url, "/") {
		return url
	}
	return url + "/"
}

type mirrorCache struct {
	MirrorDir string `json:"mirror_dir"`
}

// LoadMirrorDir resolves the directory to mirror into for the update
// command. It prefers a cached mirror.json next to scriptDir, falls
// back to config.json's mirror_dir, and otherwise caches userArg (an
// explicit --mirror flag)
// for next time — the same precedence as mirror_repo.py's
// load_custom_dir.
func LoadMirrorDir(scriptDir, userArg string) (string, error) {
	mirrorPath := filepath.Join(scriptDir, "mirror.json")
	if data, err := os.ReadFile(mirrorPath); err == nil {
		var mc mirrorCache
		if err := json.Unmarshal(data, &mc); err == nil && mc.MirrorDir != "" {
			return mc.MirrorDir, nil
		}
	}

	configPath := filepath.Join(scriptDir, "config.json")
	if cfg, err := Load(configPath); err == nil && cfg.MirrorDir != "" {
		if err := cacheMirrorDir(mirrorPath, cfg.MirrorDir); err != nil {
			return "", err
		}
		return cfg.MirrorDir, nil
	}

	abs, err := filepath.Abs(strings.TrimSpace(userArg))
	if err != nil {
		return "", err
	}
	if err := cacheMirrorDir(mirrorPath, abs); err != nil {
		return "", err
	}
	return abs, nil
}

func cacheMirrorDir(mirrorPath, dir string) error {
	data, err := json.MarshalIndent(mirrorCache{MirrorDir: dir}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(mirrorPath, data, 0o644)
}
