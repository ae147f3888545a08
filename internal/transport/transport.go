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

// Package transport performs rate-limited, retrying HTTP GETs and
// streams bodies to disk through a temp-then-rename dance. It is the
// only component that touches *.downloading temp files.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/vbauerster/mpb/v8"

	"github.com/RetroCyber/thcrap-patch-mirror/internal/console"
	"github.com/RetroCyber/thcrap-patch-mirror/internal/probe"
)

// cacheBuster is appended to every fetch whose result must be fresh.
const cacheBuster = "?=2233"

// Client fetches remote resources, rate-limiting every download and
// retrying transient failures up to MaxRetries times.
type Client struct {
	HTTP       *http.Client
	RateKiBps  int64
	MaxRetries int
	Log        console.Logger

	// Progress, when set, renders one bar per file transfer. Nil (the
	// default) disables progress rendering entirely.
	Progress *mpb.Progress
}

// NewClient builds a Client. proxyURL, if non-empty, configures the
// underlying transport's proxy explicitly, passed into the client
// factory rather than picked up from the process environment the way
// the original relied on global env-var injection.
func NewClient(rateKiBps int64, maxRetries int, proxyURL string, log console.Logger) (*Client, error) {
	rt := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("transport: invalid proxy URL %q: %w", proxyURL, err)
		}
		rt.Proxy = http.ProxyURL(u)
	}
	if maxRetries < 1 {
		maxRetries = 1
	}
	if log == nil {
		log = console.Discard
	}
	return &Client{
		HTTP:       &http.Client{Transport: rt},
		RateKiBps:  rateKiBps,
		MaxRetries: maxRetries,
		Log:        log,
	}, nil
}

func withCacheBuster(rawURL string) string {
	return rawURL + cacheBuster
}

// Download fetches srcURL to dstPath, acquiring a pool slot first. On
// success dstPath contains the complete body; on any failure no partial
// file remains at dstPath.
func (c *Client) Download(ctx context.Context, pool *Pool, srcURL, dstPath string) error {
	release, err := pool.Acquire(ctx)
	if err != nil {
		return probe.NewError(err).Trace(srcURL).ToError()
	}
	defer release()

	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return probe.NewError(err).Trace(dstPath).ToError()
	}

	tmpPath := dstPath + ".downloading"
	var lastErr error
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			c.Log.Infof("retry %d/%d: %s", attempt, c.MaxRetries, srcURL)
		}
		n, err := c.downloadOnce(ctx, srcURL, tmpPath)
		if err == nil {
			if err := os.Remove(dstPath); err != nil && !os.IsNotExist(err) {
				lastErr = err
				continue
			}
			if err := os.Rename(tmpPath, dstPath); err != nil {
				lastErr = err
				continue
			}
			c.Log.Getf("%s (%s)", dstPath, humanize.Bytes(uint64(n)))
			return nil
		}
		lastErr = err
	}
	c.Log.Errorf("failed to download %s after %d retries: %v", dstPath, c.MaxRetries, lastErr)
	return probe.NewError(lastErr).Trace(srcURL).ToError()
}

// downloadOnce performs a single GET-then-stream-to-tmpPath attempt,
// returning the number of bytes written. The file at tmpPath is left in
// place on failure (the next attempt, or the next session's recovery
// path, overwrites it) and never renamed over dstPath.
func (c *Client) downloadOnce(ctx context.Context, srcURL, tmpPath string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, withCacheBuster(srcURL), nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("transport: %s returned status %d", srcURL, resp.StatusCode)
	}

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	body := rateLimitedReader(resp.Body, c.RateKiBps*1024)
	if c.Progress != nil {
		bar := newDownloadBar(c.Progress, tmpPath, resp.ContentLength)
		proxied := bar.ProxyReader(body)
		defer proxied.Close()
		body = proxied
	}

	n, err := io.Copy(f, body)
	if err != nil {
		return n, err
	}
	return n, nil
}

// GetJSON fetches url (with the cache-buster appended) and decodes the
// JSON body into v. Used by the manifest client and the recovery path.
func (c *Client) GetJSON(ctx context.Context, rawURL string, v interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, withCacheBuster(rawURL), nil)
	if err != nil {
		return probe.NewError(err).Trace(rawURL).ToError()
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return probe.NewError(err).Trace(rawURL).ToError()
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return probe.NewError(fmt.Errorf("transport: %s returned status %d", rawURL, resp.StatusCode)).Trace().ToError()
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return probe.NewError(err).Trace(rawURL).ToError()
	}
	if err := json.Unmarshal(body, v); err != nil {
		return probe.NewError(err).Trace(rawURL).ToError()
	}
	return nil
}

// GetBytes fetches url (with the cache-buster appended) and returns the
// raw body, used where the caller needs both the parsed JSON and the
// exact bytes (e.g. hashing files.js verbatim for the version check).
func (c *Client) GetBytes(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, withCacheBuster(rawURL), nil)
	if err != nil {
		return nil, probe.NewError(err).Trace(rawURL).ToError()
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, probe.NewError(err).Trace(rawURL).ToError()
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, probe.NewError(fmt.Errorf("transport: %s returned status %d", rawURL, resp.StatusCode)).Trace().ToError()
	}
	return io.ReadAll(resp.Body)
}

// Probe does a bare GET against url with the 10s session timeout and
// reports only whether the response was a 200, used by the ADD
// mode-detection probe.
func (c *Client) Probe(ctx context.Context, rawURL string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return false, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		// network failure here just means "not this candidate"; the
		// caller tries the next URL in the probe sequence.
		return false, nil
	}
	defer resp.Body.Close()
	return resp.StatusCode == 200, nil
}
