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

package transport

import (
	"path/filepath"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// NewProgress creates a bar container a CLI command can attach to a
// Client before starting an ADD/UPDATE session: one bar per file
// currently downloading, rendered to stdout.
func NewProgress() *mpb.Progress {
	return mpb.New(mpb.WithWidth(40))
}

// newDownloadBar adds one bar for a single file transfer, sized to total
// bytes when known (total <= 0 renders an indeterminate bar).
func newDownloadBar(p *mpb.Progress, dstPath string, total int64) *mpb.Bar {
	name := filepath.Base(dstPath)
	return p.New(total,
		mpb.BarStyle(),
		mpb.PrependDecorators(decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DindentRight})),
		mpb.AppendDecorators(decor.CountersKiloByte("% .1f / % .1f")),
	)
}
