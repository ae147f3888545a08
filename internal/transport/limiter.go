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
	"io"

	"github.com/juju/ratelimit"
)

// rateLimitedReader wraps r so reads from it are paced to
// rateBytesPerSec, sleeping as needed between reads. Grounded on
// minio-mc/pkg/limiter, which wraps request/response bodies the same
// way via ratelimit.Reader, but applied directly to the download body
// rather than through an http.RoundTripper since only downloads (never
// uploads) need pacing here.
func rateLimitedReader(r io.Reader, rateBytesPerSec int64) io.Reader {
	if rateBytesPerSec <= 0 {
		return r
	}
	bucket := ratelimit.NewBucketWithRate(float64(rateBytesPerSec), rateBytesPerSec)
	return ratelimit.Reader(r, bucket)
}
