package resource

import (
	"context"
	"io"
)

// RateLimitedReader wraps an io.Reader, throttling reads against a
// Controller's IO limiter. Used when fetching a remote base layer through
// blobstore so a large download cannot starve other background work.
type RateLimitedReader struct {
	r   io.Reader
	c   *Controller
	ctx context.Context
}

// NewRateLimitedReader returns a reader that throttles against c using ctx
// for cancellation. A nil Controller disables throttling.
func NewRateLimitedReader(ctx context.Context, r io.Reader, c *Controller) *RateLimitedReader {
	return &RateLimitedReader{r: r, c: c, ctx: ctx}
}

func (r *RateLimitedReader) Read(p []byte) (int, error) {
	if err := r.c.AcquireIO(r.ctx, len(p)); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
