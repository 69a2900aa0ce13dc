package archive

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// rateLimitBurst caps how many bytes a single limiter wait can cover.
const rateLimitBurst = 256 << 10

// limitedWriter throttles writes to a configured bytes-per-second budget.
type limitedWriter struct {
	ctx context.Context
	w   io.Writer
	lim *rate.Limiter
}

func newLimitedWriter(ctx context.Context, w io.Writer, bytesPerSec int64) io.Writer {
	burst := rateLimitBurst
	if bytesPerSec < int64(burst) {
		burst = int(bytesPerSec)
	}
	return &limitedWriter{
		ctx: ctx,
		w:   w,
		lim: rate.NewLimiter(rate.Limit(bytesPerSec), burst),
	}
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		chunk := p
		if len(chunk) > lw.lim.Burst() {
			chunk = chunk[:lw.lim.Burst()]
		}
		if err := lw.lim.WaitN(lw.ctx, len(chunk)); err != nil {
			return written, err
		}
		n, err := lw.w.Write(chunk)
		written += n
		if err != nil {
			return written, err
		}
		p = p[n:]
	}
	return written, nil
}
