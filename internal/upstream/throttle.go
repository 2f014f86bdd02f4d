package upstream

import (
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// throttle 是基于令牌桶的 http.RoundTripper，限制对上游的请求速率。
type throttle struct {
	limiter *rate.Limiter
	rps     int
	burst   int
	next    http.RoundTripper
	logger  *logrus.Logger
}

// newThrottle 返回限速 RoundTripper；rps 与 burst 必须大于 0。
func newThrottle(rps, burst int, logger *logrus.Logger, next http.RoundTripper) (http.RoundTripper, error) {
	if rps <= 0 || burst <= 0 {
		return nil, fmt.Errorf("rps[%d] and burst[%d] %w", rps, burst, ErrMustNotBeZero)
	}
	return &throttle{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		rps:     rps,
		burst:   burst,
		next:    next,
		logger:  logger,
	}, nil
}

func (t *throttle) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx := r.Context()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w early: %w", ErrContextEnded, err)
	}

	if !t.limiter.Allow() {
		start := time.Now()
		entry := t.logger.WithFields(logrus.Fields{
			"action": "throttle",
			"rate":   t.rps,
			"burst":  t.burst,
			"host":   r.URL.Host,
		})
		entry.Debug("throttle tokens exhausted")
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrWaitingFailed, err)
		}
		entry.WithField("waited", time.Since(start).String()).Debug("throttle wait complete")
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w post-wait: %w", ErrContextEnded, err)
	}
	return t.next.RoundTrip(r)
}
