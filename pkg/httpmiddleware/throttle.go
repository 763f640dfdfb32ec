package httpmiddleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ThrottleConfig limits how often a client may hit a handler.
type ThrottleConfig struct {
	// Max requests per Window for one key. Zero disables throttling.
	Max    int
	Window time.Duration
	// Key identifies the client; the client IP is used when nil.
	Key func(*http.Request) string
}

// window counts requests of one key in the current and previous fixed
// windows; the previous count is weighted by its remaining overlap.
type window struct {
	start      time.Time
	curr, prev int
}

type throttle struct {
	cfg ThrottleConfig
	now func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

func newThrottle(cfg ThrottleConfig) *throttle {
	if cfg.Key == nil {
		cfg.Key = clientIP
	}
	return &throttle{cfg: cfg, now: time.Now, windows: make(map[string]*window)}
}

// take records a request for key and reports whether it is allowed along
// with the time the current window ends.
func (t *throttle) take(key string) (bool, time.Time) {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.windows[key]
	if !ok {
		w = &window{start: now.Truncate(t.cfg.Window)}
		t.windows[key] = w
	}
	switch elapsed := now.Sub(w.start); {
	case elapsed >= 2*t.cfg.Window:
		*w = window{start: now.Truncate(t.cfg.Window)}
	case elapsed >= t.cfg.Window:
		*w = window{start: w.start.Add(t.cfg.Window), prev: w.curr}
	}

	overlap := 1 - float64(now.Sub(w.start))/float64(t.cfg.Window)
	estimate := float64(w.prev)*overlap + float64(w.curr)
	reset := w.start.Add(t.cfg.Window)
	if estimate >= float64(t.cfg.Max) {
		return false, reset
	}
	w.curr++
	return true, reset
}

func (t *throttle) sweep() {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, w := range t.windows {
		if now.Sub(w.start) >= 2*t.cfg.Window {
			delete(t.windows, key)
		}
	}
}

// Throttle rejects clients exceeding cfg with 429 Too Many Requests. Idle
// clients are forgotten in the background until ctx is cancelled.
func Throttle(ctx context.Context, cfg ThrottleConfig) Middleware {
	if cfg.Max <= 0 || cfg.Window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	t := newThrottle(cfg)
	go func() {
		ticker := time.NewTicker(2 * cfg.Window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.sweep()
			}
		}
	}()
	return t.middleware
}

func (t *throttle) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, reset := t.take(t.cfg.Key(r))
		if !allowed {
			wait := max(time.Until(reset), 0)
			w.Header().Set("Retry-After", strconv.Itoa(int(wait.Round(time.Second)/time.Second)+1))
			WriteError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
