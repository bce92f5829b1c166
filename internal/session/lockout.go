package session

import "time"

// pinGuard counts consecutive rejected PIN logins. Every maxFailures
// rejections start a lockout window that doubles per lockout up to maxWindow.
type pinGuard struct {
	maxFailures int
	window      time.Duration
	maxWindow   time.Duration

	failures int
	lockouts int
	until    time.Time
}

func (g *pinGuard) remaining(now time.Time) time.Duration {
	if now.Before(g.until) {
		return g.until.Sub(now)
	}
	return 0
}

// fail records a rejection and returns the lockout it triggered, if any.
func (g *pinGuard) fail(now time.Time) time.Duration {
	g.failures++
	if g.failures < g.maxFailures {
		return 0
	}
	window := g.window
	for i := 0; i < g.lockouts && window < g.maxWindow; i++ {
		window *= 2
	}
	if window > g.maxWindow {
		window = g.maxWindow
	}
	g.failures = 0
	g.lockouts++
	g.until = now.Add(window)
	return window
}

func (g *pinGuard) reset() {
	g.failures = 0
	g.lockouts = 0
	g.until = time.Time{}
}
