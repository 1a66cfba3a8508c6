package telegram

import (
	"strings"
	"time"

	"github.com/m3rciful/otpbot/internal/config"
	"github.com/m3rciful/otpbot/internal/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// DefaultMiddlewares builds the shared global middleware chain.
func DefaultMiddlewares(cfg *config.Config, onLimited tele.HandlerFunc) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.Recover},
	}

	if cfg != nil {
		interval := time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond
		if interval > 0 {
			ex := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
			for _, t := range cfg.RateLimit.ExcludeUpdates {
				ex[strings.ToLower(t)] = struct{}{}
			}
			mws = append(mws, Middleware{
				Name: "rate_limit",
				Use: middleware.RateLimit(middleware.RateLimitOptions{
					Interval:  interval,
					Exclude:   ex,
					OnLimited: onLimited,
				}),
			})
		}
	}

	mws = append(mws,
		Middleware{Name: "logging", Use: middleware.Logging},
		Middleware{Name: "metrics", Use: middleware.MessageMetrics},
	)

	return mws
}
