package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"megatrade-web/models"
	"megatrade-web/utils"
)

type RateLimiter struct {
	client  *redis.Client
	configs map[string]RateLimitConfig
	exempt  map[string]bool
	now     func() time.Time
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Message  string
}

var defaultConfigs = map[string]RateLimitConfig{
	"/subscriptions/sponsor": {
		Requests: 5,
		Window:   time.Minute * 15,
		Message:  "Too many sponsor code attempts. Please try again in 15 minutes.",
	},
	"/subscriptions/payment/approve": {
		Requests: 10,
		Window:   time.Minute * 10,
		Message:  "Too many payment confirmations. Please wait a few minutes.",
	},
	"/admin/subscriptions": {
		Requests: 20,
		Window:   time.Minute * 5,
		Message:  "Too many subscription submissions. Please wait 5 minutes.",
	},
	"/internal/session-token": {
		Requests: 100,
		Window:   time.Minute,
		Message:  "Internal API rate limit exceeded.",
	},
	"default": {
		Requests: 60,
		Window:   time.Minute,
		Message:  "Rate limit exceeded. Please slow down your requests.",
	},
}

// exemptPaths never reach the platform API. The admin form script revalidates
// on every keystroke, so counting those calls would lock the form up.
var exemptPaths = map[string]bool{
	"/admin/subscriptions/validate": true,
}

const rateLimitScript = `
	local key = KEYS[1]
	local window_start = tonumber(ARGV[1])
	local limit = tonumber(ARGV[2])
	local score = tonumber(ARGV[3])
	local member = ARGV[4]
	local ttl = tonumber(ARGV[5])

	redis.call('ZREMRANGEBYSCORE', key, 0, window_start - 1)

	local current_count = redis.call('ZCARD', key)

	if current_count < limit then
		redis.call('ZADD', key, score, member)
		redis.call('EXPIRE', key, ttl)
		return {1, limit - current_count - 1}
	end
	return {0, 0}
`

func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client, configs: defaultConfigs, exempt: exemptPaths, now: time.Now}
}

func (rl *RateLimiter) RateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions || rl.exempt[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		config := rl.configFor(r.URL.Path)
		key := rl.key(r)

		allowed, remaining, resetTime, err := rl.checkRateLimit(r.Context(), key, config)
		if err != nil {
			// Redis trouble must not take the site down with it.
			log.Printf("Rate limit check error: %v", err)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.Requests))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

		if !allowed {
			log.WithField("key", key).Printf("Rate limit exceeded for %s", r.URL.Path)
			w.Header().Set("Retry-After", strconv.FormatInt(int64(resetTime.Sub(rl.now()).Seconds())+1, 10))
			utils.SendJSON(w, http.StatusTooManyRequests, models.APIResponse{
				Status:  "error",
				Message: config.Message,
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) configFor(path string) RateLimitConfig {
	if config, ok := rl.configs[path]; ok {
		return config
	}

	if strings.HasPrefix(path, "/internal/") {
		return rl.configs["/internal/session-token"]
	}

	return rl.configs["default"]
}

// key buckets signed-in callers by identity and everyone else by address.
func (rl *RateLimiter) key(r *http.Request) string {
	endpoint := r.URL.Path

	if strings.HasPrefix(endpoint, "/internal/") {
		if secret := r.Header.Get("X-Internal-Secret"); len(secret) > 10 {
			return fmt.Sprintf("rate_limit:internal:%x", secret[:8])
		}
	}

	if identity := IdentityFromContext(r.Context()); identity != nil {
		who := identity.UserID
		if identity.IsAdmin() {
			who = "admin:" + identity.AdminID
		}
		return fmt.Sprintf("rate_limit:user:%s:%s", who, endpoint)
	}

	return fmt.Sprintf("rate_limit:ip:%s:%s", utils.ClientIP(r), endpoint)
}

func (rl *RateLimiter) checkRateLimit(ctx context.Context, key string, config RateLimitConfig) (allowed bool, remaining int, resetTime time.Time, err error) {
	now := rl.now()
	windowStart := now.Truncate(config.Window)
	windowEnd := windowStart.Add(config.Window)

	result, err := rl.client.Eval(ctx, rateLimitScript, []string{key},
		windowStart.Unix(), config.Requests, now.Unix(), uuid.New().String(), int64(config.Window.Seconds())+60).Result()
	if err != nil {
		return false, 0, time.Time{}, err
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		return false, 0, time.Time{}, fmt.Errorf("unexpected redis result format")
	}

	allowedInt, ok1 := values[0].(int64)
	remainingInt, ok2 := values[1].(int64)
	if !ok1 || !ok2 {
		return false, 0, time.Time{}, fmt.Errorf("failed to parse redis result")
	}

	return allowedInt == 1, int(remainingInt), windowEnd, nil
}
