package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
)

// NewGoogleTokenSource returns a token source for Google Workspace APIs.
// With a stored OAuth token file it refreshes that token using the client
// credentials file; otherwise application default credentials are used.
func NewGoogleTokenSource(ctx context.Context, credentialsFile, tokenFile string, scopes ...string) (oauth2.TokenSource, error) {
	if tokenFile == "" {
		ts, err := google.DefaultTokenSource(ctx, scopes...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to find default google credentials")
		}
		return ts, nil
	}

	if credentialsFile == "" {
		return nil, goerr.New("google-credentials is required when google-token is set")
	}

	credJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read google credentials", goerr.V("path", credentialsFile))
	}
	cfg, err := google.ConfigFromJSON(credJSON, scopes...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse google credentials", goerr.V("path", credentialsFile))
	}

	tokenJSON, err := os.ReadFile(tokenFile)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read google token", goerr.V("path", tokenFile))
	}
	var token oauth2.Token
	if err := json.Unmarshal(tokenJSON, &token); err != nil {
		return nil, goerr.Wrap(err, "failed to parse google token", goerr.V("path", tokenFile))
	}

	return cfg.TokenSource(ctx, &token), nil
}

// GoogleService identifies a Google API for rate limiting
type GoogleService string

const (
	GoogleCalendar GoogleService = "calendar"
	GoogleGmail    GoogleService = "gmail"
	GoogleSheets   GoogleService = "sheets"
	GoogleDrive    GoogleService = "drive"
	GoogleDocs     GoogleService = "docs"
)

type rateLimitConfig struct {
	perSecond float64
	burst     int
}

// Conservative defaults well below per-user quotas
var defaultRateLimits = map[GoogleService]rateLimitConfig{
	GoogleCalendar: {perSecond: 5, burst: 10},
	GoogleGmail:    {perSecond: 2, burst: 5},
	GoogleSheets:   {perSecond: 1, burst: 5},
	GoogleDrive:    {perSecond: 8, burst: 10},
	GoogleDocs:     {perSecond: 1, burst: 5},
}

// RateLimiter is a token bucket with a backoff window set by 429 responses
type RateLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
}

func NewRateLimiter(service GoogleService) *RateLimiter {
	cfg, ok := defaultRateLimits[service]
	if !ok {
		cfg = rateLimitConfig{perSecond: 5, burst: 10}
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.perSecond), cfg.burst),
	}
}

// Wait blocks until a request may be sent
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if d := time.Until(retryAt); d > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
	}

	return r.limiter.Wait(ctx)
}

// Observe inspects an API error and opens a backoff window on 429
func (r *RateLimiter) Observe(err error) {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) || gerr.Code != http.StatusTooManyRequests {
		return
	}

	retryAfter := 60 * time.Second
	if v := gerr.Header.Get("Retry-After"); v != "" {
		if sec, perr := strconv.Atoi(v); perr == nil && sec > 0 {
			retryAfter = time.Duration(sec) * time.Second
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.retryAt = time.Now().Add(retryAfter)
}

// IsGoogleNotFound reports whether err is a 404 from a Google API
func IsGoogleNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}
