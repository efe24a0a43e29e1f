package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"btcupdown/internal/config"
)

// unblockerPacing caps outbound requests through the residential-proxy and
// third-party-unblocker paths, which (unlike the direct path) have no
// documented per-category bucket and are billed per request.
const unblockerPacing = 5 // requests/sec

// ErrAntiBotBlock classifies a response as an anti-bot block: either a 403
// or a body that looks like an HTML challenge page rather than JSON.
var ErrAntiBotBlock = errors.New("anti-bot block detected")

// submissionPath is one candidate route for order submission.
type submissionPath struct {
	name    string
	client  *resty.Client
	breaker *gobreaker.CircuitBreaker[*resty.Response]
	// limiter paces this path's outbound requests; nil for paths (the
	// direct CLOB path) already governed by RateLimiter's per-category
	// buckets.
	limiter *rate.Limiter
	// wrap builds the outbound request for this path given the target
	// path/headers/body of the underlying CLOB request.
	wrap func(req *resty.Request, targetPath string, headers map[string]string, body []byte) *resty.Request
}

// SubmitPath drives the residential-proxy -> third-party-unblocker -> direct
// fall-through chain described for order submission, logging send, parse,
// and total durations for whichever path succeeds. Serialization and
// authentication happen in Client.SubmitOrder before Do is called and are
// not timed or logged.
type SubmitPath struct {
	baseURL string
	paths   []submissionPath
	logger  *slog.Logger
}

// NewSubmitPath builds the fall-through chain from config. Paths with no
// configured URL/token are skipped entirely rather than attempted and
// failing immediately.
func NewSubmitPath(cfg config.Config, auth *Auth, logger *slog.Logger) *SubmitPath {
	sp := &SubmitPath{baseURL: cfg.API.CLOBBaseURL, logger: logger}

	if cfg.Submit.ProxyURL != "" {
		proxyClient := resty.New().SetBaseURL(cfg.API.CLOBBaseURL).SetTransport(lowLatencyTransport()).SetTimeout(10 * time.Second)
		if err := proxyClient.SetProxy(cfg.Submit.ProxyURL); err != nil {
			logger.Warn("residential proxy misconfigured, skipping path", "error", err)
		} else {
			sp.paths = append(sp.paths, submissionPath{
				name:    "residential_proxy",
				client:  proxyClient,
				breaker: newBreaker("residential_proxy"),
				limiter: rate.NewLimiter(rate.Limit(unblockerPacing), unblockerPacing),
				wrap: func(req *resty.Request, targetPath string, headers map[string]string, body []byte) *resty.Request {
					return req.SetHeaders(headers).SetBody(body)
				},
			})
		}
	}

	if cfg.Submit.LambdaProxyURL != "" && cfg.Submit.ScrapelessToken != "" {
		unblockerClient := resty.New().SetBaseURL(cfg.Submit.LambdaProxyURL).SetTimeout(10 * time.Second)
		sp.paths = append(sp.paths, submissionPath{
			name:    "unblocker",
			client:  unblockerClient,
			breaker: newBreaker("unblocker"),
			limiter: rate.NewLimiter(rate.Limit(unblockerPacing), unblockerPacing),
			wrap: func(req *resty.Request, targetPath string, headers map[string]string, body []byte) *resty.Request {
				envelope := map[string]any{
					"url":     cfg.API.CLOBBaseURL + targetPath,
					"method":  "POST",
					"header":  headers,
					"body":    string(body),
					"country": "US",
				}
				return req.SetHeader("X-Vendor-Token", cfg.Submit.ScrapelessToken).SetBody(envelope)
			},
		})
	}

	directClient := resty.New().SetBaseURL(cfg.API.CLOBBaseURL).SetTransport(lowLatencyTransport()).SetTimeout(10 * time.Second)
	sp.paths = append(sp.paths, submissionPath{
		name:    "direct",
		client:  directClient,
		breaker: newBreaker("direct"),
		wrap: func(req *resty.Request, targetPath string, headers map[string]string, body []byte) *resty.Request {
			return req.SetHeaders(headers).SetBody(body)
		},
	})

	return sp
}

func newBreaker(name string) *gobreaker.CircuitBreaker[*resty.Response] {
	return gobreaker.NewCircuitBreaker[*resty.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}

type timing struct {
	Serialize  time.Duration
	Authenticate time.Duration
	Send       time.Duration
	Parse      time.Duration
	Total      time.Duration
}

// Do attempts targetPath on each configured submission path in priority
// order, falling through on any failed attempt: a rate-limit wait error, a
// transport error, an anti-bot block, a 5xx, an open breaker, a non-200
// status, or an undecodable body. It decodes the first successful response
// into out.
func (sp *SubmitPath) Do(ctx context.Context, targetPath string, headers map[string]string, body []byte, out any) error {
	start := time.Now()
	var lastErr error

	for _, p := range sp.paths {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				lastErr = fmt.Errorf("path %s: rate limit wait: %w", p.name, err)
				continue
			}
		}

		attemptStart := time.Now()
		resp, err := p.breaker.Execute(func() (*resty.Response, error) {
			req := p.client.R().SetContext(ctx)
			req = p.wrap(req, targetPath, headers, body)
			r, err := req.Post(pathOrEmpty(p.name, targetPath))
			if err != nil {
				return r, err
			}
			if isAntiBotBlock(r) {
				return r, ErrAntiBotBlock
			}
			if r.StatusCode() >= 500 {
				return r, fmt.Errorf("upstream 5xx: %d", r.StatusCode())
			}
			return r, nil
		})

		t := timing{Send: time.Since(attemptStart), Total: time.Since(start)}

		if err != nil {
			lastErr = err
			sp.logger.Warn("submission path failed, falling through", "path", p.name, "error", err)
			continue
		}

		parseStart := time.Now()
		if resp.StatusCode() != http.StatusOK {
			lastErr = fmt.Errorf("path %s: status %d: %s", p.name, resp.StatusCode(), resp.String())
			continue
		}
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			lastErr = fmt.Errorf("path %s: parse response: %w", p.name, err)
			continue
		}
		t.Parse = time.Since(parseStart)
		t.Total = time.Since(start)

		sp.logger.Info("order submitted",
			"path", p.name,
			"send_ms", t.Send.Milliseconds(),
			"parse_ms", t.Parse.Milliseconds(),
			"total_ms", t.Total.Milliseconds(),
		)
		return nil
	}

	if lastErr == nil {
		lastErr = errors.New("no submission paths configured")
	}
	return fmt.Errorf("all submission paths exhausted: %w", lastErr)
}

// pathOrEmpty returns the target path unchanged for paths that proxy the
// request literally; the unblocker path instead carries the target URL
// inside its JSON envelope and is posted to its own fixed endpoint.
func pathOrEmpty(name, targetPath string) string {
	if name == "unblocker" {
		return ""
	}
	return targetPath
}

// isAntiBotBlock classifies a response as a Cloudflare-style anti-bot block:
// HTTP 403, or a body that looks like an HTML challenge page rather than JSON.
func isAntiBotBlock(r *resty.Response) bool {
	if r.StatusCode() == http.StatusForbidden {
		return true
	}
	body := strings.TrimSpace(string(r.Body()))
	return strings.HasPrefix(body, "<!DOCTYPE") || strings.HasPrefix(body, "<html")
}
