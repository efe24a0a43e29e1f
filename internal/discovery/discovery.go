// Package discovery resolves the current tradable BTC 15-minute up/down
// market by polling the Gamma-style events endpoint, generalizing the
// teacher's broad multi-market Scanner down to a single-market slug
// resolution loop.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"btcupdown/internal/config"
	"btcupdown/pkg/types"
)

const (
	windowSeconds  = 900 // 15 minutes
	tooLateFloor   = 13 * time.Minute
	tooLateCeiling = 15 * time.Minute
	pollInterval   = 30 * time.Second
)

// GammaEvent is the JSON shape of one event/market entry from the Gamma API.
type GammaEvent struct {
	Slug         string `json:"slug"`
	ConditionID  string `json:"conditionId"`
	Title        string `json:"question"`
	Active       bool   `json:"active"`
	Closed       bool   `json:"closed"`
	EndDate      string `json:"endDate"`
	ClobTokenIds string `json:"clobTokenIds"`
	Outcomes     string `json:"outcomes"`
	NegRisk      bool   `json:"negRisk"`
	TickSize     string `json:"orderPriceMinTickSize"`
	Tokens       []struct {
		TokenID string `json:"token_id"`
		Outcome string `json:"outcome"`
	} `json:"tokens"`
}

// Discoverer polls for the current tradable BTC up/down market.
type Discoverer struct {
	http   *resty.Client
	logger *slog.Logger
}

// New creates a market discoverer pointed at the Gamma API.
func New(cfg config.Config, logger *slog.Logger) *Discoverer {
	client := resty.New().
		SetBaseURL(cfg.API.GammaBaseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second)

	return &Discoverer{http: client, logger: logger.With("component", "discovery")}
}

// Find polls every 30s until a tradable market is found or ctx is cancelled.
func (d *Discoverer) Find(ctx context.Context) (*types.Market, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		m, err := d.attempt(ctx)
		if err == nil && m != nil {
			return m, nil
		}
		if err != nil {
			d.logger.Warn("market discovery attempt failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (d *Discoverer) attempt(ctx context.Context) (*types.Market, error) {
	now := time.Now().UTC()
	currentSlug := slugFor(now)
	nextSlug := slugFor(now.Add(windowSeconds * time.Second))

	for _, slug := range []string{currentSlug, nextSlug} {
		evt, err := d.bySlug(ctx, slug)
		if err != nil {
			continue
		}
		if evt != nil {
			if m := toMarket(*evt); m != nil && isTradable(*m, now) {
				return m, nil
			}
		}
	}

	evt, err := d.broadSearch(ctx)
	if err != nil {
		return nil, err
	}
	if evt == nil {
		return nil, nil
	}
	m := toMarket(*evt)
	if m == nil || !isTradable(*m, now) {
		return nil, nil
	}
	return m, nil
}

func slugFor(t time.Time) string {
	ts := t.Unix() / windowSeconds * windowSeconds
	return fmt.Sprintf("btc-updown-15m-%d", ts)
}

func (d *Discoverer) bySlug(ctx context.Context, slug string) (*GammaEvent, error) {
	var events []GammaEvent
	resp, err := d.http.R().
		SetContext(ctx).
		SetQueryParam("slug", slug).
		SetResult(&events).
		Get("/events")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("events by slug: status %d", resp.StatusCode())
	}
	if len(events) == 0 {
		return nil, nil
	}
	return &events[0], nil
}

func (d *Discoverer) broadSearch(ctx context.Context) (*GammaEvent, error) {
	var events []GammaEvent
	resp, err := d.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"slug_contains": "btc-updown-15m",
			"active":        "true",
			"closed":        "false",
		}).
		SetResult(&events).
		Get("/events")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("broad search: status %d", resp.StatusCode())
	}

	now := time.Now().UTC()
	for i := range events {
		m := toMarket(events[i])
		if m != nil && m.EndTime.After(now) {
			return &events[i], nil
		}
	}
	return nil, nil
}

// ByCondition resolves a market's token IDs, tick size, and neg-risk flag
// from its condition ID, for the order-flow executor: its signals name
// whatever market the triggering on-chain trade belongs to, not necessarily
// the BTC market a session runner is currently trading.
func (d *Discoverer) ByCondition(ctx context.Context, conditionID string) (*types.Market, error) {
	var events []GammaEvent
	resp, err := d.http.R().
		SetContext(ctx).
		SetQueryParam("condition_ids", conditionID).
		SetResult(&events).
		Get("/events")
	if err != nil {
		return nil, fmt.Errorf("events by condition: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("events by condition: status %d", resp.StatusCode())
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("no market found for condition %s", conditionID)
	}
	m := toMarket(events[0])
	if m == nil {
		return nil, fmt.Errorf("condition %s: could not extract tokens", conditionID)
	}
	return m, nil
}

// isTradable enforces the [13min, 15min] remaining-time window.
func isTradable(m types.Market, now time.Time) bool {
	remaining := m.RemainingAt(now)
	return remaining >= tooLateFloor && remaining <= tooLateCeiling
}

func toMarket(evt GammaEvent) *types.Market {
	upToken, downToken := extractTokens(evt)
	if upToken == "" || downToken == "" {
		return nil
	}

	endTime := endTimeFromSlugOrDate(evt.Slug, evt.EndDate)
	if endTime.IsZero() {
		return nil
	}

	tick := types.TickSize(evt.TickSize)
	if tick == "" {
		tick = types.Tick01
	}

	return &types.Market{
		EventSlug:   evt.Slug,
		ConditionID: evt.ConditionID,
		Title:       evt.Title,
		UpTokenID:   upToken,
		DownTokenID: downToken,
		TickSize:    tick,
		NegRisk:     evt.NegRisk,
		EndTime:     endTime,
	}
}

// extractTokens reads UP/DOWN token IDs from the event's token list, falling
// back to a parallel decode of clobTokenIds/outcomes JSON-array strings.
func extractTokens(evt GammaEvent) (up, down string) {
	for _, tok := range evt.Tokens {
		switch strings.ToUpper(tok.Outcome) {
		case "UP", "YES":
			up = tok.TokenID
		case "DOWN", "NO":
			down = tok.TokenID
		}
	}
	if up != "" && down != "" {
		return up, down
	}

	var tokenIDs, outcomes []string
	if evt.ClobTokenIds != "" {
		_ = json.Unmarshal([]byte(evt.ClobTokenIds), &tokenIDs)
	}
	if evt.Outcomes != "" {
		_ = json.Unmarshal([]byte(evt.Outcomes), &outcomes)
	}
	for i, o := range outcomes {
		if i >= len(tokenIDs) {
			break
		}
		switch strings.ToUpper(o) {
		case "UP", "YES":
			up = tokenIDs[i]
		case "DOWN", "NO":
			down = tokenIDs[i]
		}
	}
	return up, down
}

// endTimeFromSlugOrDate recovers the market end time from the slug's
// embedded timestamp (+900s), falling back to the event's endDate field.
func endTimeFromSlugOrDate(slug, endDate string) time.Time {
	parts := strings.Split(slug, "-")
	if len(parts) > 0 {
		if ts, err := strconv.ParseInt(parts[len(parts)-1], 10, 64); err == nil {
			return time.Unix(ts+windowSeconds, 0).UTC()
		}
	}
	if endDate != "" {
		if t, err := time.Parse(time.RFC3339, endDate); err == nil {
			return t
		}
	}
	return time.Time{}
}

