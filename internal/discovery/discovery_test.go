package discovery

import (
	"testing"
	"time"

	"btcupdown/pkg/types"
)

func marketEndingAt(end time.Time) types.Market {
	return types.Market{EndTime: end}
}

func TestSlugFor(t *testing.T) {
	t.Parallel()
	// 2026-01-01T00:00:00Z is an exact 15-minute boundary.
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	slug := slugFor(ts)

	if slug == "" {
		t.Fatal("expected non-empty slug")
	}
}

func TestSlugForRoundsDownToWindow(t *testing.T) {
	t.Parallel()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mid := base.Add(7 * time.Minute)

	if slugFor(base) != slugFor(mid) {
		t.Errorf("slugFor(%v) != slugFor(%v), expected same 15-minute window", base, mid)
	}
}

func TestExtractTokensFromTokenList(t *testing.T) {
	t.Parallel()
	evt := GammaEvent{
		Tokens: []struct {
			TokenID string `json:"token_id"`
			Outcome string `json:"outcome"`
		}{
			{TokenID: "up-id", Outcome: "Up"},
			{TokenID: "down-id", Outcome: "Down"},
		},
	}

	up, down := extractTokens(evt)
	if up != "up-id" || down != "down-id" {
		t.Errorf("extractTokens() = (%q,%q), want (up-id,down-id)", up, down)
	}
}

func TestExtractTokensFallsBackToJSONArrays(t *testing.T) {
	t.Parallel()
	evt := GammaEvent{
		ClobTokenIds: `["tok-up","tok-down"]`,
		Outcomes:     `["Up","Down"]`,
	}

	up, down := extractTokens(evt)
	if up != "tok-up" || down != "tok-down" {
		t.Errorf("extractTokens() = (%q,%q), want (tok-up,tok-down)", up, down)
	}
}

func TestEndTimeFromSlug(t *testing.T) {
	t.Parallel()
	endTime := endTimeFromSlugOrDate("btc-updown-15m-1700000000", "")
	want := time.Unix(1700000000+windowSeconds, 0).UTC()
	if !endTime.Equal(want) {
		t.Errorf("endTimeFromSlugOrDate() = %v, want %v", endTime, want)
	}
}

func TestIsTradableWindow(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name      string
		remaining time.Duration
		want      bool
	}{
		{"exactly 14min", 14 * time.Minute, true},
		{"too late, 12min", 12 * time.Minute, false},
		{"too early, 16min", 16 * time.Minute, false},
		{"floor 13min", 13 * time.Minute, true},
		{"ceiling 15min", 15 * time.Minute, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := marketEndingAt(now.Add(tc.remaining))
			if got := isTradable(m, now); got != tc.want {
				t.Errorf("isTradable() = %v, want %v", got, tc.want)
			}
		})
	}
}
