package feed

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// ParseBinanceTicker extracts "c" (last price) from a Binance miniTicker /
// ticker stream frame.
func ParseBinanceTicker(frame []byte) (decimal.Decimal, error) {
	var payload struct {
		Data struct {
			ClosePrice string `json:"c"`
		} `json:"data"`
		ClosePrice string `json:"c"`
	}
	if err := json.Unmarshal(frame, &payload); err != nil {
		return decimal.Zero, err
	}
	s := payload.ClosePrice
	if s == "" {
		s = payload.Data.ClosePrice
	}
	if s == "" {
		return decimal.Zero, fmt.Errorf("no close price in frame")
	}
	return decimal.NewFromString(s)
}

// ParseCoinbase24hrTicker extracts "price" from a Coinbase ticker channel
// frame.
func ParseCoinbase24hrTicker(frame []byte) (decimal.Decimal, error) {
	var payload struct {
		Type  string `json:"type"`
		Price string `json:"price"`
	}
	if err := json.Unmarshal(frame, &payload); err != nil {
		return decimal.Zero, err
	}
	if payload.Type != "ticker" || payload.Price == "" {
		return decimal.Zero, fmt.Errorf("not a ticker frame")
	}
	return decimal.NewFromString(payload.Price)
}

// ParseKrakenTicker extracts the last trade price from Kraken's array-framed
// ticker payload: [channelID, {"c":["price","lot volume"]}, "ticker", "pair"].
func ParseKrakenTicker(frame []byte) (decimal.Decimal, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(frame, &arr); err != nil {
		return decimal.Zero, err
	}
	if len(arr) < 2 {
		return decimal.Zero, fmt.Errorf("short kraken frame")
	}

	var body struct {
		C []string `json:"c"`
	}
	if err := json.Unmarshal(arr[1], &body); err != nil {
		return decimal.Zero, err
	}
	if len(body.C) == 0 {
		return decimal.Zero, fmt.Errorf("no last-trade field in kraken frame")
	}
	return decimal.NewFromString(body.C[0])
}
