package orderbook

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"btcupdown/pkg/types"
)

const (
	keepAliveInterval  = 10 * time.Second
	wsReadTimeout      = 30 * time.Second
	wsWriteTimeout     = 5 * time.Second
	maxConsecutiveFail = 10
	coolDown           = 30 * time.Second
)

// Subscriber holds the market-data WebSocket connection for a whitelist of
// asset IDs and dispatches inbound frames (snapshot, delta, trade fill) into
// a Manager.
type Subscriber struct {
	url     string
	assets  []string
	manager *Manager
	logger  *slog.Logger

	connMu sync.Mutex
	conn   *websocket.Conn
}

// NewSubscriber creates a market-data subscriber for the given asset IDs.
func NewSubscriber(wsURL string, assets []string, manager *Manager, logger *slog.Logger) *Subscriber {
	return &Subscriber{
		url:     wsURL,
		assets:  assets,
		manager: manager,
		logger:  logger.With("component", "orderbook_ws"),
	}
}

// Run connects and maintains the connection with bounded exponential
// backoff, sleeping 30s after 10 consecutive reconnects to avoid a ban.
func (s *Subscriber) Run(ctx context.Context) error {
	fails := 0
	backoff := time.Second

	for {
		err := s.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		fails++
		s.logger.Warn("orderbook ws disconnected", "error", err, "consecutive_failures", fails)

		wait := backoff
		if fails >= maxConsecutiveFail {
			wait = coolDown
			fails = 0
		} else {
			backoff *= 2
			if backoff > coolDown {
				backoff = coolDown
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (s *Subscriber) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
	defer func() {
		s.connMu.Lock()
		conn.Close()
		s.conn = nil
		s.connMu.Unlock()
	}()

	sub := types.WSSubscribeMsg{Type: "market", AssetIDs: s.assets}
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(sub); err != nil {
		return err
	}

	pingCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.keepAlive(pingCtx)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		s.dispatch(msg)
	}
}

func (s *Subscriber) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.connMu.Lock()
			conn := s.conn
			s.connMu.Unlock()
			if conn == nil {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, []byte("PING")); err != nil {
				return
			}
		}
	}
}

func (s *Subscriber) dispatch(data []byte) {
	var probe struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return
	}

	switch probe.EventType {
	case "book":
		var evt types.WSBookEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			s.logger.Error("unmarshal book event", "error", err)
			return
		}
		s.manager.Book(evt.AssetID).ApplySnapshot(evt.Buys, evt.Sells, evt.Hash)

	case "price_change":
		var evt types.WSPriceChangeEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			s.logger.Error("unmarshal price_change event", "error", err)
			return
		}
		for _, pc := range evt.PriceChanges {
			isBid := pc.Side == "BUY"
			s.manager.Book(pc.AssetID).UpdateLevel(isBid, pc.Price, pc.Size)
		}

	default:
		// trade fills and other informational events are consumed by the
		// user-channel feed (internal/exchange), not the market mirror.
	}
}
