package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"signal-sweep-lab/internal/domain"
)

// DefaultStreamURL is the USD-M futures websocket endpoint.
const DefaultStreamURL = "wss://fstream.binance.com/ws"

// StreamConfig configures websocket stream behavior.
type StreamConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is the maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is the timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultStreamConfig returns default stream configuration.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       90 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// ClosedCandle is one finished bar delivered by the stream.
type ClosedCandle struct {
	Symbol string
	Candle domain.Candle
}

// KlineStream follows closed candles for a set of instruments over one
// combined websocket connection, reconnecting with exponential backoff.
type KlineStream struct {
	endpoint string
	config   StreamConfig

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	out  chan ClosedCandle
	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

// NewKlineStream connects and starts delivering closed candles for the
// given symbols at the given interval. An empty endpoint selects the
// default. Candles arrive on the channel returned by C.
func NewKlineStream(ctx context.Context, endpoint string, symbols []string, interval string, config *StreamConfig) (*KlineStream, error) {
	if endpoint == "" {
		endpoint = DefaultStreamURL
	}
	cfg := DefaultStreamConfig()
	if config != nil {
		cfg = *config
	}

	streams := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		streams = append(streams, fmt.Sprintf("%s@kline_%s", strings.ToLower(sym), interval))
	}

	s := &KlineStream{
		endpoint: endpoint + "/" + strings.Join(streams, "/"),
		config:   cfg,
		out:      make(chan ClosedCandle, 1024),
		done:     make(chan struct{}),
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go s.readLoop()

	s.wg.Add(1)
	go s.pingLoop()

	return s, nil
}

// C returns the closed-candle channel. It is closed on Close.
func (s *KlineStream) C() <-chan ClosedCandle {
	return s.out
}

// Close closes the websocket connection and the candle channel.
func (s *KlineStream) Close() error {
	if s.closed.Swap(true) {
		return nil // Already closed
	}

	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	close(s.out)
	return nil
}

// connect establishes the websocket connection.
func (s *KlineStream) connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	s.conn = conn
	return nil
}

// readLoop reads messages and dispatches closed candles.
func (s *KlineStream) readLoop() {
	defer s.wg.Done()

	reconnectDelay := s.config.ReconnectDelay

	for !s.closed.Load() {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			select {
			case <-s.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}

			if !s.reconnecting.Swap(true) {
				go s.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > s.config.MaxReconnectDelay {
				reconnectDelay = s.config.MaxReconnectDelay
			}

			select {
			case <-s.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		// Reset delay on successful read
		reconnectDelay = s.config.ReconnectDelay

		s.handleMessage(message)
	}
}

// reconnect redials after a delay. Unlike a subscription protocol, the
// stream list is part of the URL, so reconnecting is enough.
func (s *KlineStream) reconnect(delay time.Duration) {
	defer s.reconnecting.Store(false)

	if s.closed.Load() {
		return
	}

	select {
	case <-s.done:
		return
	case <-time.After(delay):
	}

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Failure here is retried on the next read error.
	_ = s.connect(ctx)
}

// handleMessage parses a kline event and forwards the bar once closed.
func (s *KlineStream) handleMessage(message []byte) {
	candle, symbol, ok := parseKlineEvent(message)
	if !ok {
		return
	}

	// Block until we can send - never drop closed candles.
	select {
	case s.out <- ClosedCandle{Symbol: symbol, Candle: candle}:
	case <-s.done:
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (s *KlineStream) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			if s.conn != nil {
				s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
				if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Connection might be dead, reader will handle reconnect
				}
			}
			s.connMu.Unlock()
		}
	}
}

// Websocket message types

// EventTime and CloseTime must be declared explicitly: encoding/json
// matches keys case-insensitively, so without them "E" would land on
// the "e" field and "T" on "t".
type klineEvent struct {
	EventType string       `json:"e"`
	EventTime int64        `json:"E"`
	Symbol    string       `json:"s"`
	Kline     klinePayload `json:"k"`
}

type klinePayload struct {
	StartTime int64  `json:"t"`
	CloseTime int64  `json:"T"`
	Open      string `json:"o"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Close     string `json:"c"`
	Volume    string `json:"v"`
	Closed    bool   `json:"x"`
}

// parseKlineEvent decodes a stream message. Only closed bars are
// reported; in-progress updates are dropped.
func parseKlineEvent(message []byte) (domain.Candle, string, bool) {
	var event klineEvent
	if err := json.Unmarshal(message, &event); err != nil {
		return domain.Candle{}, "", false
	}
	if event.EventType != "kline" || !event.Kline.Closed {
		return domain.Candle{}, "", false
	}

	c := domain.Candle{OpenTime: event.Kline.StartTime}
	fields := []struct {
		dst *float64
		raw string
	}{
		{&c.Open, event.Kline.Open},
		{&c.High, event.Kline.High},
		{&c.Low, event.Kline.Low},
		{&c.Close, event.Kline.Close},
		{&c.Volume, event.Kline.Volume},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			return domain.Candle{}, "", false
		}
		*f.dst = v
	}

	return c, event.Symbol, true
}
