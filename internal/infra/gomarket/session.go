package gomarket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"trade_sim/internal/domain"
	"trade_sim/internal/infra"

	"github.com/gorilla/websocket"
)

var errNoConn = errors.New("no conn")

// SessionConfig describes one subscription to the L2 relay.
type SessionConfig struct {
	URL              string // Full stream URL, e.g. .../l2-orderbook/okx/BTC-USDT-SWAP
	Exchange         string
	Symbol           string
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	PingInterval     time.Duration // Zero disables pings
	ReadLimit        int64
	Backoff          infra.Backoff
}

// Session owns the persistent connection for a single (exchange, symbol)
// stream. It decodes every message and hands usable ticks to the callback
// in arrival order; it never runs the callback concurrently with itself.
type Session struct {
	cfg     SessionConfig
	decoder *Decoder
	metrics *infra.Metrics

	mu        sync.RWMutex
	conn      *websocket.Conn
	writeMu   sync.Mutex
	connected atomic.Bool

	seq uint64 // Owned by the Run goroutine
}

// NewSession validates cfg and creates a session. It does not dial; Run does.
func NewSession(cfg SessionConfig, metrics *infra.Metrics) (*Session, error) {
	if !strings.HasPrefix(cfg.URL, "ws://") && !strings.HasPrefix(cfg.URL, "wss://") {
		return nil, &domain.ConfigError{Field: "stream.url", Err: fmt.Errorf("invalid WS URL: %q", cfg.URL)}
	}
	if cfg.Exchange == "" {
		return nil, &domain.ConfigError{Field: "stream.exchange", Err: errors.New("exchange is required")}
	}
	if cfg.Symbol == "" {
		return nil, &domain.ConfigError{Field: "stream.symbol", Err: errors.New("symbol is required")}
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = defaultReadLimit
	}
	if cfg.Backoff.Base <= 0 {
		cfg.Backoff = infra.DefaultBackoff()
	}
	if metrics == nil {
		metrics = infra.GlobalMetrics
	}

	return &Session{
		cfg:     cfg,
		decoder: NewDecoder(cfg.Exchange, cfg.Symbol),
		metrics: metrics,
	}, nil
}

// IsConnected reports whether a connection is currently open.
func (s *Session) IsConnected() bool {
	return s.connected.Load()
}

// Run connects and reads until ctx is done, reconnecting with exponential
// backoff after every drop. It returns nil on shutdown and a non-retriable
// *domain.NetworkError when the venue rejects the subscription outright.
func (s *Session) Run(ctx context.Context, onTick func(domain.Tick)) error {
	retry := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		err := s.connect(ctx)
		if err == nil {
			retry = 0 // Reset on successful connect
			err = s.readLoop(ctx, onTick)
			if ctx.Err() != nil {
				slog.Info("Stream session stopped", slog.String("symbol", s.cfg.Symbol))
				return nil
			}
			slog.Warn("Stream disconnected", slog.String("symbol", s.cfg.Symbol), slog.Any("error", err))
		} else if ctx.Err() != nil {
			return nil
		}

		if !domain.IsRetriable(err) {
			slog.Error("Stream failed permanently", slog.String("url", s.cfg.URL), slog.Any("error", err))
			return err
		}

		delay := s.cfg.Backoff.Duration(retry)
		retry++
		s.metrics.RecordReconnect()
		slog.Warn("Stream reconnecting",
			slog.String("symbol", s.cfg.Symbol),
			slog.Int("retry", retry),
			slog.Duration("delay", delay),
			slog.Any("error", err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (s *Session) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: s.cfg.HandshakeTimeout}
	header := make(http.Header)
	header.Set("User-Agent", infra.DefaultUserAgent)

	conn, resp, err := dialer.DialContext(ctx, s.cfg.URL, header)
	if err != nil {
		if resp != nil && isPermanentStatus(resp.StatusCode) {
			return domain.NewFatalNetworkError("dial", fmt.Errorf("%w (HTTP %d)", err, resp.StatusCode))
		}
		return domain.NewNetworkError("dial", err)
	}

	conn.SetReadLimit(s.cfg.ReadLimit)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	})

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	s.connected.Store(true)
	s.metrics.IncrementConnections()

	slog.Info("Stream connected", slog.String("url", s.cfg.URL))
	return nil
}

// isPermanentStatus reports handshake statuses that retrying cannot fix.
func isPermanentStatus(code int) bool {
	switch code {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}

func (s *Session) readLoop(ctx context.Context, onTick func(domain.Tick)) error {
	// Unblock ReadMessage on shutdown.
	stop := context.AfterFunc(ctx, s.closeGracefully)
	defer stop()
	defer s.closeConnection()

	var wg sync.WaitGroup
	pingCtx, cancelPing := context.WithCancel(ctx)
	defer func() {
		cancelPing()
		wg.Wait()
	}()
	if s.cfg.PingInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.pingLoop(pingCtx)
		}()
	}

	for {
		s.mu.RLock()
		c := s.conn
		s.mu.RUnlock()
		if c == nil {
			return domain.NewNetworkError("read", errNoConn)
		}

		c.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		_, msg, err := c.ReadMessage()
		if err != nil {
			return domain.NewNetworkError("read", err)
		}

		s.handleMessage(msg, onTick)
	}
}

func (s *Session) handleMessage(msg []byte, onTick func(domain.Tick)) {
	tick, err := s.decoder.Decode(msg)
	if err != nil {
		if domain.IsDecodeKind(err, domain.SubscriptionMismatch) {
			s.metrics.RecordMismatch()
			slog.Warn("Received unexpected message or symbol", slog.Any("error", err))
		} else {
			s.metrics.RecordMalformed()
			slog.Warn("Dropping malformed message", slog.Any("error", err), slog.Int("bytes", len(msg)))
		}
		return
	}

	if !tick.Usable() {
		s.metrics.RecordEmptyBook()
		slog.Warn("Dropping tick with empty book side",
			slog.Int("bids", len(tick.Bids)),
			slog.Int("asks", len(tick.Asks)))
		return
	}

	s.seq++
	tick.Seq = s.seq
	tick.ReceivedAt = time.Now()
	s.metrics.RecordTick()

	onTick(tick)
}

func (s *Session) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.threadSafeControl(websocket.PingMessage, nil); err != nil {
				slog.Warn("Stream ping failed", slog.Any("error", err))
				s.closeConnection()
				return
			}
		}
	}
}

func (s *Session) threadSafeControl(msgType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.conn == nil {
		return errNoConn
	}
	return s.conn.WriteControl(msgType, data, time.Now().Add(writeTimeout))
}

// closeGracefully sends a close frame before tearing the connection down.
func (s *Session) closeGracefully() {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown")
	s.threadSafeControl(websocket.CloseMessage, msg)
	s.closeConnection()
}

func (s *Session) closeConnection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
		s.connected.Store(false)
		s.metrics.DecrementConnections()
	}
}
