package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dexflow/dexbot/internal/domain"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	BinanceBaseURL = "https://api.binance.com"
	BinanceWSURL   = "wss://stream.binance.com:9443/ws"

	// A ws price older than this falls back to REST.
	wsPriceMaxAge = 10 * time.Second
)

type wsPrice struct {
	price float64
	time  time.Time
}

// BinanceClient fetches OHLCV candles over REST and keeps a live last-price
// cache fed by the miniTicker websocket stream. REST calls are rate-limited
// to stay under the exchange request weight.
type BinanceClient struct {
	baseURL string
	wsURL   string
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger

	wsConn     *websocket.Conn
	subscribed map[string]bool
	lastPrice  map[string]wsPrice
	subID      int
	mu         sync.Mutex

	timeNow func() time.Time // for testing
}

func NewBinanceClient(baseURL, wsURL string, logger *zap.Logger) *BinanceClient {
	if baseURL == "" {
		baseURL = BinanceBaseURL
	}
	if wsURL == "" {
		wsURL = BinanceWSURL
	}
	return &BinanceClient{
		baseURL:    baseURL,
		wsURL:      wsURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(10), 20),
		logger:     logger,
		subscribed: make(map[string]bool),
		lastPrice:  make(map[string]wsPrice),
		timeNow:    time.Now,
	}
}

// toSymbol converts "ETH/USDC" to the exchange symbol "ETHUSDT". USDC pairs
// are quoted against USDT, which has far deeper kline coverage.
func toSymbol(pair string) string {
	s := strings.ReplaceAll(pair, "/", "")
	return strings.ReplaceAll(s, "USDC", "USDT")
}

func (b *BinanceClient) get(ctx context.Context, path string, out interface{}) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("binance API error %d: %s", resp.StatusCode, string(body))
	}

	return json.Unmarshal(body, out)
}

// GetCandles returns up to limit klines for the pair, oldest first.
func (b *BinanceClient) GetCandles(ctx context.Context, pair, interval string, limit int) ([]domain.Candle, error) {
	symbol := toSymbol(pair)
	path := fmt.Sprintf("/api/v3/klines?symbol=%s&interval=%s&limit=%d", symbol, interval, limit)

	// Kline rows are mixed-type arrays: open time is a number, prices and
	// volume are strings.
	var rows [][]interface{}
	if err := b.get(ctx, path, &rows); err != nil {
		return nil, fmt.Errorf("klines %s: %w", symbol, err)
	}

	candles := make([]domain.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}

		ts, ok := row[0].(float64)
		if !ok {
			continue
		}

		open := parseField(row[1])
		high := parseField(row[2])
		low := parseField(row[3])
		closePrice := parseField(row[4])
		volume := parseField(row[5])

		candles = append(candles, domain.Candle{
			Time:   int64(ts) / 1000,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: volume,
		})
	}

	return candles, nil
}

func parseField(v interface{}) float64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

// GetCurrentPrice serves from the websocket cache when fresh and falls back
// to the REST ticker otherwise.
func (b *BinanceClient) GetCurrentPrice(ctx context.Context, pair string) (float64, error) {
	symbol := toSymbol(pair)

	b.mu.Lock()
	cached, ok := b.lastPrice[symbol]
	b.mu.Unlock()
	if ok && b.timeNow().Sub(cached.time) < wsPriceMaxAge {
		return cached.price, nil
	}

	var result struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := b.get(ctx, "/api/v3/ticker/price?symbol="+symbol, &result); err != nil {
		return 0, fmt.Errorf("ticker %s: %w", symbol, err)
	}

	price, err := strconv.ParseFloat(result.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("ticker %s: bad price %q", symbol, result.Price)
	}
	return price, nil
}

// Subscribe opens the websocket on first use and subscribes the pairs'
// miniTicker streams. Safe to call repeatedly with overlapping pairs.
func (b *BinanceClient) Subscribe(pairs []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var params []string
	for _, pair := range pairs {
		symbol := toSymbol(pair)
		if b.subscribed[symbol] {
			continue
		}
		b.subscribed[symbol] = true
		params = append(params, strings.ToLower(symbol)+"@miniTicker")
	}
	if len(params) == 0 {
		return nil
	}

	if b.wsConn == nil {
		c, _, err := websocket.DefaultDialer.Dial(b.wsURL, nil)
		if err != nil {
			return err
		}
		b.wsConn = c
		go b.readLoop(c)
	}

	b.subID++
	return b.wsConn.WriteJSON(map[string]interface{}{
		"method": "SUBSCRIBE",
		"params": params,
		"id":     b.subID,
	})
}

func (b *BinanceClient) readLoop(conn *websocket.Conn) {
	defer func() {
		conn.Close()
		b.mu.Lock()
		if b.wsConn == conn {
			b.wsConn = nil
			// Force re-subscription on the next Subscribe call.
			b.subscribed = make(map[string]bool)
		}
		b.mu.Unlock()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			b.logger.Warn("Websocket read error", zap.Error(err))
			return
		}

		var event struct {
			EventType string `json:"e"`
			Symbol    string `json:"s"`
			Close     string `json:"c"`
		}
		if err := json.Unmarshal(message, &event); err != nil {
			continue
		}
		if event.EventType != "24hrMiniTicker" || event.Symbol == "" {
			continue
		}

		price, err := strconv.ParseFloat(event.Close, 64)
		if err != nil {
			continue
		}

		b.mu.Lock()
		b.lastPrice[event.Symbol] = wsPrice{price: price, time: b.timeNow()}
		b.mu.Unlock()
	}
}

// Close shuts the websocket down, if open.
func (b *BinanceClient) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.wsConn != nil {
		return b.wsConn.Close()
	}
	return nil
}
