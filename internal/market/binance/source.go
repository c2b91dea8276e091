package binance

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"caravan/internal/logger"
	"caravan/internal/route"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
)

const maxHistoryLimit = 1500

// Config 控制行情访问方式。
type Config struct {
	RESTBaseURL string
	HTTPTimeout time.Duration
	// QuoteScale 报价转最小货币单位的小数位数。
	QuoteScale int32
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.RESTBaseURL) == "" {
		c.RESTBaseURL = "https://fapi.binance.com"
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 15 * time.Second
	}
	if c.QuoteScale <= 0 {
		c.QuoteScale = 2
	}
	return c
}

// Source 基于 go-binance SDK 从合约 K 线构造路线。
type Source struct {
	cfg    Config
	client *futures.Client
}

func New(cfg Config) (*Source, error) {
	final := cfg.withDefaults()
	client := futures.NewClient("", "")
	client.BaseURL = strings.TrimSpace(final.RESTBaseURL)
	client.HTTPClient = &http.Client{Timeout: final.HTTPTimeout}
	return &Source{cfg: final, client: client}, nil
}

// BuildRoute 拉取最近 limit 根 K 线，把相邻收盘价之差（最小货币单位）作为
// 各停靠点的盈亏。N 根 K 线产出 N-1 个停靠点。
func (s *Source) BuildRoute(ctx context.Context, symbol, interval string, limit int) (route.Route, error) {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return route.Route{}, fmt.Errorf("symbol is required")
	}
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return route.Route{}, fmt.Errorf("interval is required")
	}
	if limit <= 1 {
		limit = 100
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	kls, err := s.client.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return route.Route{}, fmt.Errorf("拉取 %s %s K线失败: %w", symbol, interval, err)
	}
	closes := make([]string, 0, len(kls))
	times := make([]int64, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		closes = append(closes, kl.Close)
		times = append(times, kl.CloseTime)
	}
	values, err := DeltasFromCloses(closes, s.cfg.QuoteScale)
	if err != nil {
		return route.Route{}, err
	}
	r := route.FromValues(values)
	r.Symbol = symbol
	for i := range r.Stops {
		// Stop i covers the move into candle i+1.
		r.Stops[i].Label = time.UnixMilli(times[i+1]).UTC().Format(time.RFC3339)
	}
	logger.Debugf("构造行情路线 %s %s：%d 根K线 -> %d 个停靠点", symbol, interval, len(closes), len(values))
	return r, nil
}

// DeltasFromCloses 把收盘价序列转为相邻差值，按 scale 位小数折算成最小货币单位。
func DeltasFromCloses(closes []string, scale int32) ([]int64, error) {
	if len(closes) < 2 {
		return nil, fmt.Errorf("至少需要 2 个收盘价，收到 %d 个", len(closes))
	}
	prices := make([]decimal.Decimal, len(closes))
	for i, raw := range closes {
		p, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("第 %d 个收盘价 %q 无法解析: %w", i, raw, err)
		}
		prices[i] = p
	}
	out := make([]int64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		delta := prices[i].Sub(prices[i-1]).Shift(scale).Round(0)
		out = append(out, delta.IntPart())
	}
	return out, nil
}

func normalizeSymbol(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	return strings.ReplaceAll(symbol, "/", "")
}
