package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/hashicorp/go-retryablehttp"

	"perpsignal/ratelimit"
)

// RESTClient backfills historical candles and depth snapshots on startup
// and on demand (§6 "Exchange REST (backfill)").
type RESTClient struct {
	baseURL string
	gate    *ratelimit.Gate
	http    *retryablehttp.Client
}

// NewRESTClient builds a REST backfill client gated by a token-bucket
// rate limiter.
func NewRESTClient(baseURL string, gate *ratelimit.Gate) *RESTClient {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = nil // quiet by default; callers see our own log lines

	return &RESTClient{baseURL: baseURL, gate: gate, http: client}
}

// RawCandle is one element of the REST candles array response: fields by
// index [openTime, open, high, low, close, volume, ...] per §6.
type RawCandle [12]interface{}

// Candle is the parsed form of a RawCandle.
type Candle struct {
	OpenTime int64
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// GetRecentCandles pulls the last `limit` one-minute candles for an
// instrument.
func (c *RESTClient) GetRecentCandles(ctx context.Context, instrument string, interval string, limit int) ([]Candle, error) {
	if err := c.gate.Wait(ctx, 1); err != nil {
		return nil, fmt.Errorf("rate gate: %w", err)
	}

	url := fmt.Sprintf("%s/klines?symbol=%s&interval=%s&limit=%d", c.baseURL, instrument, interval, limit)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GetRecentCandles %s: %w", instrument, err)
	}
	defer resp.Body.Close()

	c.reportUsedWeight(resp)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var raw []RawCandle
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode candles: %w", err)
	}

	candles := make([]Candle, 0, len(raw))
	for _, r := range raw {
		candle, err := parseRawCandle(r)
		if err != nil {
			log.Printf("⚠️  skipping malformed candle for %s: %v", instrument, err)
			continue
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

func parseRawCandle(r RawCandle) (Candle, error) {
	openTime, ok := r[0].(float64)
	if !ok {
		return Candle{}, fmt.Errorf("openTime not numeric")
	}
	open, err := parseFloatField(r[1])
	if err != nil {
		return Candle{}, err
	}
	high, err := parseFloatField(r[2])
	if err != nil {
		return Candle{}, err
	}
	low, err := parseFloatField(r[3])
	if err != nil {
		return Candle{}, err
	}
	closePrice, err := parseFloatField(r[4])
	if err != nil {
		return Candle{}, err
	}
	volume, err := parseFloatField(r[5])
	if err != nil {
		return Candle{}, err
	}
	return Candle{
		OpenTime: int64(openTime),
		Open:     open,
		High:     high,
		Low:      low,
		Close:    closePrice,
		Volume:   volume,
	}, nil
}

func parseFloatField(v interface{}) (float64, error) {
	switch t := v.(type) {
	case string:
		return strconv.ParseFloat(t, 64)
	case float64:
		return t, nil
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}

// DepthSnapshot is the REST depth=500 response shape.
type DepthSnapshot struct {
	Bids []DepthLevel `json:"bids"`
	Asks []DepthLevel `json:"asks"`
}

// GetDepthSnapshot pulls a depth=500 order-book snapshot on demand.
func (c *RESTClient) GetDepthSnapshot(ctx context.Context, instrument string, depth int) (*DepthSnapshot, error) {
	if err := c.gate.Wait(ctx, 5); err != nil {
		return nil, fmt.Errorf("rate gate: %w", err)
	}

	url := fmt.Sprintf("%s/depth?symbol=%s&limit=%d", c.baseURL, instrument, depth)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GetDepthSnapshot %s: %w", instrument, err)
	}
	defer resp.Body.Close()

	c.reportUsedWeight(resp)

	var snapshot DepthSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("decode depth snapshot: %w", err)
	}
	return &snapshot, nil
}

func (c *RESTClient) reportUsedWeight(resp *http.Response) {
	header := resp.Header.Get("X-MBX-USED-WEIGHT-1M")
	if header == "" {
		return
	}
	used, err := strconv.Atoi(header)
	if err != nil {
		return
	}
	c.gate.ReportUsedWeight(used, 0.1)
}
