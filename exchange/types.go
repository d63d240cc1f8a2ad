package exchange

import "encoding/json"

// Envelope is the outer JSON frame every exchange stream message arrives
// in (§6): `{stream, data}`, where the stream name encodes the instrument
// and feed kind, e.g. "btcusdt@aggTrade", "btcusdt@depth20", "btcusdt@kline_1m".
type Envelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// TradePayload is the aggregated-trade payload (§6): T=event time ms,
// p=price, q=quantity, m=buyer-is-maker (maker-buy implies the aggressor
// was a sell).
type TradePayload struct {
	EventTimeMs int64  `json:"T"`
	Price       string `json:"p"`
	Quantity    string `json:"q"`
	BuyerMaker  bool   `json:"m"`
}

// CandlePayload is the kline payload (§6): nested under "k".
type CandlePayload struct {
	Kline KlineFields `json:"k"`
}

// KlineFields holds the o/h/l/c/v/T/x/i fields of a candle frame.
type KlineFields struct {
	Open     string `json:"o"`
	High     string `json:"h"`
	Low      string `json:"l"`
	Close    string `json:"c"`
	Volume   string `json:"v"`
	OpenTime int64  `json:"t"`
	CloseTime int64 `json:"T"`
	Closed   bool   `json:"x"`
	Interval string `json:"i"`
}

// DepthLevel is a single [price, size] pair as transmitted on the wire.
type DepthLevel [2]string

// DepthPayload is the top-of-book/depth payload (§6): arrays of
// [price, size] for bids (descending) and asks (ascending).
type DepthPayload struct {
	Bids []DepthLevel `json:"b"`
	Asks []DepthLevel `json:"a"`
}

// BookTickerPayload is the best-bid/best-ask frame.
type BookTickerPayload struct {
	BidPrice string `json:"b"`
	AskPrice string `json:"a"`
}
