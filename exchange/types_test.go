package exchange

import "testing"

func TestParseStream_ClassifiesEachFeedKind(t *testing.T) {
	cases := []struct {
		stream         string
		wantInstrument string
		wantKind       FeedKind
	}{
		{"btcusdt@aggTrade", "BTCUSDT", FeedTrade},
		{"ethusdt@depth20", "ETHUSDT", FeedDepth},
		{"btcusdt@kline_1m", "BTCUSDT", FeedKline1m},
		{"btcusdt@kline_15m", "BTCUSDT", FeedKline15m},
		{"btcusdt@bookTicker", "BTCUSDT", FeedBookTicker},
		{"btcusdt@unknownFeed", "BTCUSDT", FeedUnknown},
		{"malformed-stream-no-at-sign", "malformed-stream-no-at-sign", FeedUnknown},
	}

	for _, c := range cases {
		instrument, kind := ParseStream(c.stream)
		if instrument != c.wantInstrument || kind != c.wantKind {
			t.Errorf("ParseStream(%q) = (%q, %q), want (%q, %q)", c.stream, instrument, kind, c.wantInstrument, c.wantKind)
		}
	}
}
