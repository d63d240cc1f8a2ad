// Package handlers routes exchange stream frames to the per-instrument
// analysis pipeline, adapted from the teacher's named-handler registry
// (handlers/manager.go) but generalized from a protobuf-keyed lookup to
// a FeedKind switch over the spec's JSON envelope (§6).
package handlers

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"perpsignal/database"
	models "perpsignal/database/models_pkg"
	"perpsignal/engine"
	"perpsignal/exchange"
)

// Dispatcher decodes one exchange.Envelope per inbound frame and routes
// it to the owning instrument's handler. Per-frame errors are logged and
// isolated; they never abort the ingest loop (§7 "Propagation policy").
type Dispatcher struct {
	registry *engine.Registry
	klines   *database.KlineRepository
}

// NewDispatcher builds a dispatcher over the shared instrument registry.
func NewDispatcher(registry *engine.Registry, klines *database.KlineRepository) *Dispatcher {
	return &Dispatcher{registry: registry, klines: klines}
}

// Dispatch classifies env.Stream and forwards the payload to the
// matching InstrumentHandler method.
func (d *Dispatcher) Dispatch(ctx context.Context, env *exchange.Envelope) {
	instrument, kind := exchange.ParseStream(env.Stream)
	if kind == exchange.FeedUnknown {
		return
	}

	handler := d.registry.Get(instrument)

	switch kind {
	case exchange.FeedTrade:
		var payload exchange.TradePayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			log.Printf("⚠️  %s: malformed trade frame: %v", instrument, err)
			return
		}
		handler.HandleTrade(ctx, payload)

	case exchange.FeedDepth:
		var payload exchange.DepthPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			log.Printf("⚠️  %s: malformed depth frame: %v", instrument, err)
			return
		}
		handler.HandleDepth(ctx, toEngineDepth(instrument, payload))

	case exchange.FeedKline1m, exchange.FeedKline15m:
		var payload exchange.CandlePayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			log.Printf("⚠️  %s: malformed candle frame: %v", instrument, err)
			return
		}
		if !payload.Kline.Closed {
			return // only closed candles are persisted/cached (§1 Non-goals)
		}
		k, err := toEngineKline(payload.Kline)
		if err != nil {
			log.Printf("⚠️  %s: malformed candle fields: %v", instrument, err)
			return
		}
		if kind == exchange.FeedKline15m {
			handler.HandleKline15m(ctx, k)
			return
		}

		// Closed 1-minute candles are persisted here (§6 klines schema);
		// only closed candles are ever written (§1 Non-goals).
		if err := d.klines.SaveKline(&models.Kline{
			Instrument: instrument,
			Interval:   "1m",
			OpenTime:   k.OpenTime,
			Open:       k.Open, High: k.High, Low: k.Low, Close: k.Close, Volume: k.Volume,
		}); err != nil {
			log.Printf("⚠️  %s: failed to persist closed 1m candle: %v", instrument, err)
		}

	case exchange.FeedBookTicker:
		// Best-bid/ask alone isn't sufficient for the imbalance/price
		// cache keys (§4.1 requires the full depth-derived price object);
		// depth frames are authoritative and bookTicker is not consumed
		// further here.
	}
}

func toEngineDepth(instrument string, payload exchange.DepthPayload) engine.DepthSnapshot {
	return engine.DepthSnapshot{
		Instrument: instrument,
		Bids:       parseLevels(payload.Bids),
		Asks:       parseLevels(payload.Asks),
	}
}

func parseLevels(raw []exchange.DepthLevel) []engine.DepthLevel {
	levels := make([]engine.DepthLevel, 0, len(raw))
	for _, r := range raw {
		price, err := strconv.ParseFloat(r[0], 64)
		if err != nil {
			continue
		}
		size, err := strconv.ParseFloat(r[1], 64)
		if err != nil {
			continue
		}
		levels = append(levels, engine.DepthLevel{Price: price, Size: size})
	}
	return levels
}

func toEngineKline(k exchange.KlineFields) (engine.Kline, error) {
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return engine.Kline{}, err
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return engine.Kline{}, err
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return engine.Kline{}, err
	}
	closePrice, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return engine.Kline{}, err
	}
	volume, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return engine.Kline{}, err
	}
	return engine.Kline{
		OpenTime: time.UnixMilli(k.OpenTime),
		Open:     open, High: high, Low: low, Close: closePrice, Volume: volume, Closed: true,
	}, nil
}
