package engine

import "testing"

func TestAnalyzeOrderBook_Imbalance(t *testing.T) {
	snap := DepthSnapshot{
		Bids: []DepthLevel{{Price: 100, Size: 8}, {Price: 99, Size: 2}},
		Asks: []DepthLevel{{Price: 101, Size: 2}, {Price: 102, Size: 2}},
	}
	got := AnalyzeOrderBook(snap)

	want := (10.0 - 4.0) / (10.0 + 4.0)
	if got.Imbalance != want {
		t.Errorf("imbalance = %v, want %v", got.Imbalance, want)
	}
	if got.BestBid != 100 || got.BestAsk != 101 {
		t.Errorf("best bid/ask = %v/%v, want 100/101", got.BestBid, got.BestAsk)
	}
}

func TestAnalyzeOrderBook_LargeOrders(t *testing.T) {
	snap := DepthSnapshot{
		Bids: []DepthLevel{{Price: 100, Size: 1}, {Price: 99, Size: 1}, {Price: 98, Size: 50}},
		Asks: []DepthLevel{{Price: 101, Size: 1}, {Price: 102, Size: 1}, {Price: 103, Size: 1}},
	}
	// Six levels summing to 55: average 9.17, large threshold 45.8.
	got := AnalyzeOrderBook(snap)

	if len(got.LargeBids) != 1 || got.LargeBids[0].Price != 98 {
		t.Fatalf("expected exactly the 50-size bid flagged large, got %+v", got.LargeBids)
	}
	if len(got.LargeAsks) != 0 {
		t.Fatalf("expected no large asks, got %+v", got.LargeAsks)
	}
}

func TestAnalyzeOrderBook_EmptyBookIsZeroValue(t *testing.T) {
	got := AnalyzeOrderBook(DepthSnapshot{})
	if got.Imbalance != 0 || got.Spread != 0 || got.BestBid != 0 || got.BestAsk != 0 {
		t.Fatalf("expected zero-value analysis for an empty book, got %+v", got)
	}
}

func TestAnalyzeOrderBook_TruncatesToTopN(t *testing.T) {
	bids := make([]DepthLevel, orderBookDepthLevels+50)
	for i := range bids {
		bids[i] = DepthLevel{Price: float64(100 - i), Size: 1}
	}
	snap := DepthSnapshot{Bids: bids, Asks: []DepthLevel{{Price: 101, Size: 1}}}

	got := AnalyzeOrderBook(snap)
	// Only the top orderBookDepthLevels bids should count toward bidSum.
	wantBidSum := float64(orderBookDepthLevels)
	wantImbalance := (wantBidSum - 1) / (wantBidSum + 1)
	if got.Imbalance != wantImbalance {
		t.Errorf("imbalance = %v, want %v (book should truncate to top %d levels)", got.Imbalance, wantImbalance, orderBookDepthLevels)
	}
}
