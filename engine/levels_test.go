package engine

import "testing"

func TestLevelsAnalyzer_Analyze_FusesOrderBookAndProfile(t *testing.T) {
	la := NewLevelsAnalyzer()

	snap := DepthSnapshot{
		Bids: []DepthLevel{
			{Price: 91, Size: 1}, {Price: 92, Size: 1}, {Price: 93, Size: 1},
			{Price: 95, Size: 100}, // dominant, significant cluster below price
		},
		Asks: []DepthLevel{
			{Price: 105, Size: 80}, // dominant, significant cluster above price
			{Price: 106, Size: 1}, {Price: 107, Size: 1}, {Price: 108, Size: 1},
		},
	}
	historical := []Kline{
		{High: 100.1, Low: 99.9, Volume: 40},
	}

	result := la.Analyze(100, snap, historical, 90, 110)

	if len(result.Supports) != 1 {
		t.Fatalf("expected exactly one significant support, got %+v", result.Supports)
	}
	if result.Supports[0].Price < 95 || result.Supports[0].Price >= 95.2 {
		t.Errorf("support price = %v, want ~95.1", result.Supports[0].Price)
	}

	if len(result.Resistances) != 2 {
		t.Fatalf("expected two resistance levels (profile bucket + ob cluster), got %+v", result.Resistances)
	}

	if result.StrongestResistance.Price < 105 || result.StrongestResistance.Price >= 105.2 {
		t.Errorf("strongest resistance = %+v, want the dominant 105 cluster", result.StrongestResistance)
	}

	if result.POC.Volume <= 0 {
		t.Error("expected a non-zero point-of-control volume")
	}
	if result.POC.Price < 95 || result.POC.Price >= 95.2 {
		t.Errorf("POC = %+v, want the dominant fused bid cluster near 95.1", result.POC)
	}
}

func TestLevelsAnalyzer_Analyze_ZeroPriceReturnsEmpty(t *testing.T) {
	la := NewLevelsAnalyzer()
	result := la.Analyze(0, DepthSnapshot{}, nil, 0, 0)
	if len(result.Supports) != 0 || len(result.Resistances) != 0 {
		t.Fatalf("expected an empty result for a zero current price, got %+v", result)
	}
}

func TestBucket_GroupsPricesWithinBinWidth(t *testing.T) {
	binWidth := 0.2
	if bucket(95.0, binWidth) != bucket(95.05, binWidth) {
		t.Error("expected prices within the same bin width to share a bucket")
	}
	if bucket(95.0, binWidth) == bucket(95.3, binWidth) {
		t.Error("expected prices beyond bin width to land in different buckets")
	}
}
