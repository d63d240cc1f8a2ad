package engine

import (
	"math"
	"sort"
)

// binSizePct is the bucket width as a fraction of current price (§6
// "bin_size_pct (0.2)"), fixed across both the order-book clustering and
// the historical-volume profile for comparability.
const binSizePct = 0.002

// clusterSignificanceMultiplier marks an order-book bucket significant
// when its size exceeds this multiple of the average populated-bucket
// size (§4.5 step 1).
const clusterSignificanceMultiplier = 2.0

// lowVolumeZoneFraction marks a level a "low-volume zone" when its
// volume is below this fraction of the mean profile volume (§4.5 step 3).
const lowVolumeZoneFraction = 0.5

// maxLowVolumeZones bounds how many low-volume runs are reported.
const maxLowVolumeZones = 3

// LevelsAnalyzer bins depth and historical volume into price buckets
// and fuses them into significant support/resistance clusters (§4.5).
type LevelsAnalyzer struct{}

// NewLevelsAnalyzer builds a stateless levels analyzer.
func NewLevelsAnalyzer() *LevelsAnalyzer { return &LevelsAnalyzer{} }

// bucket returns the bin index for a price given bin width.
func bucket(price, binWidth float64) int {
	return int(math.Floor(price / binWidth))
}

// Analyze bins and fuses the order book and the 6-hour historical
// candle profile within [workingLow, workingHigh] to produce the
// significant level set.
func (LevelsAnalyzer) Analyze(currentPrice float64, snap DepthSnapshot, historical []Kline, workingLow, workingHigh float64) LevelsResult {
	binWidth := currentPrice * binSizePct
	if binWidth <= 0 {
		return LevelsResult{}
	}

	obBuckets := make(map[int]float64)
	for _, l := range snap.Bids {
		if l.Price < workingLow || l.Price > workingHigh {
			continue
		}
		obBuckets[bucket(l.Price, binWidth)] += l.Size
	}
	for _, l := range snap.Asks {
		if l.Price < workingLow || l.Price > workingHigh {
			continue
		}
		obBuckets[bucket(l.Price, binWidth)] += l.Size
	}

	var obSum float64
	for _, v := range obBuckets {
		obSum += v
	}
	var obAvg float64
	if len(obBuckets) > 0 {
		obAvg = obSum / float64(len(obBuckets))
	}

	significantOB := make(map[int]float64)
	if obAvg > 0 {
		for idx, v := range obBuckets {
			if v > clusterSignificanceMultiplier*obAvg {
				significantOB[idx] = v
			}
		}
	}

	profileBuckets := make(map[int]float64)
	for _, k := range historical {
		if k.High <= k.Low {
			continue
		}
		span := k.High - k.Low
		nBins := int(math.Ceil(span / binWidth))
		if nBins < 1 {
			nBins = 1
		}
		perBin := k.Volume / float64(nBins)
		for i := 0; i < nBins; i++ {
			price := k.Low + (float64(i)+0.5)*(span/float64(nBins))
			if price < workingLow || price > workingHigh {
				continue
			}
			profileBuckets[bucket(price, binWidth)] += perBin
		}
	}

	var maxProfileVolume float64
	var profileSum float64
	for _, v := range profileBuckets {
		profileSum += v
		if v > maxProfileVolume {
			maxProfileVolume = v
		}
	}
	var profileMean float64
	if len(profileBuckets) > 0 {
		profileMean = profileSum / float64(len(profileBuckets))
	}

	fused := make(map[int]float64)
	normFactor := maxProfileVolume / 10.0
	for idx, v := range significantOB {
		if normFactor > 0 {
			fused[idx] += v * normFactor
		}
	}
	for idx, v := range profileBuckets {
		fused[idx] += v
	}

	var maxFused float64
	for _, v := range fused {
		if v > maxFused {
			maxFused = v
		}
	}

	levels := make([]Level, 0, len(fused))
	for idx, v := range fused {
		if maxFused > 0 && v < 0.10*maxFused {
			if _, obSignificant := significantOB[idx]; !obSignificant {
				continue
			}
		}
		levels = append(levels, Level{Price: (float64(idx) + 0.5) * binWidth, Volume: v})
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].Price < levels[j].Price })

	var poc Level
	for _, l := range levels {
		if l.Volume > poc.Volume {
			poc = l
		}
	}

	var supports, resistances []Level
	for _, l := range levels {
		if l.Price < currentPrice {
			supports = append(supports, l)
		} else if l.Price > currentPrice {
			resistances = append(resistances, l)
		}
	}
	// supports: nearest-first means descending price.
	sort.Slice(supports, func(i, j int) bool { return supports[i].Price > supports[j].Price })
	// resistances: nearest-first means ascending price (already sorted).

	result := LevelsResult{
		POC:         poc,
		Supports:    supports,
		Resistances: resistances,
	}
	if len(supports) > 0 {
		result.StrongestSupport = maxVolume(supports)
	}
	if len(resistances) > 0 {
		result.StrongestResistance = maxVolume(resistances)
	}
	result.LowVolumeZones = lowVolumeZones(levels, profileMean)

	return result
}

func maxVolume(levels []Level) Level {
	best := levels[0]
	for _, l := range levels[1:] {
		if l.Volume > best.Volume {
			best = l
		}
	}
	return best
}

// lowVolumeZones finds contiguous runs of levels (by sorted price) whose
// volume is below half the mean profile volume, reporting up to three,
// represented by their lowest-volume member.
func lowVolumeZones(sortedLevels []Level, profileMean float64) []Level {
	if profileMean <= 0 {
		return nil
	}
	threshold := lowVolumeZoneFraction * profileMean

	var zones []Level
	inRun := false
	var runMin Level
	for _, l := range sortedLevels {
		if l.Volume < threshold {
			if !inRun || l.Volume < runMin.Volume {
				runMin = l
			}
			inRun = true
		} else {
			if inRun {
				zones = append(zones, runMin)
				inRun = false
			}
		}
		if len(zones) >= maxLowVolumeZones {
			break
		}
	}
	if inRun && len(zones) < maxLowVolumeZones {
		zones = append(zones, runMin)
	}
	return zones
}
