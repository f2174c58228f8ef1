package scoring

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/walletrank/walletrank/internal/nansen"
)

// Sub-metric caps.
const (
	maxHoldingConviction = 30.0
	maxTradingDiscipline = 25.0
	maxRealizedEdge      = 30.0
	maxBehaviorQuality   = 15.0
)

// EligibilityScore is the minimum composite for invite-issuing eligibility.
const EligibilityScore = 70

// Breakdown is the immutable result of scoring one wallet dataset.
type Breakdown struct {
	HoldingConviction float64 `json:"holdingConviction"`
	TradingDiscipline float64 `json:"tradingDiscipline"`
	RealizedEdge      float64 `json:"realizedEdge"`
	BehaviorQuality   float64 `json:"behaviorQuality"`

	Composite              int  `json:"score"`
	MeetsMinimumThresholds bool `json:"meetsMinimumThresholds"`

	InsufficientData bool `json:"insufficientData,omitempty"`
	HighConviction   bool `json:"highConviction,omitempty"`
	PositiveEdge     bool `json:"positiveEdge,omitempty"`
	PanicSelling     bool `json:"panicSelling,omitempty"`
	StrongEdge       bool `json:"strongEdge,omitempty"`
	HigherChurn      bool `json:"higherChurn,omitempty"`
	ExtremeChurn     bool `json:"extremeChurn,omitempty"`
	PoorEdge         bool `json:"poorEdge,omitempty"`
}

// Eligible reports whether this breakdown qualifies the wallet for an invite
// code of its own.
func (b Breakdown) Eligible() bool {
	return b.Composite >= EligibilityScore && b.MeetsMinimumThresholds
}

// Score converts a wallet dataset into a breakdown. Deterministic: the same
// dataset always produces the same breakdown.
func Score(ds *nansen.Dataset) Breakdown {
	if !meetsDataSufficiency(ds) {
		return Breakdown{
			MeetsMinimumThresholds: false,
			InsufficientData:       true,
		}
	}

	holding := calculateHoldingConviction(ds)
	discipline := calculateTradingDiscipline(ds)
	edge := calculateRealizedEdge(ds)
	behavior := calculateBehaviorQuality(ds)

	return Breakdown{
		HoldingConviction:      holding,
		TradingDiscipline:      discipline,
		RealizedEdge:           edge,
		BehaviorQuality:        behavior,
		Composite:              int(math.Round(holding + discipline + edge + behavior)),
		MeetsMinimumThresholds: true,
		HighConviction:         holding >= 25,
		PositiveEdge:           edge >= 25,
		PanicSelling:           holding < 15,
		StrongEdge:             edge >= 20,
		HigherChurn:            discipline < 15,
		ExtremeChurn:           discipline < 10,
		PoorEdge:               edge < 10,
	}
}

// meetsDataSufficiency gates scoring: 8 swaps or 5 closed positions, at least
// 60 days of wallet age, at least 3 distinct assets traded.
func meetsDataSufficiency(ds *nansen.Dataset) bool {
	return (len(ds.Swaps) >= 8 || len(ds.ClosedPositions) >= 5) &&
		ds.WalletAgeDays >= 60 &&
		ds.DistinctAssets >= 3
}

// calculateHoldingConviction scores 0-30 from the distribution of holding
// periods, derived by matching each sent token against the oldest outstanding
// receive for that token (FIFO).
func calculateHoldingConviction(ds *nansen.Dataset) float64 {
	hasProfitable := false
	for i := range ds.ClosedPositions {
		if ds.ClosedPositions[i].RealizedPnLUSD > 0 {
			hasProfitable = true
			break
		}
	}
	if !hasProfitable {
		return 0
	}

	periods := holdingPeriods(ds.Transactions)
	if len(periods) == 0 {
		// Profitable exits exist but no transfer pairs could be matched;
		// assume a single month-long hold rather than zeroing the metric.
		periods = []float64{30}
	}

	sorted := append([]float64(nil), periods...)
	sort.Float64s(sorted)
	median := lowerMedian(sorted)

	var score float64
	switch {
	case median >= 30:
		score = 15
	case median >= 14:
		score = 10
	case median >= 7:
		score = 5
	}

	n := float64(len(periods))
	var held14, held30, panic1 float64
	for _, p := range periods {
		if p >= 14 {
			held14++
		}
		if p >= 30 {
			held30++
		}
		if p < 1 {
			panic1++
		}
	}

	score += math.Min(5, held14/n*5)
	score += math.Min(5, held30/n*5)

	if panicFraction := panic1 / n; panicFraction > 0.3 {
		score -= math.Min(5, panicFraction*10)
	}

	return clamp(score, 0, maxHoldingConviction)
}

// holdingPeriods walks transactions in timestamp order, queueing receive
// events per token and popping the oldest one on each send. Only strictly
// positive durations count. Receives are enqueued before sends within one
// transaction so a swap cannot match its own receive leg.
func holdingPeriods(txs []nansen.Transaction) []float64 {
	ordered := sortedByTime(txs)

	queues := make(map[string][]time.Time)
	var periods []float64

	for i := range ordered {
		ts := ordered[i].Time()
		if ts.IsZero() {
			continue
		}
		for _, tr := range ordered[i].TokensReceived {
			key := strings.ToLower(tr.TokenAddress)
			queues[key] = append(queues[key], ts)
		}
		for _, tr := range ordered[i].TokensSent {
			key := strings.ToLower(tr.TokenAddress)
			q := queues[key]
			if len(q) == 0 {
				continue
			}
			received := q[0]
			queues[key] = q[1:]
			if days := ts.Sub(received).Hours() / 24; days > 0 {
				periods = append(periods, days)
			}
		}
	}

	return periods
}

// calculateTradingDiscipline scores 0-25 from trade-timing regularity, churn
// per asset, and an overtrading penalty.
func calculateTradingDiscipline(ds *nansen.Dataset) float64 {
	if len(ds.Transactions) == 0 {
		return 0
	}

	var score float64

	// Frequency consistency: coefficient of variation of inter-trade gaps.
	times := transactionTimes(ds.Transactions)
	if len(times) >= 2 {
		intervals := make([]float64, 0, len(times)-1)
		for i := 1; i < len(times); i++ {
			intervals = append(intervals, times[i].Sub(times[i-1]).Hours()/24)
		}
		if mean := meanOf(intervals); mean > 0 {
			cv := stddevOf(intervals, mean) / mean
			switch {
			case cv < 0.5:
				score += 10
			case cv < 1.0:
				score += 7
			case cv < 1.5:
				score += 4
			}
		}
	}

	// Churn: average buy+sell actions per traded asset.
	totalActions := 0
	tokens := make(map[string]struct{})
	for i := range ds.PnLDetails {
		totalActions += ds.PnLDetails[i].BuyCount + ds.PnLDetails[i].SellCount
		tokens[strings.ToLower(ds.PnLDetails[i].TokenAddress)] = struct{}{}
	}
	if len(tokens) > 0 {
		avgPerAsset := float64(totalActions) / float64(len(tokens))
		switch {
		case avgPerAsset <= 2:
			score += 10
		case avgPerAsset <= 4:
			score += 7
		case avgPerAsset <= 6:
			score += 4
		}
	}

	// Overtrading penalty.
	if ds.WalletAgeDays > 0 {
		tradesPerDay := float64(len(ds.Transactions)) / float64(ds.WalletAgeDays)
		switch {
		case tradesPerDay > 5:
			score -= 5
		case tradesPerDay > 3:
			score -= 3
		case tradesPerDay > 2:
			score -= 1
		}
	}

	return clamp(score, 0, maxTradingDiscipline)
}

// calculateRealizedEdge scores 0-30 from win rate, median ROI, tail-loss
// exposure, and profit factor over closed positions.
func calculateRealizedEdge(ds *nansen.Dataset) float64 {
	if len(ds.ClosedPositions) == 0 {
		return 0
	}

	var score float64

	if ds.PnLSummary != nil {
		switch wr := ds.PnLSummary.WinRate; {
		case wr >= 0.7:
			score += 10
		case wr >= 0.6:
			score += 8
		case wr >= 0.5:
			score += 6
		case wr >= 0.4:
			score += 4
		case wr >= 0.3:
			score += 2
		}
	}

	// Malformed ROI values are dropped, not fatal.
	rois := make([]float64, 0, len(ds.ClosedPositions))
	for i := range ds.ClosedPositions {
		roi := ds.ClosedPositions[i].RealizedROI
		if math.IsNaN(roi) || math.IsInf(roi, 0) {
			continue
		}
		rois = append(rois, roi)
	}
	sort.Float64s(rois)

	if len(rois) > 0 {
		switch median := lowerMedian(rois); {
		case median >= 50:
			score += 10
		case median >= 30:
			score += 8
		case median >= 20:
			score += 6
		case median >= 10:
			score += 4
		case median >= 0:
			score += 2
		}
	}

	score += tailLossComponent(rois)
	score += profitFactorComponent(ds.ClosedPositions)

	return clamp(score, 0, maxRealizedEdge)
}

// tailLossComponent awards 0-5 based on how contained the losing positions
// are. A record with no losing ROI at all earns the full 5.
func tailLossComponent(rois []float64) float64 {
	var negatives []float64
	for _, roi := range rois {
		if roi < 0 {
			negatives = append(negatives, roi)
		}
	}
	if len(negatives) == 0 {
		return 5
	}

	worst := negatives[0]
	var sum float64
	for _, roi := range negatives {
		if roi < worst {
			worst = roi
		}
		sum += roi
	}
	avg := sum / float64(len(negatives))

	switch {
	case worst >= -20 && avg >= -10:
		return 5
	case worst >= -40 && avg >= -20:
		return 3
	case worst >= -60 && avg >= -30:
		return 1
	}
	return 0
}

// profitFactorComponent awards 0-5 on gross profit vs gross loss.
func profitFactorComponent(positions []nansen.PnLDetail) float64 {
	var totalProfit, totalLoss float64
	for i := range positions {
		pnl := positions[i].RealizedPnLUSD
		if pnl > 0 {
			totalProfit += pnl
		} else {
			totalLoss += -pnl
		}
	}

	if totalLoss == 0 {
		if totalProfit > 0 {
			return 5
		}
		return 0
	}

	switch pf := totalProfit / totalLoss; {
	case pf >= 3:
		return 5
	case pf >= 2:
		return 4
	case pf >= 1.5:
		return 3
	case pf >= 1:
		return 2
	case pf >= 0.8:
		return 1
	}
	return 0
}

// calculateBehaviorQuality scores 0-15 from asset diversity, rug exposure,
// wallet age, and activity continuity.
func calculateBehaviorQuality(ds *nansen.Dataset) float64 {
	var score float64

	switch assets := ds.DistinctAssets; {
	case assets >= 20:
		score += 5
	case assets >= 15:
		score += 4
	case assets >= 10:
		score += 3
	case assets >= 5:
		score += 2
	case assets >= 3:
		score += 1
	}

	// Rug exposure: sold into near-total losses with nontrivial size.
	if total := len(ds.PnLDetails); total > 0 {
		rugged := 0
		for i := range ds.PnLDetails {
			if ds.PnLDetails[i].RealizedROI < -80 && ds.PnLDetails[i].SoldUSD > 100 {
				rugged++
			}
		}
		switch fraction := float64(rugged) / float64(total); {
		case fraction > 0.2:
			score -= 5
		case fraction > 0.1:
			score -= 3
		case fraction > 0.05:
			score -= 1
		}
	}

	switch age := ds.WalletAgeDays; {
	case age >= 365:
		score += 5
	case age >= 180:
		score += 4
	case age >= 120:
		score += 3
	case age >= 90:
		score += 2
	case age >= 60:
		score += 1
	}

	// Continuity: a wallet whose whole activity span covers a small slice of
	// its lifetime looks dormant-then-bursty.
	times := transactionTimes(ds.Transactions)
	if len(times) >= 2 && ds.WalletAgeDays > 0 {
		activeDays := times[len(times)-1].Sub(times[0]).Hours() / 24
		if activeDays/float64(ds.WalletAgeDays) < 0.3 {
			score -= 2
		}
	}

	return clamp(score, 0, maxBehaviorQuality)
}

func sortedByTime(txs []nansen.Transaction) []nansen.Transaction {
	ordered := append([]nansen.Transaction(nil), txs...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Time().Before(ordered[j].Time())
	})
	return ordered
}

func transactionTimes(txs []nansen.Transaction) []time.Time {
	times := make([]time.Time, 0, len(txs))
	for i := range txs {
		if ts := txs[i].Time(); !ts.IsZero() {
			times = append(times, ts)
		}
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	return times
}

// lowerMedian returns the lower median of an ascending slice.
func lowerMedian(sorted []float64) float64 {
	return sorted[(len(sorted)-1)/2]
}

func meanOf(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// stddevOf is the population standard deviation.
func stddevOf(vals []float64, mean float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(vals)))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
