package scoring

import (
	"encoding/json"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/walletrank/walletrank/internal/nansen"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func txAt(ts time.Time, sent, received string) nansen.Transaction {
	tx := nansen.Transaction{BlockTimestamp: ts.Format(time.RFC3339)}
	if sent != "" {
		tx.TokensSent = []nansen.TokenTransfer{{TokenAddress: sent, TokenAmount: 1}}
	}
	if received != "" {
		tx.TokensReceived = []nansen.TokenTransfer{{TokenAddress: received, TokenAmount: 1}}
	}
	return tx
}

func swapTxs(n int) []nansen.Transaction {
	txs := make([]nansen.Transaction, 0, n)
	for i := 0; i < n; i++ {
		txs = append(txs, txAt(baseTime.Add(time.Duration(i)*24*time.Hour), "tokena", "tokenb"))
	}
	return txs
}

func TestScoreDataSufficiencyGate(t *testing.T) {
	tests := []struct {
		name       string
		dataset    *nansen.Dataset
		sufficient bool
	}{
		{
			name: "enough swaps",
			dataset: &nansen.Dataset{
				Swaps:          swapTxs(8),
				WalletAgeDays:  60,
				DistinctAssets: 3,
			},
			sufficient: true,
		},
		{
			name: "enough closed positions without swaps",
			dataset: &nansen.Dataset{
				ClosedPositions: make([]nansen.PnLDetail, 5),
				WalletAgeDays:   60,
				DistinctAssets:  3,
			},
			sufficient: true,
		},
		{
			name: "too little activity",
			dataset: &nansen.Dataset{
				Swaps:           swapTxs(7),
				ClosedPositions: make([]nansen.PnLDetail, 4),
				WalletAgeDays:   400,
				DistinctAssets:  10,
			},
			sufficient: false,
		},
		{
			name: "wallet too young",
			dataset: &nansen.Dataset{
				Swaps:          swapTxs(20),
				WalletAgeDays:  59,
				DistinctAssets: 10,
			},
			sufficient: false,
		},
		{
			name: "too few distinct assets",
			dataset: &nansen.Dataset{
				Swaps:          swapTxs(20),
				WalletAgeDays:  400,
				DistinctAssets: 2,
			},
			sufficient: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Score(tt.dataset)
			if b.MeetsMinimumThresholds != tt.sufficient {
				t.Errorf("MeetsMinimumThresholds = %v, want %v", b.MeetsMinimumThresholds, tt.sufficient)
			}
			if b.InsufficientData == tt.sufficient {
				t.Errorf("InsufficientData = %v, want %v", b.InsufficientData, !tt.sufficient)
			}
			if !tt.sufficient {
				if b.HoldingConviction != 0 || b.TradingDiscipline != 0 || b.RealizedEdge != 0 || b.BehaviorQuality != 0 || b.Composite != 0 {
					t.Errorf("insufficient dataset must score zero, got %+v", b)
				}
			}
		})
	}
}

// A wallet with a 65% win rate, one +60% and one -10% closed position lands on
// win-rate band 8, ROI-median band 0 (lower median of [-10,60] is -10),
// tail-loss 5 (worst -10 >= -20, avg -10 >= -10), profit factor 100/20=5 -> 5.
func TestRealizedEdgeWorkedExample(t *testing.T) {
	ds := &nansen.Dataset{
		Swaps:          swapTxs(10),
		WalletAgeDays:  90,
		DistinctAssets: 5,
		PnLSummary:     &nansen.PnLSummary{WinRate: 0.65},
		ClosedPositions: []nansen.PnLDetail{
			{RealizedROI: 60, RealizedPnLUSD: 100},
			{RealizedROI: -10, RealizedPnLUSD: -20},
		},
	}

	if got := calculateRealizedEdge(ds); got != 18 {
		t.Fatalf("calculateRealizedEdge = %v, want 18", got)
	}
}

func TestRealizedEdge(t *testing.T) {
	tests := []struct {
		name     string
		summary  *nansen.PnLSummary
		closed   []nansen.PnLDetail
		expected float64
	}{
		{
			name:     "no closed positions",
			summary:  &nansen.PnLSummary{WinRate: 0.9},
			expected: 0,
		},
		{
			// win 10 + median 10 (60) + tail 5 (no losses) + pf 5 (no losses)
			name:    "all winners",
			summary: &nansen.PnLSummary{WinRate: 0.75},
			closed: []nansen.PnLDetail{
				{RealizedROI: 60, RealizedPnLUSD: 100},
				{RealizedROI: 80, RealizedPnLUSD: 50},
			},
			expected: 30,
		},
		{
			// NaN ROI dropped; remaining median 20 -> 6; win 6; tail 5; pf 5
			name:    "malformed roi filtered",
			summary: &nansen.PnLSummary{WinRate: 0.5},
			closed: []nansen.PnLDetail{
				{RealizedROI: math.NaN(), RealizedPnLUSD: 50},
				{RealizedROI: 20, RealizedPnLUSD: 30},
			},
			expected: 22,
		},
		{
			// win 0 (0.2) + median 0 (-10) + tail 1 (worst -50, avg -30) + pf 0
			name:    "mostly losses",
			summary: &nansen.PnLSummary{WinRate: 0.2},
			closed: []nansen.PnLDetail{
				{RealizedROI: -50, RealizedPnLUSD: -80},
				{RealizedROI: -10, RealizedPnLUSD: -120},
				{RealizedROI: 10, RealizedPnLUSD: 40},
			},
			expected: 1,
		},
		{
			name: "no summary still scores roi components",
			closed: []nansen.PnLDetail{
				{RealizedROI: 55, RealizedPnLUSD: 90},
			},
			// median 10 + tail 5 + pf 5
			expected: 20,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := &nansen.Dataset{PnLSummary: tt.summary, ClosedPositions: tt.closed}
			if got := calculateRealizedEdge(ds); got != tt.expected {
				t.Errorf("calculateRealizedEdge = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestHoldingConviction(t *testing.T) {
	profitable := []nansen.PnLDetail{{RealizedPnLUSD: 100, RealizedROI: 50}}

	t.Run("no profitable closed positions", func(t *testing.T) {
		ds := &nansen.Dataset{
			ClosedPositions: []nansen.PnLDetail{{RealizedPnLUSD: -10}},
			Transactions:    []nansen.Transaction{txAt(baseTime, "", "tok")},
		}
		if got := calculateHoldingConviction(ds); got != 0 {
			t.Errorf("calculateHoldingConviction = %v, want 0", got)
		}
	})

	t.Run("synthetic period when no transfer pairs match", func(t *testing.T) {
		// Falls back to a single 30-day period: 15 + 5 + 5.
		ds := &nansen.Dataset{ClosedPositions: profitable}
		if got := calculateHoldingConviction(ds); got != 25 {
			t.Errorf("calculateHoldingConviction = %v, want 25", got)
		}
	})

	t.Run("long holds score the cap", func(t *testing.T) {
		var txs []nansen.Transaction
		for i, tok := range []string{"t1", "t2", "t3", "t4"} {
			start := baseTime.Add(time.Duration(i) * time.Hour)
			txs = append(txs,
				txAt(start, "", tok),
				txAt(start.Add(40*24*time.Hour), tok, ""),
			)
		}
		ds := &nansen.Dataset{ClosedPositions: profitable, Transactions: txs}
		// median 40d -> 15, all periods >= 14d -> +5, all >= 30d -> +5
		if got := calculateHoldingConviction(ds); got != 25 {
			t.Errorf("calculateHoldingConviction = %v, want 25", got)
		}
	})

	t.Run("panic selling collapses the score", func(t *testing.T) {
		var txs []nansen.Transaction
		for i, tok := range []string{"t1", "t2", "t3", "t4"} {
			start := baseTime.Add(time.Duration(i) * time.Minute)
			txs = append(txs,
				txAt(start, "", tok),
				txAt(start.Add(time.Hour), tok, ""),
			)
		}
		start := baseTime.Add(time.Hour)
		txs = append(txs,
			txAt(start, "", "t5"),
			txAt(start.Add(20*24*time.Hour), "t5", ""),
		)
		ds := &nansen.Dataset{ClosedPositions: profitable, Transactions: txs}
		// median ~0.04d -> 0, 1/5 >= 14d -> +1, panic fraction 0.8 -> -5, clamped at 0
		if got := calculateHoldingConviction(ds); got != 0 {
			t.Errorf("calculateHoldingConviction = %v, want 0", got)
		}
	})
}

func TestTradingDiscipline(t *testing.T) {
	t.Run("no transactions", func(t *testing.T) {
		if got := calculateTradingDiscipline(&nansen.Dataset{WalletAgeDays: 100}); got != 0 {
			t.Errorf("calculateTradingDiscipline = %v, want 0", got)
		}
	})

	t.Run("regular low churn trader", func(t *testing.T) {
		var txs []nansen.Transaction
		for i := 0; i < 5; i++ {
			txs = append(txs, txAt(baseTime.Add(time.Duration(i)*24*time.Hour), "", ""))
		}
		ds := &nansen.Dataset{
			Transactions:  txs,
			WalletAgeDays: 100,
			PnLDetails: []nansen.PnLDetail{
				{TokenAddress: "a", BuyCount: 1, SellCount: 1},
				{TokenAddress: "b", BuyCount: 1, SellCount: 1},
				{TokenAddress: "c", BuyCount: 1, SellCount: 1},
			},
		}
		// CV 0 -> 10; 2 actions per asset -> 10; 0.05 trades per day -> no penalty
		if got := calculateTradingDiscipline(ds); got != 20 {
			t.Errorf("calculateTradingDiscipline = %v, want 20", got)
		}
	})

	t.Run("single transaction heavy churn", func(t *testing.T) {
		ds := &nansen.Dataset{
			Transactions:  []nansen.Transaction{txAt(baseTime, "", "")},
			WalletAgeDays: 90,
			PnLDetails: []nansen.PnLDetail{
				{TokenAddress: "a", BuyCount: 3, SellCount: 3},
			},
		}
		// no intervals -> 0; 6 actions per asset -> 4; no penalty
		if got := calculateTradingDiscipline(ds); got != 4 {
			t.Errorf("calculateTradingDiscipline = %v, want 4", got)
		}
	})

	t.Run("overtrading penalty", func(t *testing.T) {
		var txs []nansen.Transaction
		for i := 0; i < 60; i++ {
			txs = append(txs, txAt(baseTime.Add(time.Duration(i)*time.Hour), "", ""))
		}
		ds := &nansen.Dataset{
			Transactions:  txs,
			WalletAgeDays: 10,
			PnLDetails: []nansen.PnLDetail{
				{TokenAddress: "a", BuyCount: 1, SellCount: 1},
			},
		}
		// CV 0 -> 10; 2 per asset -> 10; 6 trades per day -> -5
		if got := calculateTradingDiscipline(ds); got != 15 {
			t.Errorf("calculateTradingDiscipline = %v, want 15", got)
		}
	})
}

func TestBehaviorQuality(t *testing.T) {
	t.Run("diversity and age only", func(t *testing.T) {
		ds := &nansen.Dataset{DistinctAssets: 20, WalletAgeDays: 400}
		if got := calculateBehaviorQuality(ds); got != 10 {
			t.Errorf("calculateBehaviorQuality = %v, want 10", got)
		}
	})

	t.Run("rug exposure penalty", func(t *testing.T) {
		details := make([]nansen.PnLDetail, 10)
		for i := 0; i < 3; i++ {
			details[i] = nansen.PnLDetail{RealizedROI: -90, SoldUSD: 200}
		}
		ds := &nansen.Dataset{
			DistinctAssets: 5,
			WalletAgeDays:  180,
			PnLDetails:     details,
		}
		// diversity 2 + age 4 - rug 5 (fraction 0.3)
		if got := calculateBehaviorQuality(ds); got != 1 {
			t.Errorf("calculateBehaviorQuality = %v, want 1", got)
		}
	})

	t.Run("dormant then bursty", func(t *testing.T) {
		ds := &nansen.Dataset{
			DistinctAssets: 3,
			WalletAgeDays:  365,
			Transactions: []nansen.Transaction{
				txAt(baseTime, "", ""),
				txAt(baseTime.Add(10*24*time.Hour), "", ""),
			},
		}
		// diversity 1 + age 5 - continuity 2 (10/365 < 0.3)
		if got := calculateBehaviorQuality(ds); got != 4 {
			t.Errorf("calculateBehaviorQuality = %v, want 4", got)
		}
	})
}

func TestScoreBoundsAndFlags(t *testing.T) {
	ds := strongDataset()
	b := Score(ds)

	if b.HoldingConviction < 0 || b.HoldingConviction > maxHoldingConviction {
		t.Errorf("HoldingConviction out of range: %v", b.HoldingConviction)
	}
	if b.TradingDiscipline < 0 || b.TradingDiscipline > maxTradingDiscipline {
		t.Errorf("TradingDiscipline out of range: %v", b.TradingDiscipline)
	}
	if b.RealizedEdge < 0 || b.RealizedEdge > maxRealizedEdge {
		t.Errorf("RealizedEdge out of range: %v", b.RealizedEdge)
	}
	if b.BehaviorQuality < 0 || b.BehaviorQuality > maxBehaviorQuality {
		t.Errorf("BehaviorQuality out of range: %v", b.BehaviorQuality)
	}

	want := int(math.Round(b.HoldingConviction + b.TradingDiscipline + b.RealizedEdge + b.BehaviorQuality))
	if b.Composite != want {
		t.Errorf("Composite = %d, want %d", b.Composite, want)
	}
	if b.Composite < 0 || b.Composite > 100 {
		t.Errorf("Composite out of range: %d", b.Composite)
	}

	if b.HighConviction != (b.HoldingConviction >= 25) {
		t.Errorf("HighConviction flag inconsistent with sub-score %v", b.HoldingConviction)
	}
	if b.PanicSelling != (b.HoldingConviction < 15) {
		t.Errorf("PanicSelling flag inconsistent with sub-score %v", b.HoldingConviction)
	}
	if b.PositiveEdge != (b.RealizedEdge >= 25) || b.StrongEdge != (b.RealizedEdge >= 20) || b.PoorEdge != (b.RealizedEdge < 10) {
		t.Errorf("edge flags inconsistent with sub-score %v", b.RealizedEdge)
	}
	if b.HigherChurn != (b.TradingDiscipline < 15) || b.ExtremeChurn != (b.TradingDiscipline < 10) {
		t.Errorf("churn flags inconsistent with sub-score %v", b.TradingDiscipline)
	}
}

func TestScoreDeterministic(t *testing.T) {
	ds := strongDataset()
	first := Score(ds)
	for i := 0; i < 5; i++ {
		if got := Score(ds); !reflect.DeepEqual(got, first) {
			t.Fatalf("Score not deterministic: %+v vs %+v", got, first)
		}
	}
}

// Scoring a dataset that went through a JSON cache round trip must produce an
// identical breakdown.
func TestScoreCacheRoundTrip(t *testing.T) {
	ds := strongDataset()
	original := Score(ds)

	raw, err := json.Marshal(ds)
	if err != nil {
		t.Fatalf("marshal dataset: %v", err)
	}
	var cached nansen.Dataset
	if err := json.Unmarshal(raw, &cached); err != nil {
		t.Fatalf("unmarshal dataset: %v", err)
	}

	if got := Score(&cached); !reflect.DeepEqual(got, original) {
		t.Fatalf("round-trip breakdown differs: %+v vs %+v", got, original)
	}
}

func strongDataset() *nansen.Dataset {
	var txs []nansen.Transaction
	for i, tok := range []string{"t1", "t2", "t3", "t4", "t5"} {
		start := baseTime.Add(time.Duration(i*7) * 24 * time.Hour)
		txs = append(txs,
			txAt(start, "", tok),
			txAt(start.Add(45*24*time.Hour), tok, ""),
		)
	}
	closed := []nansen.PnLDetail{
		{TokenAddress: "t1", RealizedROI: 80, RealizedPnLUSD: 400, SoldAmount: 1, BuyCount: 1, SellCount: 1},
		{TokenAddress: "t2", RealizedROI: 60, RealizedPnLUSD: 300, SoldAmount: 1, BuyCount: 1, SellCount: 1},
		{TokenAddress: "t3", RealizedROI: 55, RealizedPnLUSD: 250, SoldAmount: 1, BuyCount: 1, SellCount: 1},
		{TokenAddress: "t4", RealizedROI: 40, RealizedPnLUSD: 150, SoldAmount: 1, BuyCount: 1, SellCount: 1},
		{TokenAddress: "t5", RealizedROI: -15, RealizedPnLUSD: -50, SoldAmount: 1, BuyCount: 1, SellCount: 1},
	}
	return &nansen.Dataset{
		Address:         "testwallet",
		Transactions:    txs,
		Swaps:           swapTxs(12),
		ClosedPositions: closed,
		PnLDetails:      closed,
		PnLSummary:      &nansen.PnLSummary{WinRate: 0.8, RealizedPnLUSD: 1050},
		WalletAgeDays:   200,
		DistinctAssets:  8,
	}
}
