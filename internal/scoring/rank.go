package scoring

// Rank is the categorical label assigned from a score breakdown.
type Rank string

const (
	RankSmartMoney       Rank = "SMART_MONEY"
	RankDiamondHands     Rank = "DIAMOND_HANDS"
	RankDegenerate       Rank = "DEGENERATE"
	RankPaperHands       Rank = "PAPER_HANDS"
	RankJeeter           Rank = "JEETER"
	RankInsufficientData Rank = "INSUFFICIENT_DATA"
)

var rankTraits = map[Rank][]string{
	RankSmartMoney:       {"Holds winners", "Trades with discipline", "Avoids rugs"},
	RankDiamondHands:     {"Holds winners", "High conviction"},
	RankDegenerate:       {"Strong edge", "Higher churn"},
	RankPaperHands:       {"Sells too early", "Low conviction"},
	RankJeeter:           {"Overtrades", "Poor edge"},
	RankInsufficientData: {},
}

// Classify maps a breakdown to its rank and trait list. First matching rule
// wins; the order is load-bearing.
func Classify(b Breakdown) (Rank, []string) {
	rank := classify(b)
	return rank, TraitsFor(rank)
}

func classify(b Breakdown) Rank {
	if b.Composite < EligibilityScore || !b.MeetsMinimumThresholds {
		if b.InsufficientData {
			return RankInsufficientData
		}
		if b.ExtremeChurn && b.PoorEdge {
			return RankJeeter
		}
		return RankPaperHands
	}
	if b.HighConviction && b.PositiveEdge && !b.PanicSelling {
		return RankSmartMoney
	}
	if b.HighConviction && b.PositiveEdge {
		return RankDiamondHands
	}
	if b.StrongEdge && b.HigherChurn {
		return RankDegenerate
	}
	return RankPaperHands
}

// TraitsFor returns the fixed trait list for a rank. Unknown ranks get an
// empty list.
func TraitsFor(rank Rank) []string {
	traits, ok := rankTraits[rank]
	if !ok {
		return []string{}
	}
	out := make([]string, len(traits))
	copy(out, traits)
	return out
}
