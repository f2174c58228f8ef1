package referral

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// ErrCyclicReferralGraph is returned when the same invite code is reachable
// twice during traversal. Correct allocation can never produce this; the guard
// turns a would-be infinite loop into a fast failure.
var ErrCyclicReferralGraph = errors.New("cyclic referral graph")

const topReferrerLimit = 10

// Node is one user in the referral graph.
type Node struct {
	UserID           string `json:"userId"`
	InviteCodeIssued string `json:"inviteCodeIssued"`
	ReferredByCode   string `json:"referredByInviteCode"`
	Rank             string `json:"rank"`
	Eligibility      bool   `json:"eligibility"`
}

// FetchFunc returns the users directly referred by an invite code.
type FetchFunc func(ctx context.Context, code string) ([]Node, error)

// TopReferrer is a user ranked by number of direct downstream referrals.
type TopReferrer struct {
	UserID    string `json:"userId"`
	Referrals int    `json:"referrals"`
}

// Stats summarizes the downstream subtree of an invite code.
type Stats struct {
	InviteCode       string         `json:"inviteCode"`
	TotalSubmissions int            `json:"totalSubmissions"`
	EligibilityRate  float64        `json:"eligibilityRate"`
	RankDistribution map[string]int `json:"rankDistribution"`
	ReferralDepth    int            `json:"referralDepth"`
	TopReferrers     []TopReferrer  `json:"topReferrers"`
}

// ComputeStats reconstructs the full downstream subtree of rootCode and
// aggregates it. The traversal is an explicit depth-first worklist that
// preserves encounter order (a code's direct referrals first, then the
// subtree of each in order), which keeps top-referrer tie-breaks stable.
func ComputeStats(ctx context.Context, rootCode string, fetch FetchFunc) (*Stats, error) {
	root := strings.ToUpper(rootCode)

	tree, err := collectTree(ctx, root, fetch)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		InviteCode:       root,
		TotalSubmissions: len(tree),
		RankDistribution: make(map[string]int),
		TopReferrers:     []TopReferrer{},
	}

	eligible := 0
	for _, node := range tree {
		if node.Eligibility {
			eligible++
		}
		stats.RankDistribution[node.Rank]++
	}
	if stats.TotalSubmissions > 0 {
		rate := float64(eligible) / float64(stats.TotalSubmissions)
		stats.EligibilityRate = math.Round(rate*100) / 100
	}

	stats.ReferralDepth = referralDepth(root, tree)
	stats.TopReferrers = topReferrers(tree)

	return stats, nil
}

// collectTree runs the worklist traversal. Codes are visited at most once;
// revisiting one means the graph has a cycle.
func collectTree(ctx context.Context, root string, fetch FetchFunc) ([]Node, error) {
	var tree []Node

	visited := map[string]struct{}{}
	stack := []string{root}

	for len(stack) > 0 {
		code := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, seen := visited[code]; seen {
			return nil, fmt.Errorf("%w: code %s revisited", ErrCyclicReferralGraph, code)
		}
		visited[code] = struct{}{}

		children, err := fetch(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("fetch referrals for %s: %w", code, err)
		}
		tree = append(tree, children...)

		// Push issued codes in reverse so the first child's subtree is
		// walked first, matching recursive order.
		for i := len(children) - 1; i >= 0; i-- {
			if issued := children[i].InviteCodeIssued; issued != "" {
				stack = append(stack, strings.ToUpper(issued))
			}
		}
	}

	return tree, nil
}

// referralDepth follows each direct child's issuance chain: a direct child
// that issued a code is depth 1, every user who joined through the chain's
// current code and issued one of their own adds a hop.
func referralDepth(root string, tree []Node) int {
	byReferredCode := make(map[string]Node)
	for _, node := range tree {
		code := strings.ToUpper(node.ReferredByCode)
		if _, ok := byReferredCode[code]; !ok {
			byReferredCode[code] = node
		}
	}

	maxDepth := 0
	for _, node := range tree {
		if strings.ToUpper(node.ReferredByCode) != root || node.InviteCodeIssued == "" {
			continue
		}

		depth := 1
		code := strings.ToUpper(node.InviteCodeIssued)
		walked := map[string]struct{}{}
		for code != "" {
			if _, seen := walked[code]; seen {
				break
			}
			walked[code] = struct{}{}

			next, ok := byReferredCode[code]
			if !ok {
				break
			}
			depth++
			code = strings.ToUpper(next.InviteCodeIssued)
		}

		if depth > maxDepth {
			maxDepth = depth
		}
	}
	return maxDepth
}

// topReferrers counts, per code-issuing user, how many downstream users
// joined through that user's code. Descending by count, ties broken by the
// referrer's encounter order, capped at topReferrerLimit.
func topReferrers(tree []Node) []TopReferrer {
	issuerByCode := make(map[string]string)
	for _, node := range tree {
		if node.InviteCodeIssued != "" {
			issuerByCode[strings.ToUpper(node.InviteCodeIssued)] = node.UserID
		}
	}

	counts := make(map[string]int)
	for _, node := range tree {
		if issuer, ok := issuerByCode[strings.ToUpper(node.ReferredByCode)]; ok {
			counts[issuer]++
		}
	}

	ranked := make([]TopReferrer, 0, len(counts))
	seen := map[string]struct{}{}
	for _, node := range tree {
		if _, dup := seen[node.UserID]; dup {
			continue
		}
		seen[node.UserID] = struct{}{}
		if n := counts[node.UserID]; n > 0 {
			ranked = append(ranked, TopReferrer{UserID: node.UserID, Referrals: n})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Referrals > ranked[j].Referrals
	})

	if len(ranked) > topReferrerLimit {
		ranked = ranked[:topReferrerLimit]
	}
	return ranked
}
