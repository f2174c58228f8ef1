package processor

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/walletrank/walletrank/internal/cache"
	"github.com/walletrank/walletrank/internal/config"
	"github.com/walletrank/walletrank/internal/invite"
	"github.com/walletrank/walletrank/internal/metrics"
	"github.com/walletrank/walletrank/internal/nansen"
	"github.com/walletrank/walletrank/internal/referral"
	"github.com/walletrank/walletrank/internal/scoring"
	"github.com/walletrank/walletrank/internal/storage"
)

// ErrInviteNotFound is returned when the submitted invite code does not exist.
var ErrInviteNotFound = errors.New("invalid invite code")

// ErrUserNotFound is returned for lookups against unknown user ids.
var ErrUserNotFound = errors.New("user not found")

// DatasetFetcher fetches a wallet dataset from the data provider.
type DatasetFetcher interface {
	FetchDataset(ctx context.Context, address string) (*nansen.Dataset, error)
}

// Processor handles wallet analysis and invite analytics
type Processor struct {
	cfg         *config.Config
	db          *storage.DB
	provider    DatasetFetcher
	datasets    cache.Store
	allocator   *invite.Allocator
	log         *logrus.Logger
	walletLocks sync.Map // Per-wallet locks to prevent duplicate provider calls
}

// New creates a new processor
func New(
	cfg *config.Config,
	db *storage.DB,
	provider DatasetFetcher,
	datasets cache.Store,
	log *logrus.Logger,
) *Processor {
	return &Processor{
		cfg:       cfg,
		db:        db,
		provider:  provider,
		datasets:  datasets,
		allocator: invite.NewAllocator(),
		log:       log,
	}
}

// AnalyzeParams are the inputs to one analysis request.
type AnalyzeParams struct {
	WalletAddress string
	InviteCode    string
	UTMSource     string
	UTMMedium     string
	UTMCampaign   string
	GAClientID    string
}

// MetricsSummary is the per-metric view returned to the caller.
type MetricsSummary struct {
	HoldingConviction float64  `json:"holdingConviction"`
	TradingDiscipline float64  `json:"tradingDiscipline"`
	RealizedEdge      float64  `json:"realizedEdge"`
	BehaviorQuality   float64  `json:"behaviorQuality"`
	Traits            []string `json:"traits"`
}

// AnalyzeResult is the outcome of one analysis request.
type AnalyzeResult struct {
	UserID         string         `json:"userId"`
	Rank           string         `json:"rank"`
	Score          int            `json:"score"`
	Eligibility    bool           `json:"eligibility"`
	MetricsSummary MetricsSummary `json:"metricsSummary"`
	ShareCardID    string         `json:"shareCardId"`
}

// Portfolio is a stored wallet snapshot.
type Portfolio struct {
	UserID       string          `json:"userId"`
	Rank         string          `json:"rank"`
	Score        int             `json:"score"`
	Eligibility  bool            `json:"eligibility"`
	Portfolio    json.RawMessage `json:"portfolio"`
	SnapshotDate time.Time       `json:"snapshotDate"`
}

// AnalyzeWallet validates the invite code, scores the wallet (via cache or a
// fresh provider fetch) if it has not been seen before, persists the user and
// its artifacts, and returns the analysis.
func (p *Processor) AnalyzeWallet(ctx context.Context, params AnalyzeParams) (*AnalyzeResult, error) {
	start := time.Now()
	status := "error"
	defer func() {
		metrics.RecordAnalysis(time.Since(start), status)
	}()

	validInvite, err := p.db.FindInviteCodeByCode(ctx, strings.ToUpper(params.InviteCode))
	if err != nil {
		return nil, fmt.Errorf("find invite code: %w", err)
	}
	if validInvite == nil {
		status = "invalid_invite"
		return nil, ErrInviteNotFound
	}

	walletHash := hashWallet(params.WalletAddress)

	user, err := p.db.FindUserByWalletHash(ctx, walletHash)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	var summary MetricsSummary
	if user == nil {
		user, summary, err = p.analyzeNewWallet(ctx, params, validInvite.Code, walletHash)
		if err != nil {
			var provErr *nansen.ProviderError
			if errors.As(err, &provErr) {
				status = "provider_error"
			}
			return nil, err
		}
		status = "new"
	} else {
		summary = MetricsSummary{Traits: scoring.TraitsFor(scoring.Rank(user.Rank))}
		status = "existing"
	}

	return &AnalyzeResult{
		UserID:         user.ID,
		Rank:           user.Rank,
		Score:          user.Score,
		Eligibility:    user.Eligibility,
		MetricsSummary: summary,
		ShareCardID:    uuid.NewString(),
	}, nil
}

// analyzeNewWallet runs the full fetch-score-persist path for an unseen
// wallet. A per-wallet lock serializes concurrent requests for the same
// address so the provider is called once and one user row is created.
func (p *Processor) analyzeNewWallet(ctx context.Context, params AnalyzeParams, inviteCode, walletHash string) (*storage.User, MetricsSummary, error) {
	lockValue, _ := p.walletLocks.LoadOrStore(walletHash, &sync.Mutex{})
	lock := lockValue.(*sync.Mutex)
	lock.Lock()
	defer lock.Unlock()

	// Double-check after acquiring the lock
	user, err := p.db.FindUserByWalletHash(ctx, walletHash)
	if err != nil {
		return nil, MetricsSummary{}, fmt.Errorf("find user: %w", err)
	}
	if user != nil {
		return user, MetricsSummary{Traits: scoring.TraitsFor(scoring.Rank(user.Rank))}, nil
	}

	dataset, err := p.fetchDataset(ctx, params.WalletAddress, walletHash)
	if err != nil {
		return nil, MetricsSummary{}, err
	}

	breakdown := scoring.Score(dataset)
	rank, traits := scoring.Classify(breakdown)
	eligibility := breakdown.Eligible()

	user = &storage.User{
		WalletAddress:        strings.ToLower(params.WalletAddress),
		WalletAddressHash:    walletHash,
		ReferredByInviteCode: inviteCode,
		Rank:                 string(rank),
		Score:                breakdown.Composite,
		Eligibility:          eligibility,
		UTMSource:            params.UTMSource,
		UTMMedium:            params.UTMMedium,
		UTMCampaign:          params.UTMCampaign,
		GAClientID:           params.GAClientID,
	}
	userID, err := p.db.InsertUser(ctx, user)
	if err != nil {
		return nil, MetricsSummary{}, fmt.Errorf("insert user: %w", err)
	}

	if eligibility {
		issued, err := p.issueInviteCode(ctx, userID)
		if err != nil {
			// The user exists without an issued code; log and carry on
			// rather than failing the whole analysis.
			p.log.WithError(err).WithField("user_id", userID).Error("Failed to issue invite code")
		} else {
			user.InviteCodeIssued = issued
		}
	}

	if err := p.storeSnapshot(ctx, userID, dataset); err != nil {
		p.log.WithError(err).WithField("user_id", userID).Error("Failed to store portfolio snapshot")
	}

	p.recordAnalyzedEvent(ctx, userID, inviteCode, breakdown.Composite, string(rank), eligibility)

	metrics.RecordScore(breakdown.Composite, string(rank))

	p.log.WithFields(logrus.Fields{
		"user_id":     userID,
		"score":       breakdown.Composite,
		"rank":        rank,
		"eligibility": eligibility,
	}).Info("Wallet analyzed")

	return user, MetricsSummary{
		HoldingConviction: breakdown.HoldingConviction,
		TradingDiscipline: breakdown.TradingDiscipline,
		RealizedEdge:      breakdown.RealizedEdge,
		BehaviorQuality:   breakdown.BehaviorQuality,
		Traits:            traits,
	}, nil
}

// fetchDataset serves a cached dataset when present, otherwise fetches from
// the provider and caches the result. Scoring is deterministic, so a cache
// hit and a fresh fetch of the same data yield the same breakdown.
func (p *Processor) fetchDataset(ctx context.Context, address, walletHash string) (*nansen.Dataset, error) {
	if raw, ok := p.datasets.Get(ctx, walletHash); ok {
		var dataset nansen.Dataset
		if err := json.Unmarshal(raw, &dataset); err == nil {
			metrics.RecordCacheLookup(true)
			return &dataset, nil
		}
		// Corrupt cache entry, fall through to a fresh fetch.
		p.datasets.Delete(ctx, walletHash)
	}
	metrics.RecordCacheLookup(false)

	dataset, err := p.provider.FetchDataset(ctx, address)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(dataset); err == nil {
		p.datasets.Set(ctx, walletHash, raw, p.cfg.DatasetCacheTTL)
	}

	return dataset, nil
}

func (p *Processor) issueInviteCode(ctx context.Context, userID string) (string, error) {
	code, err := p.allocator.Generate(ctx, p.db.InviteCodeExists)
	if err != nil {
		return "", fmt.Errorf("generate invite code: %w", err)
	}

	if err := p.db.InsertInviteCode(ctx, &storage.InviteCode{
		Code:            code,
		CreatedByUserID: userID,
	}); err != nil {
		return "", fmt.Errorf("insert invite code: %w", err)
	}

	if err := p.db.UpdateUserInviteCodeIssued(ctx, userID, code); err != nil {
		return "", fmt.Errorf("update user invite code: %w", err)
	}

	metrics.InviteCodesGenerated.Inc()
	return code, nil
}

func (p *Processor) storeSnapshot(ctx context.Context, userID string, dataset *nansen.Dataset) error {
	raw, err := json.Marshal(dataset)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return p.db.InsertPortfolioSnapshot(ctx, &storage.PortfolioSnapshot{
		UserID:       userID,
		SnapshotJSON: string(raw),
	})
}

func (p *Processor) recordAnalyzedEvent(ctx context.Context, userID, inviteCode string, score int, rank string, eligibility bool) {
	meta, _ := json.Marshal(map[string]any{
		"inviteCode":  inviteCode,
		"score":       score,
		"rank":        rank,
		"eligibility": eligibility,
	})
	if err := p.db.InsertEvent(ctx, &storage.Event{
		UserID:       userID,
		EventType:    storage.EventWalletAnalyzed,
		MetadataJSON: string(meta),
	}); err != nil {
		p.log.WithError(err).WithField("user_id", userID).Error("Failed to record event")
	}
}

// GetPortfolio returns the latest stored snapshot for a user, together with
// the rank and score assigned at analysis time.
func (p *Processor) GetPortfolio(ctx context.Context, userID string) (*Portfolio, error) {
	user, err := p.db.FindUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	snapshot, err := p.db.FindLatestPortfolioSnapshot(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find snapshot: %w", err)
	}
	if snapshot == nil {
		return nil, ErrUserNotFound
	}
	return &Portfolio{
		UserID:       userID,
		Rank:         user.Rank,
		Score:        user.Score,
		Eligibility:  user.Eligibility,
		Portfolio:    json.RawMessage(snapshot.SnapshotJSON),
		SnapshotDate: time.Unix(snapshot.CreatedTS, 0).UTC(),
	}, nil
}

// CompleteShare marks a user's rank card as shared and records the event.
func (p *Processor) CompleteShare(ctx context.Context, userID string) error {
	user, err := p.db.FindUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}

	if err := p.db.UpdateUserShareCompleted(ctx, userID); err != nil {
		return fmt.Errorf("update share completed: %w", err)
	}

	if err := p.db.InsertEvent(ctx, &storage.Event{
		UserID:    userID,
		EventType: storage.EventShareCompleted,
	}); err != nil {
		p.log.WithError(err).WithField("user_id", userID).Error("Failed to record event")
	}
	return nil
}

// InviteStats computes referral-graph statistics for an invite code.
func (p *Processor) InviteStats(ctx context.Context, code string) (*referral.Stats, error) {
	start := time.Now()
	defer func() {
		metrics.RecordReferralStats(time.Since(start))
	}()

	stats, err := referral.ComputeStats(ctx, code, p.fetchDirectReferrals)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (p *Processor) fetchDirectReferrals(ctx context.Context, code string) ([]referral.Node, error) {
	users, err := p.db.FindUsersByReferredByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	nodes := make([]referral.Node, 0, len(users))
	for _, u := range users {
		nodes = append(nodes, referral.Node{
			UserID:           u.ID,
			InviteCodeIssued: u.InviteCodeIssued,
			ReferredByCode:   u.ReferredByInviteCode,
			Rank:             u.Rank,
			Eligibility:      u.Eligibility,
		})
	}
	return nodes, nil
}

// EnsureSeedInviteCodes inserts configured root codes that are not present
// yet, so a fresh deployment has entry points into the referral graph.
func (p *Processor) EnsureSeedInviteCodes(ctx context.Context) error {
	for _, code := range p.cfg.SeedInviteCodes {
		code = strings.ToUpper(code)
		exists, err := p.db.InviteCodeExists(ctx, code)
		if err != nil {
			return fmt.Errorf("check seed code %s: %w", code, err)
		}
		if exists {
			continue
		}
		if err := p.db.InsertInviteCode(ctx, &storage.InviteCode{Code: code, SourceKol: "seed"}); err != nil {
			return fmt.Errorf("insert seed code %s: %w", code, err)
		}
		p.log.WithField("code", code).Info("Seeded invite code")
	}
	return nil
}

// PurgeDatasetCache drops expired cache entries.
func (p *Processor) PurgeDatasetCache(ctx context.Context) {
	p.datasets.Purge(ctx)
}

/// hashWallet derives the stable wallet identifier: sha256 of the lowercased
// address, hex encoded. Doubles as the dataset cache key.
func hashWallet(address string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(address)))
	return fmt.Sprintf("%x", sum)
}
