package market

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Scanner produces the candidate opportunities for one cycle, ordered by
// expected value (highest first).
type Scanner interface {
	Scan(ctx context.Context) (ScanResult, error)
}

// Estimator returns the estimated true probability of the YES outcome.
// The default estimator returns the market price (zero edge); plug in a
// model here to generate signal.
type Estimator func(m GammaMarket) float64

// GammaMarket is the raw market payload from the Gamma API. Only the
// fields the scanner reads are mapped.
type GammaMarket struct {
	ConditionID string       `json:"condition_id"`
	Question    string       `json:"question"`
	Liquidity   float64      `json:"liquidity"`
	Active      bool         `json:"active"`
	Closed      bool         `json:"closed"`
	Tokens      []GammaToken `json:"tokens"`
}

type GammaToken struct {
	TokenID string  `json:"token_id"`
	Price   float64 `json:"price"`
}

// GammaScanner fetches active markets over HTTP and derives opportunities.
type GammaScanner struct {
	client        *resty.Client
	estimate      Estimator
	log           *zap.Logger
	fetchLimit    int
	minLiquidity  float64
	edgeThreshold float64
}

type GammaScannerConfig struct {
	BaseURL       string
	Timeout       time.Duration
	Retries       int
	FetchLimit    int
	MinLiquidity  float64
	EdgeThreshold float64
}

func NewGammaScanner(cfg GammaScannerConfig, est Estimator, log *zap.Logger) *GammaScanner {
	if est == nil {
		est = func(m GammaMarket) float64 {
			if len(m.Tokens) > 0 {
				return m.Tokens[0].Price
			}
			return 0.5
		}
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries)

	return &GammaScanner{
		client:        client,
		estimate:      est,
		log:           log,
		fetchLimit:    cfg.FetchLimit,
		minLiquidity:  cfg.MinLiquidity,
		edgeThreshold: cfg.EdgeThreshold,
	}
}

func (s *GammaScanner) Scan(ctx context.Context) (ScanResult, error) {
	var markets []GammaMarket

	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"limit":  fmt.Sprintf("%d", s.fetchLimit),
			"active": "true",
		}).
		SetResult(&markets).
		Get("/markets")
	if err != nil {
		return ScanResult{}, fmt.Errorf("fetch markets: %w", err)
	}
	if resp.IsError() {
		return ScanResult{}, fmt.Errorf("fetch markets: status %d", resp.StatusCode())
	}

	result := ScanResult{MarketsScanned: len(markets)}

	for _, m := range markets {
		if m.Closed {
			if res, ok := resolutionFor(m); ok {
				result.Resolutions = append(result.Resolutions, res)
			}
			continue
		}
		opp, ok := s.analyze(m)
		if !ok {
			continue
		}
		if err := opp.Validate(); err != nil {
			s.log.Warn("dropping malformed opportunity", zap.Error(err))
			continue
		}
		result.Opportunities = append(result.Opportunities, opp)
	}

	sort.SliceStable(result.Opportunities, func(i, j int) bool {
		return result.Opportunities[i].ExpectedValue > result.Opportunities[j].ExpectedValue
	})

	return result, nil
}

// analyze derives an opportunity from a single market, or reports that
// the market is not tradeable.
func (s *GammaScanner) analyze(m GammaMarket) (Opportunity, bool) {
	if m.ConditionID == "" || len(m.Tokens) < 2 {
		return Opportunity{}, false
	}
	if m.Liquidity < s.minLiquidity {
		return Opportunity{}, false
	}

	yesPrice := m.Tokens[0].Price
	noPrice := m.Tokens[1].Price
	if yesPrice <= 0 || yesPrice >= 1 || noPrice <= 0 || noPrice >= 1 {
		s.log.Warn("invalid prices", zap.String("market", m.ConditionID),
			zap.Float64("yes", yesPrice), zap.Float64("no", noPrice))
		return Opportunity{}, false
	}

	edge := s.estimate(m) - yesPrice
	if edge > -s.edgeThreshold && edge < s.edgeThreshold {
		return Opportunity{}, false
	}

	confidence := edge * 2
	if confidence < 0 {
		confidence = -confidence
	}
	if confidence > 1 {
		confidence = 1
	}

	side := SideBuy
	if edge < 0 {
		side = SideSell
	}

	return Opportunity{
		MarketID:      m.ConditionID,
		Question:      m.Question,
		Side:          side,
		Edge:          edge,
		Confidence:    confidence,
		CurrentPrice:  yesPrice,
		Liquidity:     m.Liquidity,
		ExpectedValue: ExpectedValuePerDollar(edge, yesPrice),
	}, true
}

// resolutionFor maps a settled market to its settlement price. Markets
// whose YES token has not pinned to 0 or 1 yet are skipped; they settle
// on a later scan.
func resolutionFor(m GammaMarket) (Resolution, bool) {
	if m.ConditionID == "" || len(m.Tokens) == 0 {
		return Resolution{}, false
	}
	p := m.Tokens[0].Price
	if p > 0.01 && p < 0.99 {
		return Resolution{}, false
	}
	if p <= 0.01 {
		p = 0
	} else {
		p = 1
	}
	return Resolution{MarketID: m.ConditionID, Price: p}, true
}
