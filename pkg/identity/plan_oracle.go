package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// PlanOracle answers whether an identity currently holds a subscription
// plan. Called once per allocation attempt by the credit ledger.
type PlanOracle interface {
	HasPlan(ctx context.Context, externalID, planID string) (bool, error)
}

type PlanOracleConfig struct {
	BaseURL  string
	APIKey   string
	CacheTTL time.Duration
}

// HTTPPlanOracle queries the identity provider's billing API. Results are
// memoized briefly; plan changes take effect on the next cache expiry.
type HTTPPlanOracle struct {
	baseURL string
	apiKey  string
	client  *http.Client
	cache   *gocache.Cache
}

func NewHTTPPlanOracle(cfg PlanOracleConfig) *HTTPPlanOracle {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &HTTPPlanOracle{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: 10 * time.Second},
		cache:   gocache.New(ttl, 2*ttl),
	}
}

func (o *HTTPPlanOracle) HasPlan(ctx context.Context, externalID, planID string) (bool, error) {
	cacheKey := externalID + ":" + planID
	if cached, found := o.cache.Get(cacheKey); found {
		return cached.(bool), nil
	}

	url := fmt.Sprintf("%s/v1/users/%s/plans/%s", o.baseURL, externalID, planID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("failed to build plan request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to query plan: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		o.cache.SetDefault(cacheKey, false)
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("plan lookup returned status %d", resp.StatusCode)
	}

	var body struct {
		HasPlan bool `json:"has_plan"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("failed to decode plan response: %w", err)
	}

	o.cache.SetDefault(cacheKey, body.HasPlan)
	return body.HasPlan, nil
}
