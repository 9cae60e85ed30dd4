// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package refstore

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/mzgrid/peakannotate/internal/httputil"
	"github.com/mzgrid/peakannotate/internal/mass"
	"github.com/mzgrid/peakannotate/pkg/types"
)

const (
	// DefaultRequestsPerSecond paces range queries against the remote
	// formula service.
	DefaultRequestsPerSecond = 50.0

	defaultRemoteTimeout = 30 * time.Second

	// pingMass is a known formula mass (glucose) used for the
	// preflight query.
	pingMass = "180.06339"
)

// RemoteFormulaSource queries a molecular-formula web service for
// records in a mass range. Requests are paced by a token limiter.
type RemoteFormulaSource struct {
	client    *http.Client
	limiter   *rate.Limiter
	baseURL   string
	userAgent string
}

// NewRemoteFormulaSource builds a client for the service at
// cfg.BaseURL.
func NewRemoteFormulaSource(cfg types.RemoteConfig) *RemoteFormulaSource {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}
	return &RemoteFormulaSource{
		client:    &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
	}
}

// Ping performs a single-mass preflight query so callers can fail fast
// before touching output tables.
func (r *RemoteFormulaSource) Ping(ctx context.Context) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}
	params := url.Values{
		"mass":     {pingMass},
		"tol":      {"0.0"},
		"tol_unit": {"ppm"},
		"rules":    {"1"},
	}
	var out struct {
		Records []remoteFormula `json:"records"`
	}
	reqURL := r.baseURL + "/api/formula/mass?" + params.Encode()
	if err := httputil.GetJSON(ctx, r.client, reqURL, r.userAgent, &out); err != nil {
		return fmt.Errorf("formula service unavailable: %w", err)
	}
	return nil
}

// remoteFormula mirrors the service's record shape: composition and
// rule flags arrive as nested objects.
type remoteFormula struct {
	ExactMass float64        `json:"exact_mass"`
	Atoms     map[string]int `json:"atoms"`
	Rules     struct {
		HC     int `json:"HC"`
		NOPSC  int `json:"NOPSC"`
		Lewis  int `json:"lewis"`
		Senior int `json:"senior"`
	} `json:"rules"`
	DoubleBondEquivalents float64 `json:"double_bond_equivalents"`
}

// Lookup returns all formulae with lo <= exact_mass <= hi from the
// remote service. The service does not report a CHNOPS flag; its
// records are CHNOPS by construction.
func (r *RemoteFormulaSource) Lookup(ctx context.Context, lo, hi float64, rules bool) ([]Formula, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	ruleFlag := "0"
	if rules {
		ruleFlag = "1"
	}
	params := url.Values{
		"lower": {strconv.FormatFloat(lo, 'f', -1, 64)},
		"upper": {strconv.FormatFloat(hi, 'f', -1, 64)},
		"rules": {ruleFlag},
	}

	var out struct {
		Records []remoteFormula `json:"records"`
	}
	reqURL := r.baseURL + "/api/formula/mass_range?" + params.Encode()
	if err := httputil.GetJSON(ctx, r.client, reqURL, r.userAgent, &out); err != nil {
		return nil, fmt.Errorf("querying formula service: %w", err)
	}

	formulae := make([]Formula, 0, len(out.Records))
	for _, rec := range out.Records {
		comp, _ := mass.Restrict(rec.Atoms)
		formulae = append(formulae, Formula{
			ExactMass:             rec.ExactMass,
			Composition:           comp,
			CHNOPS:                true,
			HC:                    rec.Rules.HC != 0,
			NOPSC:                 rec.Rules.NOPSC != 0,
			Lewis:                 rec.Rules.Lewis != 0,
			Senior:                rec.Rules.Senior != 0,
			DoubleBondEquivalents: rec.DoubleBondEquivalents,
		})
	}
	return formulae, nil
}
