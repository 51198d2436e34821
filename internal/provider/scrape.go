package provider

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/carelane/waitboard/internal/extract"
	"github.com/carelane/waitboard/internal/model"
)

// ScrapeClient fetches a facility's public page and runs the heuristic
// extractor over it. It is both a routed provider in its own right and
// the fallback for every failed primary fetch.
type ScrapeClient struct {
	transport *Transport
	policy    HostPolicy
	extractor *extract.Extractor
	retries   int
}

// NewScrapeClient creates the HTML scrape client. One retry; scraping is
// the fallback tier.
func NewScrapeClient(transport *Transport, policy HostPolicy) *ScrapeClient {
	return &ScrapeClient{
		transport: transport,
		policy:    policy,
		extractor: extract.Default(),
		retries:   1,
	}
}

func (c *ScrapeClient) Kind() Kind {
	return KindHTMLScrape
}

func (c *ScrapeClient) Fetch(ctx context.Context, f model.Facility) (*model.WaitTimeRecord, error) {
	u, err := c.policy.ValidateWebsite(f.Website)
	if err != nil {
		return nil, err
	}

	body, err := c.transport.FetchBytes(ctx, u, c.retries)
	if err != nil {
		return nil, err
	}

	res, ok := c.extractor.Extract(string(body))
	if !ok {
		return nil, eris.Wrapf(ErrNoData, "no heuristic matched %s", u.Hostname())
	}

	return &model.WaitTimeRecord{
		FacilityID:     f.ID,
		PatientsInLine: res.Patients,
		Status:         res.Status,
		Provenance:     model.ProvenanceScraped,
		UpdatedAt:      c.transport.now()(),
	}, nil
}
