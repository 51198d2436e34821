package provider

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/carelane/waitboard/internal/model"
)

// minutesResponse is the generic health-records wait payload.
type minutesResponse struct {
	Time *int `json:"time"`
}

// HealthRecordsClient reads the generic minutes API exposed by EHR
// portals: a single wait-minutes integer, no queue telemetry.
type HealthRecordsClient struct {
	transport *Transport
	policy    HostPolicy
	retries   int
}

// NewHealthRecordsClient creates the minutes provider client.
func NewHealthRecordsClient(transport *Transport, policy HostPolicy) *HealthRecordsClient {
	return &HealthRecordsClient{transport: transport, policy: policy, retries: 1}
}

func (c *HealthRecordsClient) Kind() Kind {
	return KindHealthRecords
}

func (c *HealthRecordsClient) Fetch(ctx context.Context, f model.Facility) (*model.WaitTimeRecord, error) {
	u, err := c.policy.ValidateAPI(f.APIEndpoint)
	if err != nil {
		return nil, err
	}

	body, err := c.transport.FetchBytes(ctx, u, c.retries)
	if err != nil {
		return nil, err
	}

	var resp minutesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrapf(ErrDecode, "minutes payload: %v", err)
	}
	if resp.Time == nil || *resp.Time < 0 {
		return nil, eris.Wrap(ErrNoData, "minutes payload missing time field")
	}

	return &model.WaitTimeRecord{
		FacilityID:  f.ID,
		WaitMinutes: *resp.Time,
		Status:      model.StatusOpen,
		Provenance:  model.ProvenanceObserved,
		UpdatedAt:   c.transport.now()(),
	}, nil
}
