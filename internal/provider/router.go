package provider

import (
	"strings"

	"github.com/carelane/waitboard/internal/model"
)

// Kind is the closed set of provider families a facility resolves to.
type Kind string

const (
	KindStructuredQueue  Kind = "structured_queue"
	KindSlotAvailability Kind = "slot_availability"
	KindHealthRecords    Kind = "health_records"
	KindHTMLScrape       Kind = "html_scrape"
	KindSynthetic        Kind = "synthetic"
)

// idPrefixRoutes maps facility-identifier prefixes to provider families.
// Checked first; order matters because earlier entries win.
var idPrefixRoutes = []struct {
	prefix string
	kind   Kind
}{
	{"cw-", KindStructuredQueue},
	{"solv-", KindSlotAvailability},
	{"ehr-", KindHealthRecords},
	{"web-", KindHTMLScrape},
	{"demo-", KindSynthetic},
}

// endpointRoutes maps endpoint-URL fragments to provider families,
// consulted when no identifier prefix matched.
var endpointRoutes = []struct {
	fragment string
	kind     Kind
}{
	{"clockwisemd.com", KindStructuredQueue},
	{"solvhealth.com", KindSlotAvailability},
	{"/appointment_slots", KindSlotAvailability},
	{"mychart", KindHealthRecords},
	{"/wait_time", KindHealthRecords},
}

// Route resolves which provider family serves a facility. Pure function
// of facility data; resolution order is identifier prefix, then endpoint
// fragment, then the structured queue API for backward compatibility.
func Route(f model.Facility) Kind {
	if f.SyntheticOnly {
		return KindSynthetic
	}

	id := strings.ToLower(f.ID)
	for _, r := range idPrefixRoutes {
		if strings.HasPrefix(id, r.prefix) {
			return r.kind
		}
	}

	endpoint := strings.ToLower(f.APIEndpoint)
	if endpoint != "" {
		for _, r := range endpointRoutes {
			if strings.Contains(endpoint, r.fragment) {
				return r.kind
			}
		}
	}

	return KindStructuredQueue
}
