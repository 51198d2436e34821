package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelane/waitboard/internal/model"
)

func TestHealthRecords_ReadsMinutes(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"time": 35}`))
	}))
	defer srv.Close()

	tr, _ := newTestTransport(srv)
	client := NewHealthRecordsClient(tr, serverPolicy(srv))

	f := model.Facility{ID: "ehr-stvincent-er", APIEndpoint: srv.URL + "/wait_time"}
	rec, err := client.Fetch(context.Background(), f)
	require.NoError(t, err)

	assert.Equal(t, 35, rec.WaitMinutes)
	assert.Equal(t, model.StatusOpen, rec.Status)
	assert.Equal(t, model.ProvenanceObserved, rec.Provenance)
	assert.Zero(t, rec.PatientsInLine)
}

func TestHealthRecords_MissingTimeFieldIsNoData(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	tr, _ := newTestTransport(srv)
	client := NewHealthRecordsClient(tr, serverPolicy(srv))

	f := model.Facility{ID: "ehr-x", APIEndpoint: srv.URL + "/wait_time"}
	_, err := client.Fetch(context.Background(), f)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestHealthRecords_MalformedPayloadIsDecodeError(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`forty minutes or so`))
	}))
	defer srv.Close()

	tr, _ := newTestTransport(srv)
	client := NewHealthRecordsClient(tr, serverPolicy(srv))

	f := model.Facility{ID: "ehr-x", APIEndpoint: srv.URL + "/wait_time"}
	_, err := client.Fetch(context.Background(), f)
	assert.ErrorIs(t, err, ErrDecode)
}
