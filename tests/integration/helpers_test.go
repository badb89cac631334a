//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/bissquit/onestop-itsm/internal/domain"
	"github.com/bissquit/onestop-itsm/internal/testutil"
	"github.com/stretchr/testify/require"
)

// loginBurst is the per-user login bucket size used by the test app.
const loginBurst = 20

type incidentEnvelope struct {
	Data domain.Incident `json:"data"`
}

type incidentList struct {
	Data []domain.Incident `json:"data"`
}

// createIncident creates an incident and returns it.
func createIncident(t *testing.T, client *testutil.Client, payload map[string]interface{}) domain.Incident {
	t.Helper()

	resp, err := client.POST("/api/v1/incidents", payload)
	require.NoError(t, err)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create incident: status=%d body=%s", resp.StatusCode, testutil.ReadBody(t, resp))
	}

	var result incidentEnvelope
	testutil.DecodeJSON(t, resp, &result)
	return result.Data
}

// listIncidents returns the incidents visible to the client for the query.
func listIncidents(t *testing.T, client *testutil.Client, query string) []domain.Incident {
	t.Helper()

	path := "/api/v1/incidents"
	if query != "" {
		path += "?" + query
	}
	resp, err := client.GET(path)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result incidentList
	testutil.DecodeJSON(t, resp, &result)
	return result.Data
}

func incidentIDs(list []domain.Incident) []string {
	ids := make([]string, 0, len(list))
	for _, inc := range list {
		ids = append(ids, inc.ID)
	}
	return ids
}
