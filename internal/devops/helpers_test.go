package devops

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/reviewpilot/reviewpilot/internal/auth"
	"github.com/reviewpilot/reviewpilot/pkg/models"
)

type record struct {
	ID int `json:"id"`
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	cred, err := auth.NewCredential("pat-value", auth.SchemeBasic)
	require.NoError(t, err)
	c, err := NewClient(Config{Credential: cred, Limiter: rate.NewLimiter(rate.Inf, 1)})
	require.NoError(t, err)
	return c
}

func testRef(serverURL string) models.PullRequestRef {
	return models.PullRequestRef{CollectionURI: serverURL + "/org", Project: "proj", Repository: "repo", ID: 42}
}

// pagedServer serves total records honoring $top/$skip and counts requests.
func pagedServer(t *testing.T, total int, requests *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(requests, 1)
		top, _ := strconv.Atoi(r.URL.Query().Get("$top"))
		skip, _ := strconv.Atoi(r.URL.Query().Get("$skip"))
		var page []record
		for i := skip; i < total && i < skip+top; i++ {
			page = append(page, record{ID: i + 1})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"value": page, "count": len(page)})
	}))
	t.Cleanup(srv.Close)
	return srv
}
