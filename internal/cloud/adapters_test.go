package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func testTokens() oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token", TokenType: "Bearer"})
}

func testOptions(url string) []Option {
	return []Option{
		WithBaseURL(url),
		WithClock(func() time.Time { return fixedNow }),
		WithRateLimit(1000),
	}
}

type staticAccount string

func (a staticAccount) AccountID() (string, error) { return string(a), nil }

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func TestComputeListResourcesPaginates(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/instances", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "2026-03-09", r.URL.Query().Get("version"))
		assert.Equal(t, "2", r.URL.Query().Get("generation"))
		assert.Equal(t, "rg-1", r.URL.Query().Get("resource_group.id"))

		atomic.AddInt32(&calls, 1)
		if r.URL.Query().Get("start") == "" {
			writeJSON(w, map[string]any{
				"instances": []map[string]any{
					{"id": "0717-aaa", "name": "web-1", "status": "running", "zone": map[string]string{"name": "us-south-1"}},
					{"id": "0717-bbb", "name": "web-2", "status": "stopped"},
				},
				"next": map[string]string{"href": "https://us-south.iaas.cloud.ibm.com/v1/instances?start=page2&limit=100"},
			})
			return
		}
		assert.Equal(t, "page2", r.URL.Query().Get("start"))
		writeJSON(w, map[string]any{
			"instances": []map[string]any{
				{"id": "0717-ccc", "name": "db-1", "status": "resuming"},
			},
		})
	}))
	defer server.Close()

	p := NewComputeProvider(testTokens(), nil, testOptions(server.URL)...)
	resources, err := p.ListResources(context.Background(), "us-south", "rg-1")
	require.NoError(t, err)
	require.Len(t, resources, 3)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	assert.Equal(t, "web-1", resources[0].Name)
	assert.Equal(t, StatusRunning, resources[0].Status)
	assert.Equal(t, "us-south-1", resources[0].Attr("zone"))
	assert.Equal(t, "-", resources[1].Attr("zone"))
	assert.Equal(t, StatusStarting, resources[2].Status)
	assert.Equal(t, "resuming", resources[2].NativeStatus)
	assert.Equal(t, FamilyCompute, resources[2].Family)
	assert.Equal(t, "us-south", resources[2].Region)
}

func TestComputeErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   Kind
	}{
		{"unauthorized", http.StatusUnauthorized, KindAuth},
		{"forbidden", http.StatusForbidden, KindPermission},
		{"unknown region", http.StatusNotFound, KindInvalidRegion},
		{"throttled", http.StatusTooManyRequests, KindNetwork},
		{"server error", http.StatusBadGateway, KindNetwork},
		{"bad request", http.StatusBadRequest, KindInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				writeJSON(w, map[string]any{"errors": []map[string]string{{"message": "nope"}}})
			}))
			defer server.Close()

			p := NewComputeProvider(testTokens(), nil, testOptions(server.URL)...)
			_, err := p.ListResources(context.Background(), "us-south", "")
			require.Error(t, err)
			assert.Equal(t, tt.want, KindOf(err))
			assert.Contains(t, err.Error(), "nope")
		})
	}
}

func TestComputeTimeoutIsNetworkError(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	opts := append(testOptions(server.URL), WithTimeout(50*time.Millisecond))
	p := NewComputeProvider(testTokens(), nil, opts...)
	_, err := p.ListResources(context.Background(), "us-south", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNetwork))
}

func TestComputeTokenFailureKeepsAuthKind(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not reach the server without a token")
	}))
	defer server.Close()

	p := NewComputeProvider(failingTokens{}, nil, testOptions(server.URL)...)
	_, err := p.ListResources(context.Background(), "us-south", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuth))
}

type failingTokens struct{}

func (failingTokens) Token() (*oauth2.Token, error) {
	return nil, Errorf(KindAuth, "current token", "token expired")
}

func TestComputePerformAction(t *testing.T) {
	var body map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/instances/0717-aaa/actions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, map[string]string{"type": body["type"], "status": "pending"})
	}))
	defer server.Close()

	p := NewComputeProvider(testTokens(), nil, testOptions(server.URL)...)
	require.NoError(t, p.PerformAction(context.Background(), "us-south", "0717-aaa", ActionStop))
	assert.Equal(t, "stop", body["type"])
}

func TestComputePerformActionConflict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		writeJSON(w, map[string]any{"errors": []map[string]string{{"message": "instance is already stopped"}}})
	}))
	defer server.Close()

	p := NewComputeProvider(testTokens(), nil, testOptions(server.URL)...)
	err := p.PerformAction(context.Background(), "us-south", "0717-aaa", ActionStop)
	assert.True(t, IsKind(err, KindInvalidStateTransition))
}

func TestComputeDescribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/instances/0717-aaa", r.URL.Path)
		writeJSON(w, map[string]any{
			"id": "0717-aaa", "name": "web-1", "status": "running",
			"crn":     "crn:v1:bluemix:public:is:us-south-1:a/123::instance:0717-aaa",
			"profile": map[string]string{"name": "bx2-2x8"},
			"vcpu":    map[string]any{"count": 2, "architecture": "amd64"},
			"memory":  8,
			"primary_network_interface": map[string]any{
				"primary_ip": map[string]string{"address": "10.240.0.4"},
			},
		})
	}))
	defer server.Close()

	p := NewComputeProvider(testTokens(), nil, testOptions(server.URL)...)
	detail, err := p.Describe(context.Background(), "us-south", "0717-aaa")
	require.NoError(t, err)
	assert.Equal(t, "web-1", detail.Name)
	assert.Contains(t, detail.CRN, "0717-aaa")
	assert.Equal(t, "10.240.0.4", detail.Attr("primary_ip"))
	assert.Contains(t, detail.Fields, Field{Name: "Memory", Value: "8 GiB"})
}

func TestClusterListFiltersByTypeAndRegion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/global/v2/vpc/getClusters", r.URL.Path)
		assert.Equal(t, "rg-1", r.Header.Get("X-Auth-Resource-Group"))
		writeJSON(w, []map[string]any{
			{"id": "c1", "name": "iks-a", "region": "us-south", "type": "kubernetes", "state": "normal", "workerCount": 3},
			{"id": "c2", "name": "roks-a", "region": "us-south", "type": "openshift", "state": "warning"},
			{"id": "c3", "name": "iks-b", "region": "eu-de", "type": "kubernetes", "state": "normal"},
			{"id": "c4", "name": "iks-c", "region": "us-south", "type": "kubernetes", "state": "mystery"},
		})
	}))
	defer server.Close()

	iks := NewClusterProvider(FamilyKubernetes, testTokens(), nil, nil, testOptions(server.URL)...)
	resources, err := iks.ListResources(context.Background(), "us-south", "rg-1")
	require.NoError(t, err)
	require.Len(t, resources, 2)
	assert.Equal(t, "iks-a", resources[0].Name)
	assert.Equal(t, "3", resources[0].Attr("workers"))
	assert.Equal(t, StatusPending, resources[1].Status)

	roks := NewClusterProvider(FamilyOpenShift, testTokens(), nil, nil, testOptions(server.URL)...)
	resources, err = roks.ListResources(context.Background(), "us-south", "rg-1")
	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Equal(t, StatusWarning, resources[0].Status)
	assert.Equal(t, FamilyOpenShift, resources[0].Family)
}

func TestClusterRejectsLifecycleActions(t *testing.T) {
	p := NewClusterProvider(FamilyKubernetes, testTokens(), nil, nil)
	assert.False(t, p.Supports(ActionStop))
	assert.True(t, p.Supports(ActionLoadDetail))

	err := p.PerformAction(context.Background(), "us-south", "c1", ActionStop)
	assert.True(t, IsKind(err, KindInvalidRequest))
}

type regionsFunc func(ctx context.Context) ([]Region, error)

func (f regionsFunc) ListRegions(ctx context.Context) ([]Region, error) { return f(ctx) }

func TestClusterRegions(t *testing.T) {
	vpc := regionsFunc(func(ctx context.Context) ([]Region, error) {
		return []Region{{Name: "us-south", Available: true}, {Name: "mars-north", Available: true}}, nil
	})
	p := NewClusterProvider(FamilyKubernetes, testTokens(), nil, vpc)
	regions, err := p.ListRegions(context.Background())
	require.NoError(t, err)
	require.Len(t, regions, 1)
	assert.Equal(t, "us-south", regions[0].Name)

	down := regionsFunc(func(ctx context.Context) ([]Region, error) {
		return nil, Errorf(KindNetwork, "list regions", "connection reset")
	})
	p = NewClusterProvider(FamilyKubernetes, testTokens(), nil, down)
	regions, err = p.ListRegions(context.Background())
	require.NoError(t, err)
	assert.Len(t, regions, len(containerRegions))

	denied := regionsFunc(func(ctx context.Context) ([]Region, error) {
		return nil, Errorf(KindPermission, "list regions", "forbidden")
	})
	p = NewClusterProvider(FamilyKubernetes, testTokens(), nil, denied)
	_, err = p.ListRegions(context.Background())
	assert.True(t, IsKind(err, KindPermission))
}

func TestServerlessDescribeCountsComponents(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/projects/p1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"id": "p1", "name": "demo", "status": "active", "region": "us-east"})
	})
	mux.HandleFunc("/v2/projects/p1/apps", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"apps": []map[string]string{{"name": "a"}, {"name": "b"}}})
	})
	mux.HandleFunc("/v2/projects/p1/jobs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"jobs": []map[string]string{{"name": "j"}}})
	})
	mux.HandleFunc("/v2/projects/p1/builds", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"builds": []map[string]string{}})
	})
	mux.HandleFunc("/v2/projects/p1/secrets", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"secrets": []map[string]string{{"name": "s1"}, {"name": "s2"}, {"name": "s3"}}})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	p := NewServerlessProvider(testTokens(), nil, testOptions(server.URL)...)
	detail, err := p.Describe(context.Background(), "us-east", "p1")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, detail.Status)
	assert.Equal(t, "2", detail.Attr("apps"))
	assert.Equal(t, "1", detail.Attr("jobs"))
	assert.Equal(t, "0", detail.Attr("builds"))
	assert.Equal(t, "3", detail.Attr("secrets"))
}

func TestServerlessListResources(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/projects", r.URL.Path)
		assert.Equal(t, "rg-2", r.URL.Query().Get("resource_group_id"))
		if r.URL.Query().Get("start") == "" {
			writeJSON(w, map[string]any{
				"projects": []map[string]string{{"id": "p1", "name": "demo", "status": "active"}},
				"next":     map[string]string{"start": "tok"},
			})
			return
		}
		writeJSON(w, map[string]any{
			"projects": []map[string]string{{"id": "p2", "name": "batch", "status": "soft_deleted"}},
		})
	}))
	defer server.Close()

	p := NewServerlessProvider(testTokens(), nil, testOptions(server.URL)...)
	resources, err := p.ListResources(context.Background(), "us-east", "rg-2")
	require.NoError(t, err)
	require.Len(t, resources, 2)
	assert.Equal(t, StatusStopped, resources[1].Status)
	assert.Equal(t, "us-east", resources[1].Region)
}

func TestResourceGroupsSortedWithAccount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/resource_groups", r.URL.Path)
		assert.Equal(t, "acct-123", r.URL.Query().Get("account_id"))
		writeJSON(w, map[string]any{
			"resources": []map[string]any{
				{"id": "2", "name": "prod", "state": "ACTIVE"},
				{"id": "1", "name": "Default", "state": "ACTIVE", "default": true},
			},
		})
	}))
	defer server.Close()

	rc := NewResourceController(testTokens(), staticAccount("acct-123"), testOptions(server.URL)...)
	groups, err := rc.ListResourceGroups(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "Default", groups[0].Name)
	assert.True(t, groups[0].Default)
}

func TestNewProvidersCoversEveryFamily(t *testing.T) {
	providers := NewProviders(testTokens(), staticAccount("acct"))
	for _, f := range Families {
		p, ok := providers[f]
		require.True(t, ok, f)
		assert.Equal(t, f, p.Family())
	}
}
