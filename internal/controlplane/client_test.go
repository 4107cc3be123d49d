package controlplane

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/LUELIS/CRM-JULIEN-RONOT-V2-sub001/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func envelope(t *testing.T, inner any) []byte {
	t.Helper()
	data, err := json.Marshal(inner)
	if err != nil {
		t.Fatalf("marshal inner: %v", err)
	}
	wrapped, err := json.Marshal(map[string]any{
		"result": map[string]any{
			"data": map[string]any{"json": json.RawMessage(data)},
		},
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return wrapped
}

func TestListProjectsParsesEnvelope(t *testing.T) {
	var gotMethod, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.URL.Path
		gotKey = r.Header.Get("X-Api-Key")
		w.Write(envelope(t, []Project{
			{ProjectID: "p1", Name: "billing", Environments: []Environment{
				{EnvironmentID: "e1", Applications: []Application{{ApplicationID: "a1", Name: "api"}}},
			}},
		}))
	}))
	defer srv.Close()

	client := NewClient(domain.Server{ID: "srv-1", Name: "edge", BaseURL: srv.URL, APIKey: "secret"}, time.Second, testLogger())
	projects, err := client.ListProjects(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotMethod != "/api/rpc/project.all" {
		t.Fatalf("unexpected rpc path: %s", gotMethod)
	}
	if gotKey != "secret" {
		t.Fatalf("api key not sent, got %q", gotKey)
	}
	if len(projects) != 1 || projects[0].Name != "billing" {
		t.Fatalf("unexpected projects: %+v", projects)
	}
}

func TestListDeploymentsSelectsMethodByKind(t *testing.T) {
	paths := make([]string, 0)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.Write(envelope(t, []deploymentPayload{}))
	}))
	defer srv.Close()

	client := NewClient(domain.Server{BaseURL: srv.URL}, time.Second, testLogger())
	app := domain.TrackableUnit{UnitID: "a1", Kind: domain.UnitKindApplication}
	group := domain.TrackableUnit{UnitID: "g1", Kind: domain.UnitKindGroup}

	if _, err := client.ListDeployments(context.Background(), app); err != nil {
		t.Fatalf("application fetch failed: %v", err)
	}
	if _, err := client.ListDeployments(context.Background(), group); err != nil {
		t.Fatalf("group fetch failed: %v", err)
	}

	if paths[0] != "/api/rpc/deployment.all" {
		t.Fatalf("unexpected application method: %s", paths[0])
	}
	if paths[1] != "/api/rpc/deployment.allByCompose" {
		t.Fatalf("unexpected group method: %s", paths[1])
	}
}

func TestListDeploymentsTruncatesToRecentWindow(t *testing.T) {
	payloads := make([]deploymentPayload, 0, 8)
	for i := 0; i < 8; i++ {
		payloads = append(payloads, deploymentPayload{
			DeploymentID: string(rune('a' + i)),
			Status:       domain.DeployStatusDone,
			CreatedAt:    time.Now(),
		})
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(envelope(t, payloads))
	}))
	defer srv.Close()

	client := NewClient(domain.Server{BaseURL: srv.URL}, time.Second, testLogger())
	records, err := client.ListDeployments(context.Background(), domain.TrackableUnit{UnitID: "a1", Kind: domain.UnitKindApplication})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != recentWindow {
		t.Fatalf("expected %d records, got %d", recentWindow, len(records))
	}
}

func TestClientReturnsAPIErrorOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(domain.Server{BaseURL: srv.URL}, time.Second, testLogger())
	_, err := client.ListProjects(context.Background())
	apiErr, ok := err.(APIError)
	if !ok {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadGateway {
		t.Fatalf("unexpected status: %d", apiErr.Status)
	}
}

func TestClientHonorsTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	client := NewClient(domain.Server{BaseURL: srv.URL}, 50*time.Millisecond, testLogger())
	start := time.Now()
	_, err := client.ListProjects(context.Background())
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if time.Since(start) > time.Second {
		t.Fatalf("timeout not enforced, took %s", time.Since(start))
	}
}
