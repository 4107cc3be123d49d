package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/LUELIS/CRM-JULIEN-RONOT-V2-sub001/internal/domain"
)

// recentWindow bounds how much deployment history a single poll considers.
// Older history is replayed by the control plane on every call and is
// irrelevant to reconciliation.
const recentWindow = 5

// Client provides typed access to one control plane's RPC endpoint.
type Client struct {
	server     domain.Server
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient constructs a client for one server. Every call shares the same
// hard timeout; there are no retries, the next scheduled run is the retry.
func NewClient(server domain.Server, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		server:     server,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "controlplane", "server", server.Name),
	}
}

// Project is one project with its nested environments as returned by the
// control plane.
type Project struct {
	ProjectID    string        `json:"projectId"`
	Name         string        `json:"name"`
	Environments []Environment `json:"environments"`
}

// Environment groups applications and compose stacks.
type Environment struct {
	EnvironmentID string         `json:"environmentId"`
	Name          string         `json:"name"`
	Applications  []Application  `json:"applications"`
	Compose       []ComposeStack `json:"compose"`
}

// Application is a singleton deployable with optional source metadata.
type Application struct {
	ApplicationID     string `json:"applicationId"`
	Name              string `json:"name"`
	ApplicationStatus string `json:"applicationStatus"`
	Repository        string `json:"repository"`
	Owner             string `json:"owner"`
	Branch            string `json:"branch"`
}

// ComposeStack is a multi-container deployable group.
type ComposeStack struct {
	ComposeID     string `json:"composeId"`
	Name          string `json:"name"`
	ComposeStatus string `json:"composeStatus"`
}

// Domain is one public host attached to an application.
type Domain struct {
	Host  string `json:"host"`
	HTTPS bool   `json:"https"`
}

type deploymentPayload struct {
	DeploymentID string     `json:"deploymentId"`
	Title        string     `json:"title"`
	Status       string     `json:"status"`
	ErrorMessage string     `json:"errorMessage"`
	CreatedAt    time.Time  `json:"createdAt"`
	StartedAt    *time.Time `json:"startedAt"`
	FinishedAt   *time.Time `json:"finishedAt"`
}

// APIError represents a non-2xx response from a control plane.
type APIError struct {
	Status int
	Method string
}

func (e APIError) Error() string {
	return fmt.Sprintf("control plane call %s failed with status %d", e.Method, e.Status)
}

// ListProjects fetches all projects with their nested environments.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var projects []Project
	if err := c.rpc(ctx, "project.all", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// ListDeployments fetches the recent deployment history for one unit. The
// result is truncated to the recent window regardless of how much the
// control plane replays.
func (c *Client) ListDeployments(ctx context.Context, unit domain.TrackableUnit) ([]domain.DeploymentRecord, error) {
	var (
		method string
		params map[string]string
	)
	switch unit.Kind {
	case domain.UnitKindGroup:
		method = "deployment.allByCompose"
		params = map[string]string{"composeId": unit.UnitID}
	default:
		method = "deployment.all"
		params = map[string]string{"applicationId": unit.UnitID}
	}

	var payloads []deploymentPayload
	if err := c.rpc(ctx, method, params, &payloads); err != nil {
		return nil, err
	}
	if len(payloads) > recentWindow {
		payloads = payloads[:recentWindow]
	}

	records := make([]domain.DeploymentRecord, 0, len(payloads))
	for _, p := range payloads {
		records = append(records, domain.DeploymentRecord{
			ID:           p.DeploymentID,
			Title:        p.Title,
			Status:       p.Status,
			ErrorMessage: p.ErrorMessage,
			CreatedAt:    p.CreatedAt,
			StartedAt:    p.StartedAt,
			FinishedAt:   p.FinishedAt,
		})
	}
	return records, nil
}

// ListDomains fetches the public hosts attached to one application.
func (c *Client) ListDomains(ctx context.Context, applicationID string) ([]Domain, error) {
	var domains []Domain
	params := map[string]string{"applicationId": applicationID}
	if err := c.rpc(ctx, "domain.byApplicationId", params, &domains); err != nil {
		return nil, err
	}
	return domains, nil
}

// rpc performs one call against the server's RPC endpoint. Requests carry the
// method's parameters in a json wrapper and responses arrive in a result
// envelope; both shapes are isolated here so callers only see typed values.
func (c *Client) rpc(ctx context.Context, method string, params any, out any) error {
	body, err := json.Marshal(map[string]any{"json": params})
	if err != nil {
		return fmt.Errorf("encode %s params: %w", method, err)
	}

	endpoint := strings.TrimRight(c.server.BaseURL, "/") + "/api/rpc/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.server.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return APIError{Status: resp.StatusCode, Method: method}
	}

	var envelope struct {
		Result struct {
			Data struct {
				JSON json.RawMessage `json:"json"`
			} `json:"data"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode %s envelope: %w", method, err)
	}
	if len(envelope.Result.Data.JSON) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Result.Data.JSON, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}
