package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agrisync/agrisync/internal/domain"
	"github.com/agrisync/agrisync/internal/logger"
	"github.com/agrisync/agrisync/pkg/errors"
	"github.com/rs/zerolog"
)

const defaultTimeout = 15 * time.Second

// Client talks to the registration backend's JSON API.
type Client struct {
	log     zerolog.Logger
	baseURL *url.URL
	http    *http.Client
}

func NewClient(log logger.Logger, cfg domain.RemoteConfig) (*Client, error) {
	base, err := parseBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	return &Client{
		log:     log.With().Str("module", "api").Logger(),
		baseURL: base,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// ListFarmers fetches every farmer visible to this device.
func (c *Client) ListFarmers(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/api/v1/farmers")
}

// ListFarmsByFarmer fetches the farms mapped for one farmer.
func (c *Client) ListFarmsByFarmer(ctx context.Context, farmerID string) (json.RawMessage, error) {
	return c.get(ctx, "/api/v1/farmers/"+url.PathEscape(farmerID)+"/farms")
}

// ListClusters fetches the cluster directory.
func (c *Client) ListClusters(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/api/v1/clusters")
}

func (c *Client) CreateFarmer(ctx context.Context, payload json.RawMessage) error {
	return c.send(ctx, http.MethodPost, "/api/v1/farmers", domain.EntityTypeFarmer, payload)
}

func (c *Client) UpdateFarmer(ctx context.Context, payload json.RawMessage) error {
	id, err := payloadID(payload)
	if err != nil {
		return err
	}
	return c.send(ctx, http.MethodPut, "/api/v1/farmers/"+url.PathEscape(id), domain.EntityTypeFarmer, payload)
}

func (c *Client) CreateFarm(ctx context.Context, payload json.RawMessage) error {
	return c.send(ctx, http.MethodPost, "/api/v1/farms", domain.EntityTypeFarm, payload)
}

func (c *Client) UpdateFarm(ctx context.Context, payload json.RawMessage) error {
	id, err := payloadID(payload)
	if err != nil {
		return err
	}
	return c.send(ctx, http.MethodPut, "/api/v1/farms/"+url.PathEscape(id), domain.EntityTypeFarm, payload)
}

// RegisterWriters binds every write endpoint to the sync queue's
// writer table so replayed operations reach the right endpoint.
func (c *Client) RegisterWriters(reg interface {
	RegisterWriter(entityType string, kind domain.OpKind, w domain.RemoteWriter)
}) {
	reg.RegisterWriter(domain.EntityTypeFarmer, domain.OpKindCreate, domain.RemoteWriterFunc(c.CreateFarmer))
	reg.RegisterWriter(domain.EntityTypeFarmer, domain.OpKindUpdate, domain.RemoteWriterFunc(c.UpdateFarmer))
	reg.RegisterWriter(domain.EntityTypeFarm, domain.OpKindCreate, domain.RemoteWriterFunc(c.CreateFarm))
	reg.RegisterWriter(domain.EntityTypeFarm, domain.OpKindUpdate, domain.RemoteWriterFunc(c.UpdateFarm))
}

func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	reqURL := c.baseURL.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "could not build request for %s", path)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request to %s failed", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, errors.New("backend returned status %d for %s", resp.StatusCode, path)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "could not read response for %s", path)
	}
	if !json.Valid(body) {
		return nil, errors.New("backend returned malformed JSON for %s", path)
	}

	return body, nil
}

func (c *Client) send(ctx context.Context, method, path, entityType string, payload json.RawMessage) error {
	reqURL := c.baseURL.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "could not build request for %s", path)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "request to %s failed", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}

	reason := readReason(resp.Body)

	// a client-side mistake will not fix itself on replay
	if resp.StatusCode < http.StatusInternalServerError {
		c.log.Warn().Int("status", resp.StatusCode).Str("path", path).Str("reason", reason).Msg("backend rejected payload")
		return &domain.ValidationError{EntityType: entityType, Reason: reason}
	}

	return errors.New("backend returned status %d for %s: %s", resp.StatusCode, path, reason)
}

// readReason pulls a human-readable message out of an error response.
func readReason(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(raw) == 0 {
		return "no detail provided"
	}

	var envelope struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		if envelope.Message != "" {
			return envelope.Message
		}
		if envelope.Error != "" {
			return envelope.Error
		}
	}

	return strings.TrimSpace(string(raw))
}

func payloadID(payload json.RawMessage) (string, error) {
	var body struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return "", errors.Wrap(err, "could not decode payload")
	}
	if body.ID == "" {
		return "", errors.New("payload has no id")
	}
	return body.ID, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errors.New("remote base_url is not configured")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, errors.Wrap(err, "could not parse remote base_url %q", raw)
	}
	u.RawQuery = ""
	u.Fragment = ""

	return u, nil
}
