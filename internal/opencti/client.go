// Package opencti provides a GraphQL client for the OpenCTI platform API.
package opencti

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bissquit/cti-webhook/internal/domain"
	"github.com/bissquit/cti-webhook/internal/pkg/metrics"
	"github.com/machinebox/graphql"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "cti-webhook/1"
)

// ErrEmptyURL is returned when the platform URL is not configured.
var ErrEmptyURL = errors.New("platform URL is empty")

// Config holds platform client configuration.
type Config struct {
	URL       string
	Token     string
	Timeout   time.Duration
	SSLVerify bool
	// RateLimit is the maximum number of requests per second. Zero disables limiting.
	RateLimit float64
	Burst     int
}

// Client queries the platform GraphQL API.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
	gql        *graphql.Client
	limiter    *rate.Limiter
}

// NewClient creates a new platform client.
func NewClient(config Config) (*Client, error) {
	if config.URL == "" {
		return nil, ErrEmptyURL
	}
	base, err := url.Parse(strings.TrimRight(config.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse platform url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("platform url must use http or https scheme, got %q", base.Scheme)
	}

	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}
	burst := config.Burst
	if burst <= 0 {
		burst = 1
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !config.SSLVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // user-configured
	}
	httpClient := &http.Client{
		Timeout:   config.Timeout,
		Transport: transport,
	}
	endpoint := base.JoinPath("graphql").String()

	return &Client{
		endpoint:   endpoint,
		token:      config.Token,
		httpClient: httpClient,
		gql:        graphql.NewClient(endpoint, graphql.WithHTTPClient(httpClient)),
		limiter:    rate.NewLimiter(limit, burst),
	}, nil
}

// Query executes a GraphQL query and decodes its data object into out.
// GraphQL errors in the response are returned as errors.
func (c *Client) Query(ctx context.Context, operation, query string, variables map[string]any, out any) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordPlatformRequest(operation, err, time.Since(start))
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait rate limiter: %w", err)
	}

	req := graphql.NewRequest(query)
	for k, v := range variables {
		req.Var(k, v)
	}
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	var data json.RawMessage
	if err := c.gql.Run(ctx, req, &data); err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}

	if len(data) == 0 || string(data) == "null" {
		return fmt.Errorf("%s: empty data in response", operation)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s data: %w", operation, err)
	}

	return nil
}

// SubTypes returns entity subtypes with their workflow statuses.
func (c *Client) SubTypes(ctx context.Context) ([]SubType, error) {
	var data struct {
		SubTypes connection[subTypeNode] `json:"subTypes"`
	}
	if err := c.Query(ctx, "subTypes", subTypesQuery, nil, &data); err != nil {
		return nil, err
	}

	nodes := data.SubTypes.nodes()
	result := make([]SubType, 0, len(nodes))
	for _, n := range nodes {
		result = append(result, SubType{
			ID:              n.ID,
			Label:           n.Label,
			WorkflowEnabled: n.WorkflowEnabled,
			Statuses:        n.Statuses.nodes(),
		})
	}
	return result, nil
}

// ListRelationships returns relationships of the given type that have
// elementID on either side.
func (c *Client) ListRelationships(ctx context.Context, elementID, relationshipType string) ([]domain.Relationship, error) {
	var data struct {
		Relationships connection[domain.Relationship] `json:"stixCoreRelationships"`
	}
	vars := map[string]any{
		"fromOrToId":        []string{elementID},
		"relationship_type": []string{relationshipType},
		"first":             500,
	}
	if err := c.Query(ctx, "stixCoreRelationships", relationshipsQuery, vars, &data); err != nil {
		return nil, err
	}
	return data.Relationships.nodes(), nil
}

// ReadIndicator returns the indicator with its observables.
// Returns nil without error when the indicator does not exist.
func (c *Client) ReadIndicator(ctx context.Context, id string) (*domain.Indicator, error) {
	var data struct {
		Indicator *indicatorNode `json:"indicator"`
	}
	if err := c.Query(ctx, "indicator", indicatorQuery, map[string]any{"id": id}, &data); err != nil {
		return nil, err
	}
	if data.Indicator == nil {
		return nil, nil
	}
	return data.Indicator.toDomain(), nil
}

// ObservedData returns the first observed-data record containing the
// observable, or nil when there is none.
func (c *Client) ObservedData(ctx context.Context, observableID string) (*domain.ObservedData, error) {
	var data struct {
		ObservedDatas connection[domain.ObservedData] `json:"observedDatas"`
	}
	vars := map[string]any{"filters": objectsFilter(observableID)}
	if err := c.Query(ctx, "observedDatas", observedDataQuery, vars, &data); err != nil {
		return nil, err
	}
	nodes := data.ObservedDatas.nodes()
	if len(nodes) == 0 {
		return nil, nil
	}
	return &nodes[0], nil
}

// ListReports returns up to first reports containing objectID, newest
// publication first.
func (c *Client) ListReports(ctx context.Context, objectID string, first int) ([]domain.Report, error) {
	var data struct {
		Reports connection[reportNode] `json:"reports"`
	}
	vars := map[string]any{
		"filters": objectsFilter(objectID),
		"first":   first,
	}
	if err := c.Query(ctx, "reports", reportsQuery, vars, &data); err != nil {
		return nil, err
	}

	nodes := data.Reports.nodes()
	reports := make([]domain.Report, 0, len(nodes))
	for _, n := range nodes {
		reports = append(reports, domain.Report{
			ID:          n.ID,
			Name:        n.Name,
			Description: n.Description,
			Published:   n.Published,
		})
	}
	return reports, nil
}

// objectsFilter builds a filter group matching containers that hold id.
func objectsFilter(id string) filterGroup {
	return filterGroup{
		Mode: "and",
		Filters: []filter{
			{Key: []string{"objects"}, Values: []string{id}},
		},
		FilterGroups: []filterGroup{},
	}
}
