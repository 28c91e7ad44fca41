// Package fetch talks to the two upstream collaborators: the
// route-topology service that enumerates candidate paths, and the
// availability provider that returns per-segment award offers.
package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/openmiles/awardengine/internal/model"
)

// RoutesRequest is the body of POST {routeBase}/create-full-route-path.
type RoutesRequest struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	MaxStop     int    `json:"maxStop"`
	BinBin      bool   `json:"binbin,omitempty"`
	Region      bool   `json:"region,omitempty"`
}

// RoutesResponse is the topology service's answer: the candidate route
// structures plus the pre-built availability subqueries covering them.
type RoutesResponse struct {
	Routes         []model.RouteStructure `json:"routes"`
	QueryParamsArr []AvailabilityQuery    `json:"queryParamsArr"`
	AirportList    []string               `json:"airportList,omitempty"`
}

// RouteClient calls the route-topology service.
type RouteClient struct {
	http *resty.Client
	log  *zap.SugaredLogger
}

// NewRouteClient creates a client for the given base URL.
func NewRouteClient(baseURL string, timeout time.Duration, log *zap.SugaredLogger) *RouteClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	return &RouteClient{http: client, log: log.Named("routes")}
}

// CreateFullRoutePath enumerates candidate paths for the request.
// Any 4xx/5xx or transport failure maps to model.ErrUpstreamUnavailable;
// an empty route set maps to model.ErrNoRoutes.
func (c *RouteClient) CreateFullRoutePath(ctx context.Context, req RoutesRequest) (*RoutesResponse, error) {
	var out RoutesResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/create-full-route-path")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrUpstreamUnavailable, err)
	}
	if resp.IsError() {
		c.log.Warnw("route topology returned error status",
			"status", resp.StatusCode(), "origin", req.Origin, "destination", req.Destination)
		return nil, fmt.Errorf("%w: status %d", model.ErrUpstreamUnavailable, resp.StatusCode())
	}

	if len(out.Routes) == 0 {
		return nil, model.ErrNoRoutes
	}
	return &out, nil
}
