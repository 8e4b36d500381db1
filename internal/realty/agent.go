// Package realty exposes the realty agent's tools on top of the webhook
// adapter. Every tool builds a request-type message and sends it through a
// single lookup, so retries and response normalization happen in one place.
package realty

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/elliotchance/pie/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/austindbirch/realty_relay/internal/logging"
	"github.com/austindbirch/realty_relay/internal/tracing"
)

// Request types understood by the n8n workflow.
const (
	RequestPropertyDetails   = "property_details"
	RequestCompareProperties = "compare_properties"
	RequestSearchByAmenities = "search_by_amenities"
)

// Looker sends one message upstream and returns the canonical result.
// *webhook.Client satisfies it.
type Looker interface {
	Lookup(ctx context.Context, message, sessionID string) (json.RawMessage, error)
}

type Agent struct {
	client Looker
	logger *logging.Logger
}

func NewAgent(client Looker) *Agent {
	return &Agent{client: client, logger: logging.Default()}
}

type propertyDetailsRequest struct {
	RequestType string `json:"request_type"`
	PropertyID  string `json:"property_id"`
}

type comparePropertiesRequest struct {
	RequestType string   `json:"request_type"`
	PropertyIDs []string `json:"property_ids"`
}

type amenitiesRequest struct {
	RequestType string   `json:"request_type"`
	Amenities   []string `json:"amenities"`
	Location    string   `json:"location"`
}

// Lookup forwards a free-form message, plain text or a JSON object.
func (a *Agent) Lookup(ctx context.Context, message, sessionID string) (json.RawMessage, error) {
	ctx, span := tracing.StartSpan(ctx, "realty.lookup")
	defer span.End()

	out, err := a.client.Lookup(ctx, message, sessionID)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PropertyDetails asks for a single property by ID.
func (a *Agent) PropertyDetails(ctx context.Context, propertyID, sessionID string) (json.RawMessage, error) {
	propertyID = strings.TrimSpace(propertyID)
	if propertyID == "" {
		return nil, fmt.Errorf("failed to get property details: %w", missing(ToolPropertyDetails, "property ID is required"))
	}

	out, err := a.send(ctx, RequestPropertyDetails, sessionID, propertyDetailsRequest{
		RequestType: RequestPropertyDetails,
		PropertyID:  propertyID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get property details: %w", err)
	}
	return out, nil
}

// CompareProperties asks the workflow to compare the given property IDs.
func (a *Agent) CompareProperties(ctx context.Context, propertyIDs []string, sessionID string) (json.RawMessage, error) {
	ids := CleanList(propertyIDs)
	if len(ids) == 0 {
		return nil, fmt.Errorf("failed to compare properties: %w", missing(ToolCompareProperties, "at least one property ID is required"))
	}

	out, err := a.send(ctx, RequestCompareProperties, sessionID, comparePropertiesRequest{
		RequestType: RequestCompareProperties,
		PropertyIDs: ids,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compare properties: %w", err)
	}
	return out, nil
}

// SearchByAmenities searches by amenity names, optionally within a location.
// An empty location is sent as "".
func (a *Agent) SearchByAmenities(ctx context.Context, amenities []string, location, sessionID string) (json.RawMessage, error) {
	list := CleanList(amenities)
	if len(list) == 0 {
		return nil, fmt.Errorf("failed to search by amenities: %w", missing(ToolSearchByAmenities, "at least one amenity is required"))
	}

	out, err := a.send(ctx, RequestSearchByAmenities, sessionID, amenitiesRequest{
		RequestType: RequestSearchByAmenities,
		Amenities:   list,
		Location:    strings.TrimSpace(location),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search by amenities: %w", err)
	}
	return out, nil
}

func (a *Agent) send(ctx context.Context, requestType, sessionID string, req any) (json.RawMessage, error) {
	ctx, span := tracing.StartSpan(ctx, "realty."+requestType, attribute.String("realty.request_type", requestType))
	defer span.End()

	msg, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", requestType, err)
	}

	a.logger.WithContext(ctx).WithSession(sessionID).WithField("request_type", requestType).Debug("realty tool request")

	return a.client.Lookup(ctx, string(msg), sessionID)
}

func missing(tool, msg string) error {
	return &ArgumentError{Op: "invalid", Tool: tool, Err: errors.New(msg)}
}

// CleanList trims entries, drops blanks and removes duplicates, keeping the
// first occurrence.
func CleanList(in []string) []string {
	trimmed := pie.Filter(pie.Map(in, strings.TrimSpace), func(s string) bool { return s != "" })

	out := make([]string, 0, len(trimmed))
	for _, s := range trimmed {
		if !pie.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
