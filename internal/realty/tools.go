package realty

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Tool names as registered with the voice agent.
const (
	ToolLookup            = "webhookRequestLookup"
	ToolPropertyDetails   = "getPropertyDetails"
	ToolCompareProperties = "compareProperties"
	ToolSearchByAmenities = "searchByAmenities"
)

var ErrUnknownTool = errors.New("unknown tool")

// ArgumentError is tool input rejected before anything was sent upstream.
type ArgumentError struct {
	Op   string
	Tool string
	Err  error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s %s arguments: %v", e.Op, e.Tool, e.Err)
}

func (e *ArgumentError) Unwrap() error { return e.Err }

// Property is one JSON-schema property of a tool's parameters.
type Property struct {
	Type        string    `json:"type"`
	Description string    `json:"description,omitempty"`
	Items       *Property `json:"items,omitempty"`
}

type Parameters struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required"`
}

// Tool describes a function the voice agent can call.
type Tool struct {
	Type        string     `json:"type"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  Parameters `json:"parameters"`
}

var stringItems = &Property{Type: "string"}

// Tools returns the agent's tool catalogue.
func Tools() []Tool {
	return []Tool{
		{
			Type:        "function",
			Name:        ToolLookup,
			Description: "Look up information about localities and projects in Noida",
			Parameters: Parameters{
				Type: "object",
				Properties: map[string]Property{
					"message": {
						Type:        "string",
						Description: "JSON format message with query details. Can include query_type (locality, project, property_type), search_term, filters, and request_type (general_lookup)",
					},
				},
				Required: []string{"message"},
			},
		},
		{
			Type:        "function",
			Name:        ToolPropertyDetails,
			Description: "Get detailed information about a specific property",
			Parameters: Parameters{
				Type: "object",
				Properties: map[string]Property{
					"propertyId": {Type: "string", Description: "ID of the property to get details for"},
				},
				Required: []string{"propertyId"},
			},
		},
		{
			Type:        "function",
			Name:        ToolCompareProperties,
			Description: "Compare multiple properties",
			Parameters: Parameters{
				Type: "object",
				Properties: map[string]Property{
					"properties": {Type: "array", Items: stringItems, Description: "Array of property IDs to compare"},
				},
				Required: []string{"properties"},
			},
		},
		{
			Type:        "function",
			Name:        ToolSearchByAmenities,
			Description: "Search for properties by amenities",
			Parameters: Parameters{
				Type: "object",
				Properties: map[string]Property{
					"amenities": {Type: "array", Items: stringItems, Description: "List of amenities to search for"},
					"location":  {Type: "string", Description: "Optional location to filter by"},
				},
				Required: []string{"amenities"},
			},
		},
	}
}

type lookupArgs struct {
	Message string `json:"message" validate:"required"`
}

type propertyDetailsArgs struct {
	PropertyID string `json:"propertyId" validate:"required"`
}

type comparePropertiesArgs struct {
	Properties []string `json:"properties" validate:"required,min=1"`
}

type searchByAmenitiesArgs struct {
	Amenities []string `json:"amenities" validate:"required,min=1"`
	Location  string   `json:"location"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func decodeArgs(name string, raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &ArgumentError{Op: "decode", Tool: name, Err: err}
	}
	if err := validate.Struct(dst); err != nil {
		return &ArgumentError{Op: "invalid", Tool: name, Err: err}
	}
	return nil
}

// Dispatch runs the named tool with JSON-encoded arguments.
func (a *Agent) Dispatch(ctx context.Context, name string, args json.RawMessage, sessionID string) (json.RawMessage, error) {
	switch name {
	case ToolLookup:
		var in lookupArgs
		if err := decodeArgs(name, args, &in); err != nil {
			return nil, err
		}
		return a.Lookup(ctx, in.Message, sessionID)

	case ToolPropertyDetails:
		var in propertyDetailsArgs
		if err := decodeArgs(name, args, &in); err != nil {
			return nil, err
		}
		return a.PropertyDetails(ctx, in.PropertyID, sessionID)

	case ToolCompareProperties:
		var in comparePropertiesArgs
		if err := decodeArgs(name, args, &in); err != nil {
			return nil, err
		}
		return a.CompareProperties(ctx, in.Properties, sessionID)

	case ToolSearchByAmenities:
		var in searchByAmenitiesArgs
		if err := decodeArgs(name, args, &in); err != nil {
			return nil, err
		}
		return a.SearchByAmenities(ctx, in.Amenities, in.Location, sessionID)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
}
