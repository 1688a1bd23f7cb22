package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	apperrors "bus-finder/internal/common/errors"
)

// FindBusesSchema describes the raw search request accepted from job
// variables and the HTTP API.
const FindBusesSchema = `{
  "type": "object",
  "properties": {
    "state":     {"type": "string", "maxLength": 64},
    "routeName": {"type": "string", "minLength": 1, "maxLength": 200},
    "busType":   {"type": "string", "enum": ["sleeper", "semi_sleeper", "semi-sleeper", "others"]},
    "minFare":   {"type": "number", "minimum": 0},
    "maxFare":   {"type": "number", "minimum": 0},
    "minRating": {"type": "number", "minimum": 1, "maximum": 5},
    "earliestStart": {
      "type": "string",
      "pattern": "^([01]?[0-9]|2[0-3]):[0-5][0-9](:[0-5][0-9])?$"
    }
  },
  "required": ["routeName", "busType", "minFare", "maxFare", "minRating", "earliestStart"]
}`

// RouteCatalogSchema describes the optional load-route-catalog input.
const RouteCatalogSchema = `{
  "type": "object",
  "properties": {
    "state": {"type": "string", "maxLength": 64}
  }
}`

var (
	findBusesLoader    = gojsonschema.NewStringLoader(FindBusesSchema)
	routeCatalogLoader = gojsonschema.NewStringLoader(RouteCatalogSchema)
)

// ValidateFindBuses checks a raw search document before it is decoded.
func ValidateFindBuses(document []byte) error {
	return validateDocument(findBusesLoader, document)
}

// ValidateRouteCatalog checks a raw catalog request.
func ValidateRouteCatalog(document []byte) error {
	return validateDocument(routeCatalogLoader, document)
}

func validateDocument(schema gojsonschema.JSONLoader, document []byte) error {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(document))
	if err != nil {
		return apperrors.NewInvalidFilterError(fmt.Sprintf("malformed request: %v", err))
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	fields := make([]string, 0, len(result.Errors()))
	seen := make(map[string]bool)
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
		field := desc.Field()
		if field == "(root)" {
			if missing, ok := desc.Details()["property"].(string); ok {
				field = missing
			}
		}
		if !seen[field] {
			seen[field] = true
			fields = append(fields, field)
		}
	}
	return apperrors.NewInvalidFilterError(strings.Join(msgs, "; "), fields...)
}
