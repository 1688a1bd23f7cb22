// internal/workers/search/find-buses/models.go
package findbuses

import (
	"encoding/json"
	"fmt"
	"time"

	apperrors "bus-finder/internal/common/errors"
	"bus-finder/internal/common/validation"
	"bus-finder/internal/models"
)

type Input struct {
	models.FilterCriteria
}

type Output struct {
	RequestID          string              `json:"requestId"`
	Buses              []models.BusListing `json:"buses"`
	Summary            Summary             `json:"summary"`
	Schedule           []ScheduleEntry     `json:"schedule"`
	Message            string              `json:"message,omitempty"`
	RowCount           int                 `json:"rowCount"`
	Cached             bool                `json:"cached"`
	QueryExecutionTime int64               `json:"queryExecutionTime"` // milliseconds
}

// Summary holds route statistics over the returned buses.
type Summary struct {
	Count         int            `json:"count"`
	AveragePrice  float64        `json:"averagePrice"`
	AverageRating float64        `json:"averageRating"`
	BusTypes      map[string]int `json:"busTypes"`
}

// ScheduleEntry is the timetable view of one returned bus.
type ScheduleEntry struct {
	BusName       string    `json:"busName"`
	StartTime     time.Time `json:"startTime"`
	EndTime       time.Time `json:"endTime"`
	TotalDuration string    `json:"totalDuration"`
}

// DecodeInput checks raw against the request schema before unmarshalling.
func DecodeInput(raw []byte) (*Input, error) {
	if err := validation.ValidateFindBuses(raw); err != nil {
		return nil, err
	}

	var input Input
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, apperrors.NewInvalidFilterError(fmt.Sprintf("parse input: %v", err))
	}
	return &input, nil
}
