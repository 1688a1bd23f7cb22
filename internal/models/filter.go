// internal/models/filter.go
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// BusTypeCategory is the coarse bus type a user filters by.
type BusTypeCategory string

const (
	BusTypeSleeper     BusTypeCategory = "sleeper"
	BusTypeSemiSleeper BusTypeCategory = "semi_sleeper"
	BusTypeOthers      BusTypeCategory = "others"
)

// BusTypeCategories lists the categories in selector order.
var BusTypeCategories = []BusTypeCategory{BusTypeSleeper, BusTypeSemiSleeper, BusTypeOthers}

// ParseBusTypeCategory accepts "semi-sleeper" and mixed case as aliases.
func ParseBusTypeCategory(s string) (BusTypeCategory, bool) {
	normalized := BusTypeCategory(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	for _, c := range BusTypeCategories {
		if c == normalized {
			return c, true
		}
	}
	return BusTypeCategory(s), false
}

// UnmarshalJSON normalizes aliases; unknown values are kept verbatim so
// validation can report them.
func (c *BusTypeCategory) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*c, _ = ParseBusTypeCategory(s)
	return nil
}

// ClockTime is a time of day with second precision.
type ClockTime struct {
	Hour   int `validate:"gte=0,lte=23"`
	Minute int `validate:"gte=0,lte=59"`
	Second int `validate:"gte=0,lte=59"`
}

// ParseClockTime accepts "HH:MM" and "HH:MM:SS".
func ParseClockTime(s string) (ClockTime, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse("15:04:05", s)
	if err != nil {
		t, err = time.Parse("15:04", s)
	}
	if err != nil {
		return ClockTime{}, fmt.Errorf("invalid time of day %q", s)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
}

// MustClockTime is ParseClockTime for constants and tests.
func MustClockTime(s string) ClockTime {
	c, err := ParseClockTime(s)
	if err != nil {
		panic(err)
	}
	return c
}

// String renders HH:MM:SS, the form bound as the query parameter.
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ClockTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseClockTime(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// FilterCriteria is one user's search selection. State is optional; when
// present the route must belong to that state's catalog entry.
type FilterCriteria struct {
	State         string          `json:"state,omitempty" validate:"omitempty,max=64"`
	RouteName     string          `json:"routeName" validate:"required,max=200"`
	BusType       BusTypeCategory `json:"busType" validate:"required,oneof=sleeper semi_sleeper others"`
	MinFare       float64         `json:"minFare" validate:"gte=0"`
	MaxFare       float64         `json:"maxFare" validate:"gte=0,gtefield=MinFare"`
	MinRating     float64         `json:"minRating" validate:"gte=1,lte=5"`
	EarliestStart ClockTime       `json:"earliestStart"`
}
