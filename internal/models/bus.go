// internal/models/bus.go
package models

import (
	"fmt"
	"time"
)

// BusListing is one row of bus_details, in column order.
type BusListing struct {
	ID             int64     `json:"id"`
	BusName        string    `json:"busName"`
	BusType        string    `json:"busType"`
	StartTime      time.Time `json:"startTime"`
	EndTime        time.Time `json:"endTime"`
	TotalDuration  string    `json:"totalDuration"`
	Price          float64   `json:"price"`
	SeatsAvailable int       `json:"seatsAvailable"`
	Ratings        float64   `json:"ratings"`
	RouteLink      string    `json:"routeLink"`
	RouteName      string    `json:"routeName"`
}

// Validate checks price >= 0, 0 <= ratings <= 5 and start before end.
func (b BusListing) Validate() error {
	if b.Price < 0 {
		return fmt.Errorf("negative price %.2f", b.Price)
	}
	if b.Ratings < 0 || b.Ratings > 5 {
		return fmt.Errorf("ratings %.2f outside [0, 5]", b.Ratings)
	}
	if !b.StartTime.Before(b.EndTime) {
		return fmt.Errorf("start %s not before end %s", b.StartTime.Format(time.RFC3339), b.EndTime.Format(time.RFC3339))
	}
	return nil
}
