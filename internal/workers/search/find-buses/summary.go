package findbuses

import "bus-finder/internal/models"

func summarize(buses []models.BusListing) Summary {
	s := Summary{
		Count:    len(buses),
		BusTypes: make(map[string]int),
	}
	if len(buses) == 0 {
		return s
	}

	var price, rating float64
	for _, b := range buses {
		price += b.Price
		rating += b.Ratings
		s.BusTypes[b.BusType]++
	}
	s.AveragePrice = price / float64(len(buses))
	s.AverageRating = rating / float64(len(buses))
	return s
}

// schedule projects buses onto their timetable columns, in result order.
func schedule(buses []models.BusListing) []ScheduleEntry {
	entries := make([]ScheduleEntry, len(buses))
	for i, b := range buses {
		entries[i] = ScheduleEntry{
			BusName:       b.BusName,
			StartTime:     b.StartTime,
			EndTime:       b.EndTime,
			TotalDuration: b.TotalDuration,
		}
	}
	return entries
}
