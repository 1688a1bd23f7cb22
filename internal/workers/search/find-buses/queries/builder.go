// internal/workers/search/find-buses/queries/builder.go
package queries

import (
	"fmt"
	"strconv"
	"strings"

	"bus-finder/internal/models"
)

const selectBusDetails = `SELECT id, bus_name, bus_type, start_time, end_time, total_duration, price, seats_available, ratings, route_link, route_name FROM bus_details`

const orderBy = `ORDER BY price ASC, start_time DESC`

// busTypePatterns holds the LIKE patterns per category. For "others" the
// patterns are exclusions.
var busTypePatterns = map[models.BusTypeCategory][]string{
	models.BusTypeSleeper:     {"%Sleeper%"},
	models.BusTypeSemiSleeper: {"%A/c Semi Sleeper%"},
	models.BusTypeOthers:      {"%Sleeper%", "%Semi-Sleeper%"},
}

// Query is compiled SQL text with its positional arguments.
type Query struct {
	SQL  string
	Args []interface{}
}

// Builder collects WHERE clauses written with "?" markers and renumbers
// them to $n when built.
type Builder struct {
	clauses []string
	args    []interface{}
}

func NewBuilder() *Builder {
	return &Builder{}
}

// Where appends a clause. The number of "?" markers in clause must equal
// len(args).
func (b *Builder) Where(clause string, args ...interface{}) *Builder {
	if n := strings.Count(clause, "?"); n != len(args) {
		panic(fmt.Sprintf("queries: clause %q has %d markers for %d args", clause, n, len(args)))
	}
	b.clauses = append(b.clauses, clause)
	b.args = append(b.args, args...)
	return b
}

func (b *Builder) Build() Query {
	var sb strings.Builder
	sb.WriteString(selectBusDetails)

	n := 0
	if len(b.clauses) > 0 {
		sb.WriteString(" WHERE ")
		for i, clause := range b.clauses {
			if i > 0 {
				sb.WriteString(" AND ")
			}
			for _, r := range clause {
				if r == '?' {
					n++
					sb.WriteString("$" + strconv.Itoa(n))
					continue
				}
				sb.WriteRune(r)
			}
		}
	}

	sb.WriteString(" ")
	sb.WriteString(orderBy)

	return Query{
		SQL:  sb.String(),
		Args: append([]interface{}(nil), b.args...),
	}
}

// Compile turns validated criteria into a parameterized query. Values are
// only ever bound, never written into the SQL text.
func Compile(c models.FilterCriteria) (Query, error) {
	patterns, ok := busTypePatterns[c.BusType]
	if !ok {
		return Query{}, fmt.Errorf("%w: %q", ErrUnknownBusType, c.BusType)
	}

	b := NewBuilder().
		Where("price BETWEEN ? AND ?", c.MinFare, c.MaxFare).
		Where("route_name = ?", c.RouteName).
		Where("ratings >= ?", c.MinRating).
		Where("CAST(start_time AS time) >= ?", c.EarliestStart.String())

	switch c.BusType {
	case models.BusTypeOthers:
		b.Where("bus_type NOT LIKE ? AND bus_type NOT LIKE ?", patterns[0], patterns[1])
	default:
		b.Where("bus_type LIKE ?", patterns[0])
	}

	return b.Build(), nil
}
