package catalog

import (
	"sort"
	"time"

	"github.com/greenwave-ems/greenwave/internal/geo"
	"github.com/greenwave-ems/greenwave/internal/traffic"
)

const (
	// averageSpeedKmh is the assumed clear-road ambulance speed used for
	// estimated travel times.
	averageSpeedKmh = 35
)

// Card is a ranked, annotated route presented to the dispatcher.
type Card struct {
	Route            Route         `json:"route"`
	DistanceKm       float64       `json:"distanceKm"`
	Traffic          traffic.Level `json:"traffic"`
	EstimatedMinutes float64       `json:"estimatedMinutes"`
	Recommended      bool          `json:"recommended"`
}

// trafficMultiplier inflates travel time by congestion level.
func trafficMultiplier(l traffic.Level) float64 {
	switch l {
	case traffic.High:
		return 1.55
	case traffic.Medium:
		return 1.25
	default:
		return 1.0
	}
}

// adjustTraffic nudges a route's static baseline toward the predicted
// level. A High prediction upgrades one step, a Low prediction downgrades
// High to Medium, a Medium prediction leaves the baseline alone.
func adjustTraffic(baseline, predicted traffic.Level) traffic.Level {
	switch {
	case predicted == traffic.High && baseline == traffic.Low:
		return traffic.Medium
	case predicted == traffic.High && baseline == traffic.Medium:
		return traffic.High
	case predicted == traffic.Low && baseline == traffic.High:
		return traffic.Medium
	default:
		return baseline
	}
}

// BuildCards computes annotated cards for every catalog route given the
// incident district and current time, ranked best first. The first card
// is marked as the recommendation.
func BuildCards(district string, now time.Time) []Card {
	predicted := traffic.Predict(district, now.Hour())

	cards := make([]Card, 0, len(routes))
	for _, r := range routes {
		dist := geo.PolylineLength(r.Waypoints)
		level := adjustTraffic(r.Baseline, predicted)
		minutes := dist / averageSpeedKmh * 60 * trafficMultiplier(level)

		cards = append(cards, Card{
			Route:            r,
			DistanceKm:       dist,
			Traffic:          level,
			EstimatedMinutes: minutes,
		})
	}

	// Lower congestion always wins; time only breaks ties within a level.
	sort.SliceStable(cards, func(i, j int) bool {
		if cards[i].Traffic != cards[j].Traffic {
			return cards[i].Traffic < cards[j].Traffic
		}
		return cards[i].EstimatedMinutes < cards[j].EstimatedMinutes
	})

	if len(cards) > 0 {
		cards[0].Recommended = true
	}
	return cards
}
