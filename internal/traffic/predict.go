// Package traffic predicts congestion levels from time of day and a
// static per-district bias table. There is no live feed behind this:
// the prediction is a pure function so route ranking stays deterministic
// and testable.
package traffic

import "encoding/json"

// Level represents a congestion level.
type Level int

const (
	Low Level = iota
	Medium
	High
)

func (l Level) String() string {
	switch l {
	case Low:
		return "Low"
	case Medium:
		return "Medium"
	case High:
		return "High"
	default:
		return "Unknown"
	}
}

// MarshalJSON encodes the level as its display string.
func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON decodes a display string back into a Level.
// Unknown strings decode as Low.
func (l *Level) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "High":
		*l = High
	case "Medium":
		*l = Medium
	default:
		*l = Low
	}
	return nil
}

// districtBias weights incident districts by how congested they usually are.
// Districts not listed here get defaultBias.
var districtBias = map[string]int{
	"city-center":     2,
	"old-town":        2,
	"riverside":       1,
	"industrial-park": 0,
	"outskirts":       0,
}

const defaultBias = 1

// Districts returns the known incident district keys.
func Districts() []string {
	return []string{"city-center", "old-town", "riverside", "industrial-park", "outskirts"}
}

// Predict maps an incident district and an hour of day (0-23) to a
// congestion level. Hours in [8,10] and [17,19] count as peak.
func Predict(district string, hour int) Level {
	peak := (hour >= 8 && hour <= 10) || (hour >= 17 && hour <= 19)

	bias, ok := districtBias[district]
	if !ok {
		bias = defaultBias
	}

	score := bias
	if peak {
		score += 2
	}

	switch {
	case score >= 4:
		return High
	case score >= 3:
		return Medium
	default:
		return Low
	}
}
