package domain

import (
	"strconv"
	"strings"
	"unicode"
)

// DefaultBinDistance is returned when either bin code cannot be parsed
const DefaultBinDistance = 50

const (
	aisleWeight      = 10
	rackWeight       = 2
	secondsPerUnit   = 3
	secondsPerMinute = 60
)

// TravelEstimate is an advisory travel cost between two bins
type TravelEstimate struct {
	Distance int     `json:"distance"`
	Seconds  int     `json:"seconds"`
	Minutes  float64 `json:"minutes"`
}

// BinDistance estimates the travel cost between two bin codes of the form
// A1-B2-C3: the aisle is the leading letter of the first segment and the
// rack is the numeric suffix of the second.
func BinDistance(from, to string) int {
	fromAisle, fromRack, ok := parseBinCode(from)
	if !ok {
		return DefaultBinDistance
	}
	toAisle, toRack, ok := parseBinCode(to)
	if !ok {
		return DefaultBinDistance
	}
	return abs(fromAisle-toAisle)*aisleWeight + abs(fromRack-toRack)*rackWeight
}

// EstimateTravel converts a bin distance into a travel time estimate
func EstimateTravel(distance int) TravelEstimate {
	seconds := distance * secondsPerUnit
	return TravelEstimate{
		Distance: distance,
		Seconds:  seconds,
		Minutes:  float64(seconds) / secondsPerMinute,
	}
}

func parseBinCode(code string) (aisle, rack int, ok bool) {
	segments := strings.Split(strings.ToUpper(strings.TrimSpace(code)), "-")
	if len(segments) < 2 || segments[0] == "" || segments[1] == "" {
		return 0, 0, false
	}

	lead := rune(segments[0][0])
	if lead < 'A' || lead > 'Z' {
		return 0, 0, false
	}

	digits := strings.TrimLeftFunc(segments[1], unicode.IsLetter)
	if digits == "" {
		return 0, 0, false
	}
	rack, err := strconv.Atoi(digits)
	if err != nil {
		return 0, 0, false
	}

	return int(lead - 'A'), rack, true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
