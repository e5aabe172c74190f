package albert

import (
	"fmt"
	"strconv"
	"strings"
)

// Season numbers follow Albert's term-code scheme. The fall and spring
// values are observed in real term codes, the others are guessed.
type Season int

const (
	SeasonJanuary Season = 2
	SeasonSpring  Season = 4
	SeasonSummer  Season = 6
	SeasonFall    Season = 8
)

func (s Season) String() string {
	switch s {
	case SeasonJanuary:
		return "January"
	case SeasonSpring:
		return "Spring"
	case SeasonSummer:
		return "Summer"
	case SeasonFall:
		return "Fall"
	}
	return fmt.Sprintf("Season(%d)", int(s))
}

// Term is an academic term, e.g. "Fall 2025".
type Term struct {
	Year   int
	Season Season
}

// ParseTerm parses a "{Season} {Year}" name like "Fall 2023".
func ParseTerm(name string) (Term, error) {
	parts := strings.Fields(name)
	if len(parts) != 2 {
		return Term{}, fmt.Errorf("invalid term name format: %q", name)
	}

	var season Season
	switch parts[0] {
	case "January":
		season = SeasonJanuary
	case "Spring":
		season = SeasonSpring
	case "Summer":
		season = SeasonSummer
	case "Fall":
		season = SeasonFall
	default:
		return Term{}, fmt.Errorf("unknown season in term name: %q", parts[0])
	}

	year, err := strconv.Atoi(parts[1])
	if err != nil {
		return Term{}, fmt.Errorf("invalid year in term name: %q", parts[1])
	}

	return Term{Year: year, Season: season}, nil
}

// Code is the four-digit term code in Albert's scheme: the first digit is
// always 1 (reason unknown), the next two are the last two digits of the
// year, the last is the season number.
func (t Term) Code() int {
	return 1000 + (t.Year%100)*10 + int(t.Season)
}

func (t Term) String() string {
	return fmt.Sprintf("%s %d", t.Season, t.Year)
}

// Compare orders terms chronologically. Codes increase by year then season,
// so comparing codes is sufficient.
func (t Term) Compare(other Term) int {
	return t.Code() - other.Code()
}
