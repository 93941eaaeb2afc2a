package index

import (
	"regexp"
	"strconv"
	"strings"
)

// Constraints are the structured filters parsed out of a natural-language
// catalog query ("gaming mouse under 1500", "top rated monitors").
type Constraints struct {
	CleanedQuery string
	MaxPrice     float64
	HasMaxPrice  bool
	MinPrice     float64
	HasMinPrice  bool
	MinRating    float64
	HasMinRating bool
	Category     string
	Sort         string
}

const (
	SortPriceAsc    = "price_asc"
	SortDeliveryAsc = "delivery_asc"
)

var customerIDExactPattern = regexp.MustCompile(`^c\d{4}$`)

var (
	categoryPattern = regexp.MustCompile(`\b(electronics|clothing|home|beauty|sports|toys|kitchen)\b`)
	maxPricePattern = regexp.MustCompile(`(?:under|below|less than)\s+(\d{1,3}(?:,\d{3})*|\d+(?:\.\d+)?k?)`)
	minPricePattern = regexp.MustCompile(`(?:above|more than|over)\s+(\d{1,3}(?:,\d{3})*|\d+(?:\.\d+)?k?)`)
	ratingPattern   = regexp.MustCompile(`\b(?:top rated|best)\b(?:\s*(?:above|over|>=|at least)\s*(\d+(?:\.\d+)?))?`)
	numberPattern   = regexp.MustCompile(`\d{1,3}(?:,\d{3})*|\d+(?:\.\d+)?k?`)
	fillerPattern   = regexp.MustCompile(`\b(under|below|less|than|above|more|over|cheapest|fastest|top|rated|best|electronics|clothing|home|beauty|sports|toys|kitchen)\b`)
	spacePattern    = regexp.MustCompile(`\s+`)
)

func normalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

func parseNumber(token string) (float64, bool) {
	token = strings.TrimSpace(strings.ReplaceAll(strings.ToLower(token), ",", ""))
	if token == "" {
		return 0, false
	}
	mult := 1.0
	if strings.HasSuffix(token, "k") {
		mult = 1000
		token = strings.TrimSuffix(token, "k")
	}
	value, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, false
	}
	return value * mult, true
}

// ParseConstraints extracts price, rating, category and sort hints from the
// query and returns the query with those tokens removed.
func ParseConstraints(text string) Constraints {
	out := Constraints{CleanedQuery: text}
	if text == "" {
		return out
	}

	raw := strings.ReplaceAll(strings.ToLower(text), "$", " ")

	if m := categoryPattern.FindStringSubmatch(raw); m != nil {
		out.Category = m[1]
	}
	if m := maxPricePattern.FindStringSubmatch(raw); m != nil {
		if v, ok := parseNumber(m[1]); ok {
			out.MaxPrice, out.HasMaxPrice = v, true
		}
	}
	if m := minPricePattern.FindStringSubmatch(raw); m != nil {
		if v, ok := parseNumber(m[1]); ok {
			out.MinPrice, out.HasMinPrice = v, true
		}
	}
	if m := ratingPattern.FindStringSubmatch(raw); m != nil {
		out.HasMinRating = true
		out.MinRating = 4
		if m[1] != "" {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				out.MinRating = v
			}
		}
	}

	if strings.Contains(raw, "cheapest") {
		out.Sort = SortPriceAsc
	} else if strings.Contains(raw, "fastest") {
		out.Sort = SortDeliveryAsc
	}

	cleaned := numberPattern.ReplaceAllString(raw, " ")
	cleaned = fillerPattern.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(spacePattern.ReplaceAllString(cleaned, " "))
	if cleaned == "" {
		cleaned = text
	}
	out.CleanedQuery = cleaned
	return out
}

// scoreField awards weight for every query token contained in the field and
// a double-weight bonus for an exact match.
func scoreField(query, field string, weight float64) float64 {
	query = normalizeQuery(query)
	field = normalizeQuery(field)
	if query == "" || field == "" {
		return 0
	}
	if query == field {
		return weight * 2
	}

	var score float64
	for _, token := range strings.Fields(query) {
		if len(token) < 2 {
			continue
		}
		if strings.Contains(field, token) {
			score += weight
		}
	}
	return score
}
