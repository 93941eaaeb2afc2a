package contract

import "regexp"

// Identifier shapes shared by plan correction, order-query rewriting, and
// action validation: a single letter prefix plus four digits.
var (
	OrderIDPattern    = regexp.MustCompile(`(?i)\bo\d{4}\b`)
	CustomerIDPattern = regexp.MustCompile(`(?i)\bc\d{4}\b`)
	ProductIDPattern  = regexp.MustCompile(`(?i)\bp\d{4}\b`)
)
