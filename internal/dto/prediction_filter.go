// PredictionFilters describe user-provided filters to narrow the history list.
package dto

import "time"

type PredictionFilters struct {
	Label      string
	DateAfter  time.Time
	DateBefore time.Time
}
