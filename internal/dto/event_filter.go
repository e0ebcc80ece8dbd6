// EventFilters describe user-provided filters to narrow the event journal.
package dto

import "time"

type EventFilters struct {
	Camera     string
	Label      string
	Mode       string
	DateAfter  time.Time
	DateBefore time.Time
	Limit      int
	Offset     int
}
