// EventsData is a paginated response payload for the event journal.
package dto

type EventsData struct {
	Events      []EventInfo `json:"events"`
	Length      int         `json:"length"`
	TotalPages  int         `json:"totalPages"`
	CurrentPage int         `json:"currentPage"`
	Limit       int         `json:"pageSize"`
}
