package dto

// TagCount is one entry of the tag list shown above the stills.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}
