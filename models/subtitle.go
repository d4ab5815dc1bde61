package models

// SubtitleResult is the wire shape returned by the search endpoint.
type SubtitleResult struct {
	ID       string `json:"id"`
	Language string `json:"language"`
	Lang     string `json:"lang"`
	Label    string `json:"label"`
	Filename string `json:"filename,omitempty"`
	Format   string `json:"format"`
	Source   string `json:"source"`
	Token    string `json:"token"`
	Score    int    `json:"score,omitempty"`
}

// SearchResponse wraps the ranked subtitle list for a media request.
type SearchResponse struct {
	RequestID string           `json:"requestId"`
	Subtitles []SubtitleResult `json:"subtitles"`
}
