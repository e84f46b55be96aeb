package models

// SortOrder selects how the backend orders history pages.
type SortOrder string

const (
	SortNewest SortOrder = "newest"
	SortOldest SortOrder = "oldest"
)

// HistoryEntry is one row of the detection history list. The detail endpoint
// returns the same shape with Description and Symptoms filled in.
type HistoryEntry struct {
	HistoryID      FlexID   `json:"history_id"`
	DiseaseID      string   `json:"disease_id"`
	DiseaseName    string   `json:"disease_name"`
	ScientificName string   `json:"scientific_name"`
	Confidence     float64  `json:"confidence"`
	ImageURL       string   `json:"image_url"`
	Description    string   `json:"description,omitempty"`
	Symptoms       []string `json:"symptoms,omitempty"`
	DetectedAt     string   `json:"detected_at"`
}

// Pagination mirrors the backend's pagination block. Missing fields fall
// back to sane defaults when a response omits the block entirely.
type Pagination struct {
	CurrentPage  int `json:"current_page"`
	TotalPages   int `json:"total_pages"`
	TotalItems   int `json:"total_items"`
	ItemsPerPage int `json:"items_per_page"`
}
