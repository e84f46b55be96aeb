package models

// DetectionResult is the canonical form every tolerated detection response
// variant is normalized into. Confidence is always on the 0-1 scale and
// ImageData is a self-contained data URI so history views never depend on a
// transient upload file.
type DetectionResult struct {
	DiseaseID      string   `json:"disease_id"`
	DiseaseName    string   `json:"disease_name"`
	ScientificName string   `json:"scientific_name"`
	Confidence     float64  `json:"confidence"`
	Timestamp      string   `json:"timestamp"`
	ImageData      string   `json:"image_data"`
	Description    string   `json:"description"`
	Symptoms       []string `json:"symptoms"`
}

// TreatmentRecommendation is derived from the same detection payload; there
// is no separate treatment fetch.
type TreatmentRecommendation struct {
	Prevention        []string `json:"prevention"`
	Treatment         []string `json:"treatment"`
	OrganicSolutions  []string `json:"organic_solutions"`
	ChemicalSolutions []string `json:"chemical_solutions"`
	AdditionalTips    []string `json:"additional_tips"`
}
