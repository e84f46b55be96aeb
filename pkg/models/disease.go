package models

// Disease is a knowledge-base list item.
type Disease struct {
	DiseaseID      string `json:"disease_id"`
	DiseaseName    string `json:"disease_name"`
	ScientificName string `json:"scientific_name"`
	Category       string `json:"category"`
	Severity       string `json:"severity"`
	Thumbnail      string `json:"thumbnail,omitempty"`
}

// DiseaseDetail is the full knowledge-base record for one disease.
type DiseaseDetail struct {
	Disease

	Description    string   `json:"description"`
	Symptoms       []string `json:"symptoms"`
	Causes         []string `json:"causes"`
	AffectedPlants []string `json:"affected_plants"`
	Prevention     []string `json:"prevention"`
	Treatment      []string `json:"treatment"`
	Images         []string `json:"images"`
}
