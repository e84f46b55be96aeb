package detection

import (
	"time"

	"grovia-client/pkg/models"
	"grovia-client/pkg/normalize"
)

// parseDetectionResponse normalizes the backend's detection payload into the
// canonical result. Tolerated shapes, first structural match wins:
//
//  1. {success, data: {...}} envelope
//  2. flat {prediction: {...}}
//  3. flat object at top level
//  4. nested detection_record when the chosen prediction is empty
//
// Field names fall back across synonyms; the confidence rule is the same
// wherever the value came from.
func parseDetectionResponse(body []byte, imageData string) (*models.DetectionResult, *models.TreatmentRecommendation, error) {
	obj, err := normalize.Object(body)
	if err != nil {
		return nil, nil, err
	}

	payload := obj
	if data, ok := normalize.AsObject(obj["data"]); ok && obj["success"] == true {
		payload = data
	}

	prediction := payload
	if p, ok := normalize.AsObject(payload["prediction"]); ok {
		prediction = p
	}
	if len(prediction) == 0 {
		if record, ok := normalize.AsObject(payload["detection_record"]); ok {
			prediction = record
		} else {
			prediction = payload
		}
	}

	confValue := prediction["confidence"]
	if confValue == nil {
		confValue = prediction["confidence_score"]
	}

	diseaseID := normalize.String(prediction, "disease_id", "id")
	if diseaseID == "" {
		diseaseID = normalize.String(payload, "detection_id")
	}
	if diseaseID == "" {
		diseaseID = "unknown"
	}

	diseaseName := normalize.String(prediction, "disease_name", "name", "class_name")
	if diseaseName == "" {
		diseaseName = "Unidentified disease"
	}

	scientificName := normalize.String(prediction, "scientific_name", "latin_name")
	if scientificName == "" {
		scientificName = "-"
	}

	description := normalize.String(prediction, "description", "detail")
	if description == "" {
		description = "No description available"
	}

	result := &models.DetectionResult{
		DiseaseID:      diseaseID,
		DiseaseName:    diseaseName,
		ScientificName: scientificName,
		Confidence:     normalize.Confidence(confValue),
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		ImageData:      imageData,
		Description:    description,
		Symptoms:       normalize.FirstList(prediction, "symptoms", "symptom_list"),
	}

	// Recommendations ride along in the detection payload; there is no
	// separate treatment fetch.
	recommendations := normalize.FirstList(payload, "recommendations")
	if len(recommendations) == 0 {
		recommendations = normalize.FirstList(prediction, "recommendations")
	}

	var treatment *models.TreatmentRecommendation
	if len(recommendations) > 0 {
		treatment = &models.TreatmentRecommendation{
			Prevention:        []string{},
			Treatment:         recommendations,
			OrganicSolutions:  []string{},
			ChemicalSolutions: []string{},
			AdditionalTips:    []string{},
		}
	}

	return result, treatment, nil
}
