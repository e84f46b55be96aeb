// Package detection orchestrates the leaf-photo upload: it sends the image
// to the backend, normalizes whichever response shape comes back into a
// canonical result, derives the treatment recommendation from the same
// payload, and saves the detection to history on a best-effort basis.
package detection

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"grovia-client/pkg/api"
	"grovia-client/pkg/models"
)

// Store holds the state of the current detection. After Detect settles,
// exactly one of the result or the failure message is populated.
type Store struct {
	api    *api.Client
	logger *slog.Logger

	mu        sync.Mutex
	uploading bool
	detecting bool
	progress  int
	imagePath string
	result    *models.DetectionResult
	treatment *models.TreatmentRecommendation
	message   string
}

// NewStore creates a detection store.
func NewStore(client *api.Client, logger *slog.Logger) *Store {
	return &Store{api: client, logger: logger}
}

// Detect uploads the image at path and normalizes the backend's answer. The
// caller is expected to have validated the file already; no validation
// happens here. Progress events are forwarded to onProgress when non-nil.
// The upload runs with the long detection timeout, and the image is encoded
// into a self-contained data URI concurrently with the upload so the result
// can be displayed and stored without the original file.
func (s *Store) Detect(ctx context.Context, path string, onProgress func(api.ProgressEvent)) (*models.DetectionResult, error) {
	s.begin(path)
	defer s.settle()

	data, err := os.ReadFile(path)
	if err != nil {
		s.setMessage("Could not read the selected image file.")
		return nil, fmt.Errorf("error reading image: %w", err)
	}

	encoded := make(chan string, 1)
	go func() {
		encoded <- dataURI(http.DetectContentType(data), data)
	}()

	resp, err := s.api.PostMultipart(ctx, "/detection/detect", "image", filepath.Base(path), bytes.NewReader(data),
		api.WithCallTimeout(api.DetectTimeout),
		api.WithProgress(func(ev api.ProgressEvent) {
			s.setProgress(ev.Percent)
			if onProgress != nil {
				onProgress(ev)
			}
		}),
	)
	imageData := <-encoded
	if err != nil {
		s.setMessage(classifyFailure(err))
		return nil, err
	}

	result, treatment, err := parseDetectionResponse(resp.Body, imageData)
	if err != nil {
		s.setMessage("Failed to detect disease. Please try again.")
		return nil, err
	}

	s.mu.Lock()
	s.result = result
	s.treatment = treatment
	s.mu.Unlock()

	s.saveToHistory(ctx, result)

	return result, nil
}

// saveToHistory records the detection server-side. Failure here never fails
// the detection; it is logged and forgotten.
func (s *Store) saveToHistory(ctx context.Context, result *models.DetectionResult) {
	payload := map[string]any{
		"disease_id":   result.DiseaseID,
		"disease_name": result.DiseaseName,
		"confidence":   result.Confidence,
		"image_url":    result.ImageData,
		"timestamp":    result.Timestamp,
	}
	if _, err := s.api.Post(ctx, "/detection/history", payload); err != nil {
		s.logger.Error("failed to save detection to history", "error", err)
	}
}

// Reset clears all detection state.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploading = false
	s.detecting = false
	s.progress = 0
	s.imagePath = ""
	s.result = nil
	s.treatment = nil
	s.message = ""
}

// ClearMessage resets the failure description.
func (s *Store) ClearMessage() {
	s.setMessage("")
}

// IsProcessing reports whether an upload or detection is in flight.
func (s *Store) IsProcessing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploading || s.detecting
}

// Progress returns the upload progress in percent.
func (s *Store) Progress() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// Result returns the current detection result, nil when none.
func (s *Store) Result() *models.DetectionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Treatment returns the recommendation derived from the last detection.
func (s *Store) Treatment() *models.TreatmentRecommendation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.treatment
}

// Message returns the last failure description, empty after a success.
func (s *Store) Message() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.message
}

// ConfidencePercentage formats the result confidence as a percentage string
// with one decimal, "0.0" when there is no result.
func (s *Store) ConfidencePercentage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return "0.0"
	}
	return fmt.Sprintf("%.1f", s.result.Confidence*100)
}

// IsHighConfidence reports whether the result confidence exceeds 70%.
func (s *Store) IsHighConfidence() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result != nil && s.result.Confidence > 0.7
}

// DiseaseSeverity buckets the result confidence for presentation: high above
// 0.8, medium above 0.5, low otherwise. Empty when there is no result.
func (s *Store) DiseaseSeverity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return ""
	}
	switch {
	case s.result.Confidence > 0.8:
		return "high"
	case s.result.Confidence > 0.5:
		return "medium"
	default:
		return "low"
	}
}

func (s *Store) begin(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploading = true
	s.detecting = true
	s.progress = 0
	s.imagePath = path
	s.result = nil
	s.treatment = nil
	s.message = ""
}

// settle clears the in-flight flags on every outcome path.
func (s *Store) settle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploading = false
	s.detecting = false
	s.progress = 0
}

func (s *Store) setProgress(percent int) {
	s.mu.Lock()
	s.progress = percent
	s.mu.Unlock()
}

func (s *Store) setMessage(msg string) {
	s.mu.Lock()
	s.message = msg
	s.mu.Unlock()
}

func dataURI(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// classifyFailure maps a failed detection call onto one of the mutually
// exclusive guidance messages, in priority order: timeout, bad request,
// server error, connectivity, then everything else. Classification keys on
// transport and status metadata, never on message text.
func classifyFailure(err error) string {
	var apiErr *api.APIError
	isAPIErr := errors.As(err, &apiErr)

	switch {
	case api.IsTimeout(err):
		return "Detection took too long. This can happen when the image is large (max 5MB), " +
			"the connection is slow, or the server is under load. " +
			"Try again with a smaller image or wait a moment."
	case isAPIErr && apiErr.StatusCode == 400:
		if text := apiErr.Text(); text != "" {
			return text
		}
		return "Invalid image format. Use JPG, PNG, or WebP."
	case isAPIErr && apiErr.StatusCode == 500:
		if text := apiErr.Text(); text != "" {
			return text
		}
		return "The server ran into a problem. Please try again in a moment."
	case api.IsConnectivity(err):
		return "Could not reach the server. Check that the backend is up and your connection is stable."
	default:
		if isAPIErr {
			if text := apiErr.Text(); text != "" {
				return text
			}
		}
		return "Failed to detect disease. Please try again."
	}
}
