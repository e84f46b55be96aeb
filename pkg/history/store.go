// Package history caches the user's past detections: paginated fetches with
// shape-tolerant envelope parsing, incremental page accumulation, and local
// mutation on delete.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"grovia-client/pkg/api"
	"grovia-client/pkg/models"
	"grovia-client/pkg/normalize"
)

// ErrNotFound means the requested history entry does not exist server-side.
var ErrNotFound = errors.New("history entry not found")

// ErrSessionExpired marks a fetch rejected because the session is no longer
// valid.
var ErrSessionExpired = errors.New("session expired")

// ConfidenceLevel buckets entries for local filtering.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"   // >= 0.8
	ConfidenceMedium ConfidenceLevel = "medium" // [0.6, 0.8)
	ConfidenceLow    ConfidenceLevel = "low"    // [0, 0.6)
)

// Store is the paginated history cache.
type Store struct {
	api    *api.Client
	logger *slog.Logger

	mu            sync.Mutex
	items         []models.HistoryEntry
	loading       bool
	message       string
	currentPage   int
	totalPages    int
	totalItems    int
	itemsPerPage  int
	sortBy        models.SortOrder
	selected      *models.HistoryEntry
	loadingDetail bool
}

// NewStore creates a history store with the given default page size.
func NewStore(client *api.Client, pageSize int, logger *slog.Logger) *Store {
	if pageSize <= 0 {
		pageSize = 10
	}
	return &Store{
		api:          client,
		logger:       logger,
		items:        []models.HistoryEntry{},
		currentPage:  1,
		totalPages:   1,
		itemsPerPage: pageSize,
		sortBy:       models.SortNewest,
	}
}

// FetchOptions selects which page to load. Zero values fall back to the
// store's current page, page size, and sort order.
type FetchOptions struct {
	Page  int
	Limit int
	Sort  models.SortOrder
	Reset bool
}

// Fetch loads a history page. When Reset is set or page 1 is requested the
// local sequence is replaced; otherwise the page is appended, which is what
// makes incremental "load more" work. On failure the store collapses to an
// empty single-page state.
func (s *Store) Fetch(ctx context.Context, opts FetchOptions) ([]models.HistoryEntry, error) {
	s.mu.Lock()
	if opts.Page == 0 {
		opts.Page = s.currentPage
	}
	if opts.Limit == 0 {
		opts.Limit = s.itemsPerPage
	}
	if opts.Sort == "" {
		opts.Sort = s.sortBy
	}
	if opts.Reset {
		s.items = []models.HistoryEntry{}
		s.currentPage = 1
	}
	s.loading = true
	s.message = ""
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	query := url.Values{}
	query.Set("page", strconv.Itoa(opts.Page))
	query.Set("limit", strconv.Itoa(opts.Limit))
	query.Set("sort", string(opts.Sort))

	resp, err := s.api.Get(ctx, "/history", query)
	if err != nil {
		s.failFetch(opts.Limit, err)
		if api.StatusOf(err) == 401 {
			return nil, fmt.Errorf("%w: %w", ErrSessionExpired, err)
		}
		return nil, err
	}

	items, pagination, err := parseListResponse(resp.Body, opts.Limit)
	if err != nil {
		s.failFetch(opts.Limit, err)
		return nil, err
	}

	s.mu.Lock()
	if opts.Reset || opts.Page == 1 {
		s.items = items
	} else {
		s.items = append(s.items, items...)
	}
	s.currentPage = pagination.CurrentPage
	s.totalPages = pagination.TotalPages
	s.totalItems = pagination.TotalItems
	s.itemsPerPage = pagination.ItemsPerPage
	s.sortBy = opts.Sort
	s.mu.Unlock()

	return items, nil
}

func (s *Store) failFetch(limit int, err error) {
	s.logger.Error("failed to fetch history", "error", err)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = []models.HistoryEntry{}
	s.currentPage = 1
	s.totalPages = 1
	s.totalItems = 0
	s.itemsPerPage = limit

	if api.StatusOf(err) == 401 {
		s.message = "Your session has expired. Please sign in again."
	} else {
		s.message = "Failed to load history. Please try again."
	}
}

// LoadMore fetches the next page. It is a no-op while a fetch is in flight
// or when the last page is already loaded, so rapid calls cannot issue
// duplicate requests.
func (s *Store) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	if s.loading || s.currentPage >= s.totalPages {
		s.mu.Unlock()
		return nil
	}
	next := s.currentPage + 1
	s.mu.Unlock()

	_, err := s.Fetch(ctx, FetchOptions{Page: next})
	return err
}

// Refresh reloads the list from the first page.
func (s *Store) Refresh(ctx context.Context) error {
	_, err := s.Fetch(ctx, FetchOptions{Reset: true})
	return err
}

// ChangeSort switches the sort order and reloads; it is a no-op when the
// order is unchanged.
func (s *Store) ChangeSort(ctx context.Context, sort models.SortOrder) error {
	s.mu.Lock()
	unchanged := s.sortBy == sort
	s.mu.Unlock()
	if unchanged {
		return nil
	}
	_, err := s.Fetch(ctx, FetchOptions{Sort: sort, Reset: true})
	return err
}

// Detail fetches one history entry and selects it.
func (s *Store) Detail(ctx context.Context, id string) (*models.HistoryEntry, error) {
	s.mu.Lock()
	s.loadingDetail = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.loadingDetail = false
		s.mu.Unlock()
	}()

	resp, err := s.api.Get(ctx, "/history/"+url.PathEscape(id), nil)
	if err != nil {
		s.logger.Error("failed to fetch history detail", "id", id, "error", err)
		if api.StatusOf(err) == 404 {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to load history detail: %w", err)
	}

	entry := new(models.HistoryEntry)
	if err := json.Unmarshal(resp.Body, entry); err != nil {
		return nil, fmt.Errorf("failed to load history detail: %w", err)
	}

	s.mu.Lock()
	s.selected = entry
	s.mu.Unlock()
	return entry, nil
}

// Delete removes an entry server-side, then mirrors the removal locally:
// the matching item leaves the sequence and the total counter drops by one.
// There is no rollback; when the backend call fails local state is left
// untouched. Total pages are not recomputed locally; they refresh on the
// next fetch.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.api.Delete(ctx, "/history/"+url.PathEscape(id)); err != nil {
		s.logger.Error("failed to delete history entry", "id", id, "error", err)
		if api.StatusOf(err) == 404 {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("failed to delete history entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.items[:0:0]
	for _, item := range s.items {
		if item.HistoryID.String() != id {
			kept = append(kept, item)
		}
	}
	s.items = kept
	s.totalItems--

	if s.selected != nil && s.selected.HistoryID.String() == id {
		s.selected = nil
	}
	return nil
}

// ClearSelected drops the selected detail entry.
func (s *Store) ClearSelected() {
	s.mu.Lock()
	s.selected = nil
	s.mu.Unlock()
}

// Clear resets the store to its initial empty state.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = []models.HistoryEntry{}
	s.currentPage = 1
	s.totalPages = 1
	s.totalItems = 0
	s.selected = nil
	s.message = ""
}

// Search filters the loaded items by disease name, case-insensitively. It
// only sees pages that have already been fetched.
func (s *Store) Search(query string) []models.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if query == "" {
		return append([]models.HistoryEntry(nil), s.items...)
	}

	needle := strings.ToLower(query)
	matched := []models.HistoryEntry{}
	for _, item := range s.items {
		if strings.Contains(strings.ToLower(item.DiseaseName), needle) {
			matched = append(matched, item)
		}
	}
	return matched
}

// FilterByConfidence returns the loaded items whose confidence falls in the
// given bucket.
func (s *Store) FilterByConfidence(level ConfidenceLevel) []models.HistoryEntry {
	min, max := 0.0, 1.01
	switch level {
	case ConfidenceHigh:
		min, max = 0.8, 1.01
	case ConfidenceMedium:
		min, max = 0.6, 0.8
	case ConfidenceLow:
		min, max = 0, 0.6
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	matched := []models.HistoryEntry{}
	for _, item := range s.items {
		if item.Confidence >= min && item.Confidence < max {
			matched = append(matched, item)
		}
	}
	return matched
}

// Items returns a snapshot of the loaded entries.
func (s *Store) Items() []models.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.HistoryEntry(nil), s.items...)
}

// Selected returns the currently selected detail entry, nil when none.
func (s *Store) Selected() *models.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Pagination returns the current pagination state.
func (s *Store) Pagination() models.Pagination {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.Pagination{
		CurrentPage:  s.currentPage,
		TotalPages:   s.totalPages,
		TotalItems:   s.totalItems,
		ItemsPerPage: s.itemsPerPage,
	}
}

// HasMorePages reports whether pages beyond the current one exist.
func (s *Store) HasMorePages() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentPage < s.totalPages
}

// IsEmpty reports whether the store holds no items and no fetch is running.
func (s *Store) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.loading && len(s.items) == 0
}

// Loading reports whether a list fetch is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Message returns the last failure description.
func (s *Store) Message() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.message
}

// SortBy returns the active sort order.
func (s *Store) SortBy() models.SortOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortBy
}

// GroupedByDate buckets the loaded items by calendar day of detection.
// Entries whose timestamp does not parse group under their raw string.
func (s *Store) GroupedByDate() map[string][]models.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	groups := make(map[string][]models.HistoryEntry)
	for _, item := range s.items {
		key := item.DetectedAt
		if t, err := time.Parse(time.RFC3339, item.DetectedAt); err == nil {
			key = t.Format("2 January 2006")
		}
		groups[key] = append(groups[key], item)
	}
	return groups
}

// PaginationInfo renders a "showing X-Y of Z" line for the current page.
func (s *Store) PaginationInfo() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.totalItems == 0 {
		return "No history yet"
	}
	start := (s.currentPage-1)*s.itemsPerPage + 1
	end := s.currentPage * s.itemsPerPage
	if end > s.totalItems {
		end = s.totalItems
	}
	return fmt.Sprintf("Showing %d-%d of %d entries", start, end, s.totalItems)
}

// parseListResponse normalizes the list payload. Tolerated envelopes, first
// structural match wins:
//
//  1. bare array
//  2. {items: [...], pagination}
//  3. {data: [...], pagination}
//  4. {success, data: {records|detections|history|items, pagination}}
//
// Missing pagination fields fall back to a single page sized by limit.
func parseListResponse(body []byte, limit int) ([]models.HistoryEntry, models.Pagination, error) {
	fallback := models.Pagination{CurrentPage: 1, TotalPages: 1, ItemsPerPage: limit}

	var bare []models.HistoryEntry
	if err := json.Unmarshal(body, &bare); err == nil {
		fallback.TotalItems = len(bare)
		return bare, fallback, nil
	}

	var envelope struct {
		Items      json.RawMessage    `json:"items"`
		Data       json.RawMessage    `json:"data"`
		Success    bool               `json:"success"`
		Pagination *models.Pagination `json:"pagination"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fallback, normalize.ErrUnrecognizedShape
	}

	var items []models.HistoryEntry
	pagination := envelope.Pagination

	switch {
	case decodeList(envelope.Items, &items):
	case decodeList(envelope.Data, &items):
	case envelope.Success && len(envelope.Data) > 0:
		var data struct {
			Records    json.RawMessage    `json:"records"`
			Detections json.RawMessage    `json:"detections"`
			History    json.RawMessage    `json:"history"`
			Items      json.RawMessage    `json:"items"`
			Pagination *models.Pagination `json:"pagination"`
		}
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return nil, fallback, normalize.ErrUnrecognizedShape
		}
		if !decodeList(data.Records, &items) &&
			!decodeList(data.Detections, &items) &&
			!decodeList(data.History, &items) &&
			!decodeList(data.Items, &items) {
			return nil, fallback, normalize.ErrUnrecognizedShape
		}
		if data.Pagination != nil {
			pagination = data.Pagination
		}
	default:
		return nil, fallback, normalize.ErrUnrecognizedShape
	}

	if items == nil {
		items = []models.HistoryEntry{}
	}

	final := fallback
	if pagination != nil {
		final = *pagination
	}
	if final.CurrentPage <= 0 {
		final.CurrentPage = 1
	}
	if final.TotalPages <= 0 {
		final.TotalPages = 1
	}
	if final.TotalItems <= 0 {
		final.TotalItems = len(items)
	}
	if final.ItemsPerPage <= 0 {
		final.ItemsPerPage = limit
	}
	return items, final, nil
}

// decodeList accepts only a JSON array for dst.
func decodeList(raw json.RawMessage, dst *[]models.HistoryEntry) bool {
	if len(raw) == 0 {
		return false
	}
	var list []models.HistoryEntry
	if err := json.Unmarshal(raw, &list); err != nil {
		return false
	}
	*dst = list
	return true
}
