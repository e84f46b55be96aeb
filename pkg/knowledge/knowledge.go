// Package knowledge reads the disease knowledge base. Responses change
// rarely, so both the list and per-disease details go through the TTL cache
// in the local store; a cache failure only costs a refetch.
package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"grovia-client/pkg/api"
	"grovia-client/pkg/models"
	"grovia-client/pkg/normalize"
	"grovia-client/pkg/storage"
)

const defaultTTL = time.Hour

// Client fetches knowledge-base records with local caching.
type Client struct {
	api    *api.Client
	cache  *storage.Store
	logger *slog.Logger
	ttl    time.Duration
}

// NewClient creates a knowledge-base client. A zero ttl uses the default of
// one hour.
func NewClient(apiClient *api.Client, cache *storage.Store, ttl time.Duration, logger *slog.Logger) *Client {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Client{api: apiClient, cache: cache, logger: logger, ttl: ttl}
}

// Diseases lists all known diseases.
func (c *Client) Diseases(ctx context.Context) ([]models.Disease, error) {
	const cacheKey = "cache_knowledge_diseases"

	var cached []models.Disease
	if ok, err := c.cache.GetCache(ctx, cacheKey, &cached); err == nil && ok {
		return cached, nil
	} else if err != nil {
		c.logger.Debug("knowledge cache read failed", "key", cacheKey, "error", err)
	}

	resp, err := c.api.Get(ctx, "/knowledge/diseases", nil)
	if err != nil {
		return nil, fmt.Errorf("error fetching diseases: %w", err)
	}

	diseases, err := parseDiseaseList(resp.Body)
	if err != nil {
		return nil, err
	}

	if err := c.cache.SetCache(ctx, cacheKey, diseases, c.ttl); err != nil {
		c.logger.Debug("knowledge cache write failed", "key", cacheKey, "error", err)
	}
	return diseases, nil
}

// Disease fetches the full record for one disease.
func (c *Client) Disease(ctx context.Context, id string) (*models.DiseaseDetail, error) {
	cacheKey := "cache_knowledge_disease_" + id

	cached := new(models.DiseaseDetail)
	if ok, err := c.cache.GetCache(ctx, cacheKey, cached); err == nil && ok {
		return cached, nil
	} else if err != nil {
		c.logger.Debug("knowledge cache read failed", "key", cacheKey, "error", err)
	}

	resp, err := c.api.Get(ctx, "/knowledge/diseases/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("error fetching disease %s: %w", id, err)
	}

	detail := new(models.DiseaseDetail)
	if err := json.Unmarshal(resp.Body, detail); err != nil {
		return nil, normalize.ErrUnrecognizedShape
	}

	if err := c.cache.SetCache(ctx, cacheKey, detail, c.ttl); err != nil {
		c.logger.Debug("knowledge cache write failed", "key", cacheKey, "error", err)
	}
	return detail, nil
}

// parseDiseaseList accepts a bare array, {data: [...]}, or a {success, data}
// envelope.
func parseDiseaseList(body []byte) ([]models.Disease, error) {
	var bare []models.Disease
	if err := json.Unmarshal(body, &bare); err == nil {
		return bare, nil
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Data) == 0 {
		return nil, normalize.ErrUnrecognizedShape
	}

	var list []models.Disease
	if err := json.Unmarshal(envelope.Data, &list); err == nil {
		return list, nil
	}

	var nested struct {
		Diseases []models.Disease `json:"diseases"`
	}
	if err := json.Unmarshal(envelope.Data, &nested); err == nil && nested.Diseases != nil {
		return nested.Diseases, nil
	}

	return nil, normalize.ErrUnrecognizedShape
}
