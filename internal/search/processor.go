package search

import (
	"github.com/hyperjump/tsrag/internal/config"
	"github.com/hyperjump/tsrag/internal/models"
)

// ProcessQuery validates the search query and applies the configured default k.
func ProcessQuery(query *models.SearchQuery, cfg *config.SearchConfig) error {
	if query == nil {
		return models.ErrInvalidInput
	}
	var defaultK int
	if cfg != nil {
		defaultK = cfg.DefaultK
	}
	return query.Validate(defaultK)
}
