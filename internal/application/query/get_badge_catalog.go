package query

import "github.com/carboniq/carboniq-rewards/internal/domain/catalog"

// CatalogView is the public rule catalog.
type CatalogView struct {
	Badges          []catalog.Badge `json:"badges"`
	TotalBadges     int             `json:"total_badges"`
	Rules           []catalog.Rule  `json:"rules"`
	LevelThresholds []int           `json:"level_thresholds"`
}

// GetBadgeCatalogHandler exposes the catalog.
type GetBadgeCatalogHandler struct {
	catalog *catalog.Catalog
}

// NewGetBadgeCatalogHandler creates a new GetBadgeCatalogHandler.
func NewGetBadgeCatalogHandler(c *catalog.Catalog) *GetBadgeCatalogHandler {
	return &GetBadgeCatalogHandler{catalog: c}
}

// Handle returns badge definitions in catalog order with the point rules
// and level floors.
func (h *GetBadgeCatalogHandler) Handle() CatalogView {
	badges := h.catalog.Badges()
	return CatalogView{
		Badges:          badges,
		TotalBadges:     len(badges),
		Rules:           h.catalog.Rules(),
		LevelThresholds: h.catalog.Levels().Thresholds(),
	}
}
