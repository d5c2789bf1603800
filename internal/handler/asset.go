package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"whiteboard-backend/internal/model"
)

// AssetHandler serves the asset library image elements reference.
type AssetHandler struct {
	db *gorm.DB
}

// NewAssetHandler builds an AssetHandler.
func NewAssetHandler(db *gorm.DB) *AssetHandler {
	return &AssetHandler{db: db}
}

// CreateAssetRequest is the register-asset body. The binary itself lives in
// external object storage; only its URL is recorded here.
type CreateAssetRequest struct {
	Title      string `json:"title"`
	Type       string `json:"type"`
	MimeType   string `json:"mime_type"`
	URL        string `json:"url"`
	PreviewURL string `json:"preview_url"`
}

// CreateAsset registers an asset.
func (h *AssetHandler) CreateAsset(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)

	var req CreateAssetRequest
	if err := c.BodyParser(&req); err != nil || req.URL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "url is required"})
	}

	assetType := req.Type
	if assetType == "" {
		assetType = model.AssetTypeImage.String()
	}

	asset := model.Asset{
		OwnerID:    userID,
		Title:      req.Title,
		Type:       assetType,
		MimeType:   req.MimeType,
		URL:        req.URL,
		PreviewURL: req.PreviewURL,
	}
	if err := h.db.Create(&asset).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create asset"})
	}
	return c.Status(fiber.StatusCreated).JSON(asset)
}

// ListAssets returns the caller's asset library.
func (h *AssetHandler) ListAssets(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)

	var assets []model.Asset
	if err := h.db.Where("owner_id = ?", userID).Order("created_at DESC").Find(&assets).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list assets"})
	}
	return c.JSON(fiber.Map{"assets": assets})
}

// GetAsset resolves one asset by id. Image elements carry an asset id on the
// wire and fetch the source URL through here.
func (h *AssetHandler) GetAsset(c *fiber.Ctx) error {
	assetID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid asset ID"})
	}

	var asset model.Asset
	if err := h.db.First(&asset, assetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "asset not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load asset"})
	}
	return c.JSON(asset)
}

// DeleteAsset removes an asset from the caller's library. Elements already
// referencing it keep their resolved src.
func (h *AssetHandler) DeleteAsset(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)

	assetID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid asset ID"})
	}

	result := h.db.Where("id = ? AND owner_id = ?", assetID, userID).Delete(&model.Asset{})
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to delete asset"})
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "asset not found"})
	}
	return c.JSON(fiber.Map{"success": true})
}
