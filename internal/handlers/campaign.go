package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/marketeam/adpilot/internal/services"
	"github.com/marketeam/adpilot/internal/store"
	"github.com/marketeam/adpilot/pkg/models"
)

// maxProductImageBytes bounds the uploaded reference photo.
const maxProductImageBytes = 10 << 20

type CampaignHandler struct {
	orchestrator *services.CampaignOrchestrator
	users        *store.UserStore
	validator    *validator.Validate
	logger       *logrus.Logger
}

func NewCampaignHandler(orchestrator *services.CampaignOrchestrator, users *store.UserStore, logger *logrus.Logger) *CampaignHandler {
	return &CampaignHandler{
		orchestrator: orchestrator,
		users:        users,
		validator:    validator.New(),
		logger:       logger,
	}
}

type generateCampaignRequest struct {
	ProductDescription string `form:"product_description" validate:"required,min=2"`
	CampaignTheme      string `form:"campaign_theme" validate:"omitempty,max=200"`
	StylePreset        string `form:"style_preset" validate:"omitempty,oneof=realistic semi-realistic stylized"`
}

// Generate runs one full campaign from a multipart form: a required product
// description, an optional product photo, an optional campaign theme, and a
// style preset.
func (h *CampaignHandler) Generate(c *gin.Context) {
	var form generateCampaignRequest
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "Could not parse form data",
			},
		})
		return
	}

	if err := h.validator.Struct(&form); err != nil {
		h.logger.WithError(err).Warn("Campaign request validation failed")
		c.JSON(http.StatusBadRequest, validationEnvelope(err))
		return
	}

	style := models.StylePreset(form.StylePreset)
	if form.StylePreset == "" {
		style = models.StyleRealistic
	}

	req := services.CampaignRequest{
		ProductDescription: form.ProductDescription,
		CampaignTheme:      form.CampaignTheme,
		Style:              style,
	}

	if fileHeader, err := c.FormFile("product_image"); err == nil {
		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": gin.H{
					"code":    "INVALID_PRODUCT_IMAGE",
					"message": "Could not read uploaded product image",
				},
			})
			return
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, maxProductImageBytes+1))
		if err != nil || len(data) > maxProductImageBytes {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": gin.H{
					"code":    "INVALID_PRODUCT_IMAGE",
					"message": "Product image is unreadable or exceeds 10MB",
				},
			})
			return
		}

		mimeType := fileHeader.Header.Get("Content-Type")
		if mimeType == "" {
			mimeType = http.DetectContentType(data)
		}
		req.ProductImage = data
		req.ProductImageMIME = mimeType
	}

	response, err := h.orchestrator.GenerateCampaign(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNoTrendData):
			c.JSON(http.StatusNotFound, gin.H{
				"error": gin.H{
					"code":    "NO_TREND_DATA",
					"message": "No trend data available",
				},
			})
		case errors.Is(err, services.ErrNoMatches):
			c.JSON(http.StatusNotFound, gin.H{
				"error": gin.H{
					"code":    "NO_MATCHES",
					"message": "No users matched any trending topics",
				},
			})
		default:
			h.logger.WithError(err).Error("Campaign run failed")
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": gin.H{
					"code":    "CAMPAIGN_FAILED",
					"message": "Campaign generation failed",
				},
			})
		}
		return
	}

	c.JSON(http.StatusOK, response)
}

// Last returns the full response of the most recent completed run.
func (h *CampaignHandler) Last(c *gin.Context) {
	run := h.orchestrator.LastRun()
	if run == nil || run.Response == nil {
		h.noRun(c)
		return
	}
	c.JSON(http.StatusOK, run.Response)
}

// Matches returns the per-user interest matches of the last run.
func (h *CampaignHandler) Matches(c *gin.Context) {
	run := h.orchestrator.LastRun()
	if run == nil {
		h.noRun(c)
		return
	}
	results := run.MatchResults(h.users)
	c.JSON(http.StatusOK, gin.H{
		"run_id":  run.ID,
		"results": results,
		"count":   len(results),
	})
}

// Images returns the keyed image map of the last run.
func (h *CampaignHandler) Images(c *gin.Context) {
	run := h.orchestrator.LastRun()
	if run == nil {
		h.noRun(c)
		return
	}
	images := run.Images()
	c.JSON(http.StatusOK, gin.H{
		"run_id": run.ID,
		"images": images,
		"count":  len(images),
	})
}

// Prompts returns the optimized prompts of the last run by subject key.
func (h *CampaignHandler) Prompts(c *gin.Context) {
	run := h.orchestrator.LastRun()
	if run == nil {
		h.noRun(c)
		return
	}
	prompts := run.Prompts()
	c.JSON(http.StatusOK, gin.H{
		"run_id":  run.ID,
		"prompts": prompts,
		"count":   len(prompts),
	})
}

// validationEnvelope keeps the field-specific error codes the API has
// always reported while the validation itself runs through the validator.
func validationEnvelope(err error) gin.H {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		switch fieldErrs[0].Field() {
		case "ProductDescription":
			return gin.H{"error": gin.H{
				"code":    "MISSING_PRODUCT_DESCRIPTION",
				"message": "product_description is required",
			}}
		case "StylePreset":
			return gin.H{"error": gin.H{
				"code":    "INVALID_STYLE_PRESET",
				"message": "style_preset must be one of realistic, semi-realistic, stylized",
			}}
		}
	}
	return gin.H{"error": gin.H{
		"code":    "INVALID_REQUEST",
		"message": "Invalid campaign request",
	}}
}

func (h *CampaignHandler) noRun(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"error": gin.H{
			"code":    "NO_CAMPAIGN_RUN",
			"message": "No campaign has been generated yet",
		},
	})
}
