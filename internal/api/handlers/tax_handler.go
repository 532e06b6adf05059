package handlers

import (
	"errors"
	"strconv"
	"time"

	"taxdesk/internal/dto"
	"taxdesk/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type TaxHandler struct {
	taxService *service.TaxService
	logger     *zap.Logger
}

func NewTaxHandler(taxService *service.TaxService, logger *zap.Logger) *TaxHandler {
	return &TaxHandler{
		taxService: taxService,
		logger:     logger,
	}
}

// UploadDocument godoc
// @Summary Upload a tax document
// @Description Upload a scanned tax document (image or PDF) for text extraction
// @Tags tax
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Document file (image or PDF)"
// @Param year formData int false "Tax year (defaults to current year)"
// @Param document_type formData string false "Document type: W2 or 1099"
// @Security Bearer
// @Success 200 {object} dto.UploadDocumentResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /tax/upload [post]
func (h *TaxHandler) UploadDocument(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "File is required",
		})
	}

	year, err := strconv.Atoi(c.FormValue("year"))
	if err != nil {
		year = time.Now().Year()
	}

	docType := c.FormValue("document_type")
	if docType == "" {
		docType = "W2"
	}

	src, err := file.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Failed to open file",
		})
	}
	defer src.Close()

	resp, err := h.taxService.UploadDocument(c.Context(), userID, src, file.Filename, year, docType)
	if err != nil {
		h.logger.Error("Failed to upload document", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to upload document",
		})
	}

	return c.JSON(resp)
}

// ListDocuments godoc
// @Summary List tax documents
// @Description Get the authenticated user's uploaded tax documents
// @Tags tax
// @Produce json
// @Security Bearer
// @Success 200 {object} map[string][]dto.DocumentResponse
// @Failure 401 {object} map[string]string
// @Router /tax/documents [get]
func (h *TaxHandler) ListDocuments(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	docs, err := h.taxService.ListDocuments(c.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list documents", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list documents",
		})
	}

	return c.JSON(fiber.Map{"documents": docs})
}

// GetTaxData godoc
// @Summary Get tax data
// @Description Get the authenticated user's per-year tax data aggregates
// @Tags tax
// @Produce json
// @Security Bearer
// @Success 200 {object} map[string][]dto.TaxDataResponse
// @Failure 401 {object} map[string]string
// @Router /tax/data [get]
func (h *TaxHandler) GetTaxData(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	data, err := h.taxService.GetTaxData(c.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to load tax data", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load tax data",
		})
	}

	return c.JSON(fiber.Map{"tax_data": data})
}

// SaveTaxData godoc
// @Summary Save tax data manually
// @Description Replace the aggregate tax data blob for one year
// @Tags tax
// @Accept json
// @Produce json
// @Param request body dto.SaveTaxDataRequest true "Tax data to save"
// @Security Bearer
// @Success 200 {object} dto.TaxDataResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /tax/data [post]
func (h *TaxHandler) SaveTaxData(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	var req dto.SaveTaxDataRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	resp, err := h.taxService.SaveManualData(c.Context(), userID, req.Year, req.Data)
	if err != nil {
		h.logger.Error("Failed to save tax data", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save tax data",
		})
	}

	return c.JSON(resp)
}

// DownloadDocument godoc
// @Summary Download a tax document
// @Description Download the original uploaded file for one document
// @Tags tax
// @Produce octet-stream
// @Param id path string true "Document ID"
// @Security Bearer
// @Success 200 {file} file
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /tax/download/{id} [get]
func (h *TaxHandler) DownloadDocument(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	documentID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid document ID",
		})
	}

	doc, err := h.taxService.DocumentFile(c.Context(), userID, documentID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotDocumentOwner):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Forbidden",
			})
		case errors.Is(err, service.ErrDocumentNotFound), errors.Is(err, service.ErrFileMissing):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Document not found",
			})
		default:
			h.logger.Error("Failed to resolve document", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to download document",
			})
		}
	}

	return c.Download(doc.FilePath, doc.FileName)
}

func getUserID(c *fiber.Ctx) (uuid.UUID, error) {
	userIDStr, ok := c.Locals("userID").(string)
	if !ok {
		return uuid.Nil, fiber.ErrUnauthorized
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return uuid.Nil, err
	}

	return userID, nil
}
