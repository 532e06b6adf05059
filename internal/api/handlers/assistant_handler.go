package handlers

import (
	"strings"

	"taxdesk/internal/dto"
	"taxdesk/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type AssistantHandler struct {
	assistantService *service.AssistantService
	authService      *service.AuthService
	logger           *zap.Logger
}

func NewAssistantHandler(assistantService *service.AssistantService, authService *service.AuthService, logger *zap.Logger) *AssistantHandler {
	return &AssistantHandler{
		assistantService: assistantService,
		authService:      authService,
		logger:           logger,
	}
}

// Ask godoc
// @Summary Ask the tax assistant
// @Description Answer a tax question using the user's stored tax data as context
// @Tags assistant
// @Accept json
// @Produce json
// @Param request body dto.AskRequest true "Question"
// @Security Bearer
// @Success 200 {object} dto.AskResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /tax/assistant [post]
func (h *AssistantHandler) Ask(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	var req dto.AskRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Question is required",
		})
	}

	user, err := h.authService.GetUser(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	answer, err := h.assistantService.Ask(c.Context(), user, req.Question)
	if err != nil {
		h.logger.Error("Assistant failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Assistant failed",
		})
	}

	return c.JSON(dto.AskResponse{Answer: answer})
}
