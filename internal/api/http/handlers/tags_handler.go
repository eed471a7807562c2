package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// TagsHandler manages the label catalogue and ticket labels.
type TagsHandler struct {
	tags *service.TagService
}

// NewTagsHandler constructs handler.
func NewTagsHandler(tagService *service.TagService) *TagsHandler {
	return &TagsHandler{tags: tagService}
}

// ListTags GET /tags.
func (h *TagsHandler) ListTags(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	tags, err := h.tags.List(c.UserContext(), actor)
	if err != nil {
		return err
	}
	items := make([]dto.TagResponse, 0, len(tags))
	for i := range tags {
		items = append(items, dto.NewTagResponse(&tags[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// CreateTag POST /tags.
func (h *TagsHandler) CreateTag(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateTagRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	tag, err := h.tags.Create(c.UserContext(), actor, req.Name, req.Color)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTagResponse(tag)})
}

// AddTag PUT /tickets/:id/tags/:tagId.
func (h *TagsHandler) AddTag(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.tags.AddToTicket(c.UserContext(), actor, c.Params("id"), c.Params("tagId")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// RemoveTag DELETE /tickets/:id/tags/:tagId.
func (h *TagsHandler) RemoveTag(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.tags.RemoveFromTicket(c.UserContext(), actor, c.Params("id"), c.Params("tagId")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
