package handler

import (
	"go-resto-inventory/internal/model"
	"go-resto-inventory/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ReviewHandler struct {
	service service.ReviewService
}

func NewReviewHandler(s service.ReviewService) *ReviewHandler {
	return &ReviewHandler{service: s}
}

func (h *ReviewHandler) GetPending(c *fiber.Ctx) error {
	entries, err := h.service.ListPending(c.Context())
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Internal Server Error"})
	}
	return c.JSON(entries)
}

type resolveReviewRequest struct {
	Status model.ReviewStatus `json:"status"`
	Notes  string             `json:"notes"`
}

func (h *ReviewHandler) Resolve(c *fiber.Ctx) error {
	entryID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid review entry ID"})
	}

	var req resolveReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	entry, err := h.service.Resolve(c.Context(), entryID, getUserID(c), req.Status, req.Notes)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message": "Review entry updated", "data": entry})
}
