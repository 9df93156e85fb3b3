package handler

import (
	"errors"

	"go-resto-inventory/internal/apperr"
	"go-resto-inventory/internal/repository"
	"go-resto-inventory/internal/service"
	"go-resto-inventory/pkg/validator"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type InventoryHandler struct {
	deductions service.DeductionService
	inventory  repository.InventoryRepository
}

func NewInventoryHandler(deductions service.DeductionService, inventory repository.InventoryRepository) *InventoryHandler {
	return &InventoryHandler{deductions: deductions, inventory: inventory}
}

func (h *InventoryHandler) GetItems(c *fiber.Ctx) error {
	items, err := h.inventory.FindAll(c.Context())
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Internal Server Error"})
	}
	return c.JSON(items)
}

func (h *InventoryHandler) GetItemAdjustments(c *fiber.Ctx) error {
	itemID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid inventory item ID"})
	}
	adjustments, err := h.inventory.FindAdjustmentsByItem(c.Context(), itemID)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Internal Server Error"})
	}
	return c.JSON(adjustments)
}

type deductRequest struct {
	Items        []service.OrderItem `json:"items" validate:"required,min=1,dive"`
	OrderTotal   decimal.Decimal     `json:"order_total"`
	AllowPartial bool                `json:"allow_partial"`
}

func (h *InventoryHandler) DeductForOrder(c *fiber.Ctx) error {
	orderID := c.Params("order_id")

	var req deductRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	if errs := validator.ValidateStruct(&req); len(errs) > 0 {
		return c.Status(400).JSON(fiber.Map{"error": "Validation failed", "field": errs[0].FailedField, "tag": errs[0].Tag})
	}

	result, err := h.deductions.DeductForOrder(c.Context(), service.DeductionRequest{
		OrderID:               orderID,
		UserID:                getUserID(c),
		Items:                 req.Items,
		Type:                  service.DeductionOrderCompleted,
		OrderTotal:            req.OrderTotal,
		AllowPartial:          req.AllowPartial,
		CreateReviewOnFailure: true,
	})
	if err != nil {
		return domainError(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"message": "Inventory deducted", "data": result})
}

type partialFulfillRequest struct {
	Items []service.OrderItem `json:"items" validate:"required,min=1,dive"`
}

func (h *InventoryHandler) DeductForPartialFulfillment(c *fiber.Ctx) error {
	orderID := c.Params("order_id")

	var req partialFulfillRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	if errs := validator.ValidateStruct(&req); len(errs) > 0 {
		return c.Status(400).JSON(fiber.Map{"error": "Validation failed", "field": errs[0].FailedField, "tag": errs[0].Tag})
	}

	result, err := h.deductions.DeductForPartialFulfillment(c.Context(), orderID, getUserID(c), req.Items)
	if err != nil {
		return domainError(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"message": "Partial fulfillment deducted", "data": result})
}

type reverseRequest struct {
	Reason string `json:"reason"`
	Force  bool   `json:"force"`
}

func (h *InventoryHandler) ReverseDeduction(c *fiber.Ctx) error {
	orderID := c.Params("order_id")

	var req reverseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	result, err := h.deductions.ReverseDeduction(c.Context(), orderID, getUserID(c), req.Reason, req.Force)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Deduction reversed", "data": result})
}

type previewRequest struct {
	Items []service.OrderItem `json:"items" validate:"required,min=1,dive"`
}

func (h *InventoryHandler) PreviewImpact(c *fiber.Ctx) error {
	var req previewRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	if errs := validator.ValidateStruct(&req); len(errs) > 0 {
		return c.Status(400).JSON(fiber.Map{"error": "Validation failed", "field": errs[0].FailedField, "tag": errs[0].Tag})
	}

	preview, err := h.deductions.PreviewImpact(c.Context(), req.Items)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(preview)
}

// domainError maps the failure taxonomy onto HTTP statuses with the full
// structured detail payload in the body.
func domainError(c *fiber.Ctx, err error) error {
	var dup *apperr.DuplicateDeductionError
	if errors.As(err, &dup) {
		// Already deducted: idempotent no-op, not a client fault
		return c.Status(409).JSON(fiber.Map{"error": dup.Error(), "code": dup.Code(), "details": dup.Details()})
	}
	if de, ok := apperr.AsDomain(err); ok {
		status := 422
		if _, locked := de.(*apperr.SyncLockedError); locked {
			status = 409
		}
		return c.Status(status).JSON(fiber.Map{"error": de.Error(), "code": de.Code(), "details": de.Details()})
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(404).JSON(fiber.Map{"error": "Not found"})
	}
	return c.Status(500).JSON(fiber.Map{"error": "Internal Server Error"})
}
