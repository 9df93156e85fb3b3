package handler

import (
	"go-resto-inventory/internal/service"
	"go-resto-inventory/pkg/validator"

	"github.com/gofiber/fiber/v2"
)

type RecipeHandler struct {
	service service.RecipeService
}

func NewRecipeHandler(s service.RecipeService) *RecipeHandler {
	return &RecipeHandler{service: s}
}

func (h *RecipeHandler) GetRecipe(c *fiber.Ctx) error {
	recipeID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid recipe ID"})
	}
	recipe, err := h.service.GetRecipe(c.Context(), recipeID)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "Recipe not found"})
	}
	return c.JSON(recipe)
}

type setSubRecipesRequest struct {
	SubRecipes []service.SubRecipeInput `json:"sub_recipes" validate:"dive"`
}

// SetSubRecipes replaces a recipe's sub-recipe list. The circular
// dependency validator gates the whole request before anything persists.
func (h *RecipeHandler) SetSubRecipes(c *fiber.Ctx) error {
	recipeID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid recipe ID"})
	}

	var req setSubRecipesRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	if errs := validator.ValidateStruct(&req); len(errs) > 0 {
		return c.Status(400).JSON(fiber.Map{"error": "Validation failed", "field": errs[0].FailedField, "tag": errs[0].Tag})
	}

	recipe, err := h.service.SetSubRecipes(c.Context(), recipeID, req.SubRecipes, getUserID(c))
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Sub-recipes updated", "data": recipe})
}

type addSubRecipeRequest struct {
	service.SubRecipeInput
}

func (h *RecipeHandler) AddSubRecipe(c *fiber.Ctx) error {
	recipeID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid recipe ID"})
	}

	var req addSubRecipeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	if errs := validator.ValidateStruct(&req); len(errs) > 0 {
		return c.Status(400).JSON(fiber.Map{"error": "Validation failed", "field": errs[0].FailedField, "tag": errs[0].Tag})
	}

	recipe, err := h.service.AddSubRecipe(c.Context(), recipeID, req.SubRecipeInput, getUserID(c))
	if err != nil {
		return domainError(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"message": "Sub-recipe added", "data": recipe})
}
