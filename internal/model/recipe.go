package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type RecipeStatus string

const (
	RecipeStatusActive   RecipeStatus = "active"
	RecipeStatusInactive RecipeStatus = "inactive"
	RecipeStatusDraft    RecipeStatus = "draft"
)

// MenuItem is a sellable item on the menu. Orders reference menu items;
// the recipe attached to a menu item describes how it consumes inventory.
type MenuItem struct {
	BaseModel
	SKU      string          `gorm:"type:varchar(50);uniqueIndex;not null" json:"sku" validate:"required"`
	Name     string          `gorm:"type:varchar(255);not null" json:"name" validate:"required"`
	Price    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price"`
	IsActive bool            `gorm:"default:true" json:"is_active"`
}

// Recipe is the production formula for one menu item. Yield is how many
// sellable units one batch of the formula produces.
type Recipe struct {
	BaseModel
	MenuItemID    uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null" json:"menu_item_id" validate:"uuid_required"`
	MenuItem      *MenuItem       `gorm:"foreignKey:MenuItemID" json:"menu_item,omitempty" validate:"-"`
	YieldQuantity decimal.Decimal `gorm:"type:decimal(20,4);default:1" json:"yield_quantity"`
	Status        RecipeStatus    `gorm:"type:varchar(16);not null;default:active" json:"status" validate:"omitempty,oneof=active inactive draft"`
	// TotalCost is derived; recomputed whenever ingredients or sub-recipes change
	TotalCost decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_cost"`

	Ingredients []RecipeIngredient `gorm:"foreignKey:RecipeID" json:"ingredients,omitempty"`
	SubRecipes  []RecipeSubRecipe  `gorm:"foreignKey:ParentRecipeID" json:"sub_recipes,omitempty"`
}

// RecipeIngredient is an edge from a recipe to a raw inventory item.
// Quantity is per one yield unit of the recipe.
type RecipeIngredient struct {
	BaseModel
	RecipeID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"recipe_id" validate:"uuid_required"`
	InventoryItemID uuid.UUID       `gorm:"type:uuid;not null;index" json:"inventory_item_id" validate:"uuid_required"`
	Quantity        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	Unit            string          `gorm:"type:varchar(20)" json:"unit"`
	UnitCost        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	// Optional ingredients never participate in requirement calculation
	IsOptional bool `gorm:"default:false" json:"is_optional"`
	IsActive   bool `gorm:"default:true" json:"is_active"`

	InventoryItem *InventoryItem `gorm:"foreignKey:InventoryItemID" json:"inventory_item,omitempty" validate:"-"`
}

// RecipeSubRecipe is an edge from a parent recipe to a child recipe.
// Quantity is how many units of the child one unit of the parent needs.
// The graph restricted to active edges must stay acyclic.
type RecipeSubRecipe struct {
	BaseModel
	ParentRecipeID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_parent_sub" json:"parent_recipe_id" validate:"uuid_required"`
	SubRecipeID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_parent_sub" json:"sub_recipe_id" validate:"uuid_required"`
	Quantity       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	IsActive       bool            `gorm:"default:true" json:"is_active"`

	SubRecipe *Recipe `gorm:"foreignKey:SubRecipeID" json:"sub_recipe,omitempty" validate:"-"`
}
