package dto

import "github.com/shopspring/decimal"

type CreateProductInput struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	CategoryID  string          `json:"category" binding:"required"`
	Quantity    int             `json:"quantity"`
	Shipping    bool            `json:"shipping"`
}

type UpdateProductInput struct {
	ID string `json:"-"`
	CreateProductInput
}
