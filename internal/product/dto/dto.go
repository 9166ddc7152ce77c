package dto

import "github.com/shopspring/decimal"

// ProductFilters is an AND of the supplied predicates. A nil or empty field
// puts no constraint on the result.
type ProductFilters struct {
	CategoryIDs []string
	Price       *PriceRange
}

// PriceRange bounds are inclusive.
type PriceRange struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// FilterRequest is the wire shape of POST /products/filter.
type FilterRequest struct {
	Checked []string          `json:"checked"`
	Radio   []decimal.Decimal `json:"radio"`
}
