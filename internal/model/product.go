package model

import "github.com/shopspring/decimal"

// Product never carries its photo payload. Photo bytes are read and written
// through their own repository calls.
type Product struct {
	BaseModel
	Name        string          `db:"name" json:"name"`
	Slug        string          `db:"slug" json:"slug"`
	Description string          `db:"description" json:"description"`
	Price       decimal.Decimal `db:"price" json:"price"`
	CategoryID  string          `db:"category_id" json:"categoryId"`
	Quantity    int             `db:"quantity" json:"quantity"`
	Shipping    bool            `db:"shipping" json:"shipping"`
	Category    *Category       `db:"-" json:"category,omitempty"` // Joined data
}

type Photo struct {
	Data        []byte `db:"photo_data"`
	ContentType string `db:"photo_content_type"`
}
