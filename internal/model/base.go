package model

import "time"

type BaseModel struct {
	ID        string    `db:"id" json:"_id"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}
