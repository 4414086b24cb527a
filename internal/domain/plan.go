package domain

import (
	"time"

	"github.com/google/uuid"
)

// PlanInterval период тарификации плана
type PlanInterval string

const (
	PlanIntervalMonth PlanInterval = "month"
	PlanIntervalYear  PlanInterval = "year"
)

// Plan представляет собой запись каталога тарифных планов.
// Записи каталога неизменяемы, кроме лениво заполняемых идентификаторов PayPal.
type Plan struct {
	ID              uuid.UUID    `json:"id"`
	Name            string       `json:"name"`
	Description     string       `json:"description,omitempty"`
	Price           float64      `json:"price"`
	Currency        string       `json:"currency"`
	Interval        PlanInterval `json:"interval"`
	PayPalProductID *string      `json:"paypal_product_id,omitempty"`
	PayPalPlanID    *string      `json:"paypal_plan_id,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// IsFree сообщает, является ли план бесплатным.
// Бесплатный план никогда не имеет идентификаторов PayPal.
func (p *Plan) IsFree() bool {
	return p.Price == 0
}
