package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// capacities go over the wire as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
}

// Tank 一个在制储罐，由一次BOM提交创建
type Tank struct {
	ID           string          `json:"id" gorm:"primaryKey;size:32"`
	TankType     string          `json:"tankType" gorm:"size:128;not null"`
	Capacity     decimal.Decimal `json:"capacity" gorm:"type:numeric(12,3);not null"` // kilolitres
	DeliveryDate time.Time       `json:"deliveryDate"`
	ClientName   string          `json:"clientName" gorm:"size:128;not null"`
	Status       Status          `json:"status" gorm:"size:16;not null;default:open;index"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

func (Tank) TableName() string {
	return "tanks"
}

// DisplayName is the label denormalized onto every process card, e.g. "Acid Storage Tank - 10KL".
func (t *Tank) DisplayName() string {
	return fmt.Sprintf("%s - %sKL", t.TankType, t.Capacity.String())
}
