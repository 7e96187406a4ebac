package model

type TableStatus string

const (
	TableAvailable   TableStatus = "AVAILABLE"
	TableOccupied    TableStatus = "OCCUPIED"
	TableReserved    TableStatus = "RESERVED"
	TableMaintenance TableStatus = "MAINTENANCE"
)

func (s TableStatus) Valid() bool {
	switch s {
	case TableAvailable, TableOccupied, TableReserved, TableMaintenance:
		return true
	}
	return false
}

type Table struct {
	ID           string      `gorm:"primaryKey;size:36" json:"id"`
	RestaurantId string      `gorm:"size:36;index;not null" json:"restaurantId"`
	Number       int         `gorm:"not null" json:"number"`
	Code         string      `gorm:"size:16;uniqueIndex;not null" json:"code"` // printed in the QR
	Capacity     int         `json:"capacity"`
	Status       TableStatus `gorm:"size:20;not null;default:AVAILABLE" json:"status"`
	Timestamps
}

type UpdateTableStatusInput struct {
	Status TableStatus `json:"status" validate:"required,oneof=AVAILABLE OCCUPIED RESERVED MAINTENANCE"`
}
