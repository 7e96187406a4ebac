package model

import "time"

type SessionStatus string

const (
	SessionActive  SessionStatus = "ACTIVE"
	SessionExpired SessionStatus = "EXPIRED"
	SessionEnded   SessionStatus = "ENDED"
)

// CustomerSession is one ordering window opened by scanning a table code.
type CustomerSession struct {
	Token          string        `gorm:"primaryKey;size:64" json:"token"`
	TableId        string        `gorm:"size:36;index;not null" json:"tableId"`
	RestaurantId   string        `gorm:"size:36;index;not null" json:"restaurantId"`
	CustomerName   *string       `gorm:"size:100" json:"customerName,omitempty"`
	CustomerEmail  *string       `gorm:"size:255" json:"customerEmail,omitempty"`
	Status         SessionStatus `gorm:"size:10;index;not null" json:"status"`
	CreatedAt      time.Time     `json:"createdAt"`
	ExpiresAt      time.Time     `gorm:"index;not null" json:"expiresAt"`
	LastActivityAt time.Time     `json:"lastActivityAt"`
	SweptAt        *time.Time    `json:"-"` // set once by the cleanup sweep
}

type CustomerInfo struct {
	Name  *string `json:"customerName" validate:"omitempty,max=100"`
	Email *string `json:"customerEmail" validate:"omitempty,email"`
}

type CreateSessionInput struct {
	TableCode string `json:"tableCode" validate:"required,alphanum,min=3,max=16"`
	CustomerInfo
}

type ExtendSessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}
