package model

import "time"

type StaffClaim struct {
	AccountId    uint   `json:"accountId"`
	Username     string `json:"username"`
	RestaurantId string `json:"restaurantId"`
	Role         string `json:"role"`
}

type ResponseCustom struct {
	Rows       any   `json:"rows"`
	Limit      *int  `json:"limit"`
	Page       *int  `json:"page"`
	TotalCount int64 `json:"totalCount"`
}

type Pagination struct {
	Limit *int `json:"limit" query:"limit" validate:"omitempty,gt=0,lte=200"`
	Page  *int `json:"page" query:"page" validate:"omitempty,gte=1"`
}

type Timestamps struct {
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
