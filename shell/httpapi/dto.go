package httpapi

type BorrowReq struct {
	UserID         string `json:"userId" validate:"required"`
	FromLocationID string `json:"fromLocationId" validate:"required"`
}

type ReturnReq struct {
	UserID       string `json:"userId" validate:"required"`
	ToLocationID string `json:"toLocationId" validate:"required"`
}

type DonateReq struct {
	UserID       string `json:"userId" validate:"required"`
	ToLocationID string `json:"toLocationId" validate:"required"`
}

type AddCopiesReq struct {
	LocationID string `json:"locationId" validate:"required"`
	Count      int    `json:"count" validate:"required,min=1,max=100"`
}

type LocationStatusReq struct {
	IsActive *bool `json:"isActive" validate:"required"`
}

type UserRoleReq struct {
	Role string `json:"role" validate:"required,oneof=reader admin"`
}
