// internal/models/order.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Order is the unit of fulfillment. Its status is owned by the order state
// machine in services; nothing else writes it.
type Order struct {
	BaseModel
	OrderNumber     string          `json:"order_number" gorm:"uniqueIndex;size:32;not null"`
	Status          OrderStatus     `json:"status" gorm:"type:varchar(30);not null;default:'confirmed';index"`
	MarketplaceType MarketplaceType `json:"marketplace_type" gorm:"type:varchar(20);not null"`
	DeliveryMethod  DeliveryMethod  `json:"delivery_method" gorm:"type:varchar(10);not null"`

	ProductID  uuid.UUID  `json:"product_id" gorm:"type:uuid;not null;index"`
	SellerID   uuid.UUID  `json:"seller_id" gorm:"type:uuid;not null;index"`
	BuyerID    uuid.UUID  `json:"buyer_id" gorm:"type:uuid;not null;index"`
	PDAAgentID *uuid.UUID `json:"pda_agent_id" gorm:"type:uuid;index"`
	PSMAgentID *uuid.UUID `json:"psm_agent_id" gorm:"type:uuid;index"`
	ReferrerID *uuid.UUID `json:"referrer_id" gorm:"type:uuid"`

	PurchasingPrice float64 `json:"purchasing_price" gorm:"type:decimal(10,2);not null"`
	SellingPrice    float64 `json:"selling_price" gorm:"type:decimal(10,2);not null"`
	TotalAmount     float64 `json:"total_amount" gorm:"type:decimal(10,2);not null"`

	// Denormalized release flags, mirrored from the commission ledger. They
	// transition pending->released exactly once, only inside the state
	// machine's transaction; no handler writes them directly.
	SellerPayoutStatus  ReleaseStatus `json:"seller_payout_status" gorm:"type:varchar(10);not null;default:'pending'"`
	PDACommissionStatus ReleaseStatus `json:"pda_commission_status" gorm:"type:varchar(10);not null;default:'pending'"`
	PSMCommissionStatus ReleaseStatus `json:"psm_commission_status" gorm:"type:varchar(10);not null;default:'pending'"`

	// PDADepositCode is assigned once at PDA assignment and never regenerated.
	// BuyerPickupCode must not exist before the order reaches delivered_to_psm.
	PDADepositCode  string `json:"-" gorm:"size:16"`
	BuyerPickupCode string `json:"-" gorm:"size:16"`

	PaymentReference string     `json:"payment_reference" gorm:"size:255"`
	CancelReason     string     `json:"cancel_reason,omitempty" gorm:"type:text"`
	RefundedAt       *time.Time `json:"refunded_at,omitempty"`
	RefundReason     string     `json:"refund_reason,omitempty" gorm:"size:255"`

	AssignedAt  *time.Time `json:"assigned_at"`
	PickedAt    *time.Time `json:"picked_at"`
	DepositedAt *time.Time `json:"deposited_at"`
	CollectedAt *time.Time `json:"collected_at"`
	CompletedAt *time.Time `json:"completed_at"`
	CancelledAt *time.Time `json:"cancelled_at"`

	// Relationships
	Product  Product `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Seller   User    `json:"seller,omitempty" gorm:"foreignKey:SellerID"`
	Buyer    User    `json:"buyer,omitempty" gorm:"foreignKey:BuyerID"`
	PDAAgent *Agent  `json:"pda_agent,omitempty" gorm:"foreignKey:PDAAgentID"`
	PSMAgent *Agent  `json:"psm_agent,omitempty" gorm:"foreignKey:PSMAgentID"`
}

// StatusHistory is an append-only audit trail of transitions. It exists for
// forensics; business logic never reads it back.
type StatusHistory struct {
	BaseModel
	OrderID   uuid.UUID   `json:"order_id" gorm:"type:uuid;not null;index"`
	OldStatus OrderStatus `json:"old_status" gorm:"type:varchar(30);not null"`
	NewStatus OrderStatus `json:"new_status" gorm:"type:varchar(30);not null"`
	ChangedBy *uuid.UUID  `json:"changed_by" gorm:"type:uuid"`
	Notes     string      `json:"notes,omitempty" gorm:"type:text"`
}
