// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// BeforeCreate assigns the ID client-side so inserts work on databases
// without gen_random_uuid (the test suite runs on sqlite).
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Enums
type UserType string

const (
	UserTypeBuyer  UserType = "buyer"
	UserTypeSeller UserType = "seller"
	UserTypeAgent  UserType = "agent"
	UserTypeAdmin  UserType = "admin"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusBanned    UserStatus = "banned"
)

type MarketplaceType string

const (
	MarketplacePhysical     MarketplaceType = "physical"
	MarketplaceLocalGrocery MarketplaceType = "local_grocery"
)

type DeliveryMethod string

const (
	DeliveryMethodPickup DeliveryMethod = "pickup"
	DeliveryMethodHome   DeliveryMethod = "home"
)

// AgentRole is the closed set of fulfillment agent kinds. Any switch over it
// must handle every constant; there is no "other" arm.
type AgentRole string

const (
	AgentRolePDA          AgentRole = "pda"
	AgentRolePSM          AgentRole = "psm"
	AgentRoleFastDelivery AgentRole = "fast_delivery"
)

func (r AgentRole) Valid() bool {
	switch r {
	case AgentRolePDA, AgentRolePSM, AgentRoleFastDelivery:
		return true
	}
	return false
}

type OrderStatus string

const (
	OrderStatusConfirmed        OrderStatus = "confirmed"
	OrderStatusAssignedToPDA    OrderStatus = "assigned_to_pda"
	OrderStatusPDAEnRouteSeller OrderStatus = "pda_en_route_to_seller"
	OrderStatusPDAAtSeller      OrderStatus = "pda_at_seller"
	OrderStatusPickedFromSeller OrderStatus = "picked_from_seller"
	OrderStatusEnRouteToPSM     OrderStatus = "en_route_to_psm"
	OrderStatusDeliveredToPSM   OrderStatus = "delivered_to_psm"
	OrderStatusReadyForPickup   OrderStatus = "ready_for_pickup"
	OrderStatusEnRouteToBuyer   OrderStatus = "en_route_to_buyer"
	OrderStatusCollectedByBuyer OrderStatus = "collected_by_buyer"
	OrderStatusCompleted        OrderStatus = "completed"
	OrderStatusCancelled        OrderStatus = "cancelled"
)

func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

type ConfirmationType string

const (
	ConfirmationTypePDADeposit  ConfirmationType = "pda_deposit"
	ConfirmationTypeBuyerPickup ConfirmationType = "buyer_pickup"
)

type ConfirmationResult string

const (
	ConfirmationResultConfirmed ConfirmationResult = "confirmed"
	ConfirmationResultRejected  ConfirmationResult = "rejected"
)

type VerificationMethod string

const (
	VerificationMethodDepositCode VerificationMethod = "deposit_code"
	VerificationMethodDepositOTP  VerificationMethod = "deposit_otp"
	VerificationMethodPickupCode  VerificationMethod = "pickup_code"
)

type BeneficiaryRole string

const (
	BeneficiarySeller   BeneficiaryRole = "seller"
	BeneficiaryPDA      BeneficiaryRole = "pda"
	BeneficiaryPSM      BeneficiaryRole = "psm"
	BeneficiaryReferrer BeneficiaryRole = "referrer"
)

type ReleaseStatus string

const (
	ReleaseStatusPending  ReleaseStatus = "pending"
	ReleaseStatusReleased ReleaseStatus = "released"
)

type ProductStatus string

const (
	ProductStatusActive    ProductStatus = "active"
	ProductStatusSoldOut   ProductStatus = "sold_out"
	ProductStatusSuspended ProductStatus = "suspended"
)

// CommissionBasis is the breakdown a ledger entry was computed from. It is
// written once at order creation and never recomputed on release.
type CommissionBasis struct {
	PurchasingPrice float64 `json:"purchasing_price"`
	SellingPrice    float64 `json:"selling_price"`
	MarkupFactor    float64 `json:"markup_factor"`
	PlatformProfit  float64 `json:"platform_profit"`
	SharePercent    float64 `json:"share_percent"`
	ReferralBonus   float64 `json:"referral_bonus"`
}

func (b CommissionBasis) Value() (driver.Value, error) {
	return json.Marshal(b)
}

func (b *CommissionBasis) Scan(value interface{}) error {
	if value == nil {
		*b = CommissionBasis{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported type for commission basis: %T", value)
	}

	return json.Unmarshal(bytes, b)
}
