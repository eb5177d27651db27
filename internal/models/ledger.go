// internal/models/ledger.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// CommissionLedgerEntry is one beneficiary's share of one order. Entries are
// created with the order, carry the basis they were computed from, and may
// move pending->released at most once.
type CommissionLedgerEntry struct {
	BaseModel
	OrderID           uuid.UUID       `json:"order_id" gorm:"type:uuid;not null;index:idx_ledger_order_role,unique"`
	BeneficiaryRole   BeneficiaryRole `json:"beneficiary_role" gorm:"type:varchar(10);not null;index:idx_ledger_order_role,unique"`
	BeneficiaryUserID *uuid.UUID      `json:"beneficiary_user_id" gorm:"type:uuid;index"`
	Amount            float64         `json:"amount" gorm:"type:decimal(10,2);not null"`
	Basis             CommissionBasis `json:"basis" gorm:"type:jsonb"`
	Status            ReleaseStatus   `json:"status" gorm:"type:varchar(10);not null;default:'pending';index"`
	ReleasedAt        *time.Time      `json:"released_at"`
	ReleaseReason     string          `json:"release_reason,omitempty" gorm:"size:100"`

	// Relationships
	Order Order `json:"order,omitempty" gorm:"foreignKey:OrderID"`
}
