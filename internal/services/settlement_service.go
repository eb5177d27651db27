// internal/services/settlement_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/sokoni/sokoni-backend/internal/models"
)

// SettlementService marks commission ledger entries released. It is invoked
// only by the order state machine, inside the state transition's transaction,
// on the two qualifying transitions. Each beneficiary of an order is
// released at most once; a second release attempt is an invariant violation.
type SettlementService struct{}

func NewSettlementService() *SettlementService {
	return &SettlementService{}
}

// ReleaseSellerPayout releases the seller's entry when custody leaves the
// agent chain and enters site custody (transition to delivered_to_psm).
func (s *SettlementService) ReleaseSellerPayout(tx *gorm.DB, order *models.Order) error {
	if err := s.release(tx, order, models.BeneficiarySeller, &order.SellerID, "custody_transferred_to_psm"); err != nil {
		return err
	}

	order.SellerPayoutStatus = models.ReleaseStatusReleased
	return nil
}

// ReleaseCompletionCommissions releases every remaining beneficiary on the
// transition to completed: the PDA commission, the PSM commission on the
// pickup-site path, the referral bonus if a referrer participated, and (home
// delivery only, where no PSM deposit ever happens) the seller payout.
func (s *SettlementService) ReleaseCompletionCommissions(tx *gorm.DB, order *models.Order) error {
	reason := "buyer_pickup_confirmed"

	if order.SellerPayoutStatus == models.ReleaseStatusPending {
		if err := s.release(tx, order, models.BeneficiarySeller, &order.SellerID, reason); err != nil {
			return err
		}
		order.SellerPayoutStatus = models.ReleaseStatusReleased
	}

	pdaUserID, err := s.agentUserID(tx, order.PDAAgentID)
	if err != nil {
		return err
	}
	if err := s.release(tx, order, models.BeneficiaryPDA, pdaUserID, reason); err != nil {
		return err
	}
	order.PDACommissionStatus = models.ReleaseStatusReleased

	if order.PSMAgentID != nil {
		psmUserID, err := s.agentUserID(tx, order.PSMAgentID)
		if err != nil {
			return err
		}
		if err := s.release(tx, order, models.BeneficiaryPSM, psmUserID, reason); err != nil {
			return err
		}
		order.PSMCommissionStatus = models.ReleaseStatusReleased
	}

	if order.ReferrerID != nil {
		if err := s.release(tx, order, models.BeneficiaryReferrer, order.ReferrerID, reason); err != nil {
			return err
		}
	}

	return nil
}

func (s *SettlementService) release(tx *gorm.DB, order *models.Order, role models.BeneficiaryRole, beneficiaryUserID *uuid.UUID, reason string) error {
	var entry models.CommissionLedgerEntry
	if err := tx.Where("order_id = ? AND beneficiary_role = ?", order.ID, role).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("no %s ledger entry for order %s: %w", role, order.OrderNumber, err)
		}
		return fmt.Errorf("failed to load %s ledger entry: %w", role, err)
	}

	if entry.Status == models.ReleaseStatusReleased {
		s.alertDoubleRelease(order, role, entry.ID)
		return ErrAlreadyReleased
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":         models.ReleaseStatusReleased,
		"released_at":    &now,
		"release_reason": reason,
	}
	if beneficiaryUserID != nil {
		updates["beneficiary_user_id"] = beneficiaryUserID
	}

	// The status guard makes the read-modify-write atomic: the row lock on
	// the order serializes normal callers, so an affected count other than
	// one means a concurrent release slipped through and must abort.
	result := tx.Model(&models.CommissionLedgerEntry{}).
		Where("id = ? AND status = ?", entry.ID, models.ReleaseStatusPending).
		Updates(updates)

	if result.Error != nil {
		return fmt.Errorf("failed to release %s entry: %w", role, result.Error)
	}
	if result.RowsAffected != 1 {
		s.alertDoubleRelease(order, role, entry.ID)
		return ErrAlreadyReleased
	}

	return nil
}

func (s *SettlementService) agentUserID(tx *gorm.DB, agentID *uuid.UUID) (*uuid.UUID, error) {
	if agentID == nil {
		return nil, nil
	}

	var agent models.Agent
	if err := tx.First(&agent, "id = ?", *agentID).Error; err != nil {
		return nil, fmt.Errorf("failed to load agent %s: %w", agentID, err)
	}

	return &agent.UserID, nil
}

func (s *SettlementService) alertDoubleRelease(order *models.Order, role models.BeneficiaryRole, entryID uuid.UUID) {
	logrus.WithFields(logrus.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"beneficiary":  role,
		"entry_id":     entryID,
	}).Error("Double release attempt on commission ledger entry")
}
