// internal/services/commission.go
package services

import (
	"math"

	"github.com/sokoni/sokoni-backend/internal/config"
	"github.com/sokoni/sokoni-backend/internal/models"
)

// CommissionParticipants records which optional roles took part in an
// order. A role that did not participate earns nothing and its share stays
// platform margin; it is never redistributed.
type CommissionParticipants struct {
	PDA      bool
	PSM      bool
	Referrer bool
}

// CommissionBreakdown is the deterministic split of an order's value. It is
// computed once at order creation and stored on the ledger entries; releases
// never recompute it.
type CommissionBreakdown struct {
	PurchasingPrice float64 `json:"purchasing_price"`
	SellingPrice    float64 `json:"selling_price"`
	PlatformProfit  float64 `json:"platform_profit"`
	SellerPayout    float64 `json:"seller_payout"`
	PDACommission   float64 `json:"pda_commission"`
	PSMCommission   float64 `json:"psm_commission"`
	ReferralBonus   float64 `json:"referral_bonus"`
}

// ComputeBreakdown derives the full settlement split for an order. Pure and
// side-effect free so reconciliation can re-run it against stored entries.
//
// The referral bonus is a flat amount taken off platform profit before the
// percentage split, not a percentage of it.
func ComputeBreakdown(purchasingPrice float64, participants CommissionParticipants, cfg config.FulfillmentConfig) CommissionBreakdown {
	sellingPrice := roundCents(purchasingPrice * cfg.MarkupFactor)
	platformProfit := roundCents(sellingPrice - purchasingPrice)

	breakdown := CommissionBreakdown{
		PurchasingPrice: purchasingPrice,
		SellingPrice:    sellingPrice,
		PlatformProfit:  platformProfit,
		SellerPayout:    purchasingPrice,
	}

	distributable := platformProfit
	if participants.Referrer {
		bonus := math.Min(cfg.ReferralBonus, distributable)
		breakdown.ReferralBonus = roundCents(bonus)
		distributable = roundCents(distributable - breakdown.ReferralBonus)
	}

	if participants.PDA {
		breakdown.PDACommission = roundCents(distributable * cfg.PDASharePercent / 100)
	}
	if participants.PSM {
		breakdown.PSMCommission = roundCents(distributable * cfg.PSMSharePercent / 100)
	}

	return breakdown
}

// AmountFor returns the breakdown amount owed to a beneficiary role.
func (b CommissionBreakdown) AmountFor(role models.BeneficiaryRole) float64 {
	switch role {
	case models.BeneficiarySeller:
		return b.SellerPayout
	case models.BeneficiaryPDA:
		return b.PDACommission
	case models.BeneficiaryPSM:
		return b.PSMCommission
	case models.BeneficiaryReferrer:
		return b.ReferralBonus
	}
	return 0
}

// BasisFor captures the inputs behind one role's amount, for storage on the
// ledger entry.
func (b CommissionBreakdown) BasisFor(role models.BeneficiaryRole, cfg config.FulfillmentConfig) models.CommissionBasis {
	basis := models.CommissionBasis{
		PurchasingPrice: b.PurchasingPrice,
		SellingPrice:    b.SellingPrice,
		MarkupFactor:    cfg.MarkupFactor,
		PlatformProfit:  b.PlatformProfit,
		ReferralBonus:   b.ReferralBonus,
	}

	switch role {
	case models.BeneficiaryPDA:
		basis.SharePercent = cfg.PDASharePercent
	case models.BeneficiaryPSM:
		basis.SharePercent = cfg.PSMSharePercent
	case models.BeneficiarySeller, models.BeneficiaryReferrer:
		// flat amounts, no percentage share
	}

	return basis
}

func roundCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}
