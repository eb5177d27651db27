// internal/services/commission_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sokoni/sokoni-backend/internal/config"
	"github.com/sokoni/sokoni-backend/internal/models"
)

func testFulfillmentConfig() config.FulfillmentConfig {
	return config.FulfillmentConfig{
		MarkupFactor:      1.21,
		PDASharePercent:   70.0,
		PSMSharePercent:   15.0,
		ReferralBonus:     1.0,
		DepositCodeSecret: "test-secret",
		StaleWindowHours:  48,
	}
}

func TestComputeBreakdownPickupOrder(t *testing.T) {
	breakdown := ComputeBreakdown(100.00, CommissionParticipants{PDA: true, PSM: true}, testFulfillmentConfig())

	assert.Equal(t, 121.00, breakdown.SellingPrice)
	assert.Equal(t, 21.00, breakdown.PlatformProfit)
	assert.Equal(t, 100.00, breakdown.SellerPayout)
	assert.Equal(t, 14.70, breakdown.PDACommission)
	assert.Equal(t, 3.15, breakdown.PSMCommission)
	assert.Equal(t, 0.00, breakdown.ReferralBonus)
}

func TestComputeBreakdownReferralOffTheTop(t *testing.T) {
	breakdown := ComputeBreakdown(100.00, CommissionParticipants{PDA: true, PSM: true, Referrer: true}, testFulfillmentConfig())

	// flat bonus comes off profit before the percentage split
	assert.Equal(t, 1.00, breakdown.ReferralBonus)
	assert.Equal(t, 14.00, breakdown.PDACommission) // 70% of 20
	assert.Equal(t, 3.00, breakdown.PSMCommission)  // 15% of 20
}

func TestComputeBreakdownHomeDeliveryNoPSM(t *testing.T) {
	breakdown := ComputeBreakdown(100.00, CommissionParticipants{PDA: true}, testFulfillmentConfig())

	// non-participating share stays platform margin, never redistributed
	assert.Equal(t, 14.70, breakdown.PDACommission)
	assert.Equal(t, 0.00, breakdown.PSMCommission)
}

func TestComputeBreakdownDeterministic(t *testing.T) {
	participants := CommissionParticipants{PDA: true, PSM: true, Referrer: true}
	first := ComputeBreakdown(37.53, participants, testFulfillmentConfig())

	for i := 0; i < 100; i++ {
		assert.Equal(t, first, ComputeBreakdown(37.53, participants, testFulfillmentConfig()))
	}
}

func TestComputeBreakdownPayoutsNeverExceedProfit(t *testing.T) {
	prices := []float64{0.01, 1.00, 9.99, 37.53, 100.00, 2500.00}

	for _, price := range prices {
		breakdown := ComputeBreakdown(price, CommissionParticipants{PDA: true, PSM: true, Referrer: true}, testFulfillmentConfig())

		distributed := breakdown.PDACommission + breakdown.PSMCommission + breakdown.ReferralBonus
		assert.LessOrEqual(t, distributed, breakdown.PlatformProfit+0.01,
			"distributed commissions exceed platform profit at price %.2f", price)
		assert.GreaterOrEqual(t, breakdown.PDACommission, 0.0)
		assert.GreaterOrEqual(t, breakdown.PSMCommission, 0.0)
	}
}

func TestComputeBreakdownReferralBonusCappedByProfit(t *testing.T) {
	// profit on a one-cent item is below the flat bonus
	breakdown := ComputeBreakdown(0.01, CommissionParticipants{PDA: true, Referrer: true}, testFulfillmentConfig())

	assert.LessOrEqual(t, breakdown.ReferralBonus, breakdown.PlatformProfit)
}

func TestComputeBreakdownRoundsToCents(t *testing.T) {
	breakdown := ComputeBreakdown(33.33, CommissionParticipants{PDA: true, PSM: true}, testFulfillmentConfig())

	assert.InDelta(t, breakdown.SellingPrice*100, float64(int64(breakdown.SellingPrice*100+0.5)), 0.001)
	assert.InDelta(t, breakdown.PDACommission*100, float64(int64(breakdown.PDACommission*100+0.5)), 0.001)
}

func TestAmountFor(t *testing.T) {
	breakdown := ComputeBreakdown(100.00, CommissionParticipants{PDA: true, PSM: true, Referrer: true}, testFulfillmentConfig())

	assert.Equal(t, breakdown.SellerPayout, breakdown.AmountFor(models.BeneficiarySeller))
	assert.Equal(t, breakdown.PDACommission, breakdown.AmountFor(models.BeneficiaryPDA))
	assert.Equal(t, breakdown.PSMCommission, breakdown.AmountFor(models.BeneficiaryPSM))
	assert.Equal(t, breakdown.ReferralBonus, breakdown.AmountFor(models.BeneficiaryReferrer))
}

func TestBasisForCarriesShare(t *testing.T) {
	cfg := testFulfillmentConfig()
	breakdown := ComputeBreakdown(100.00, CommissionParticipants{PDA: true, PSM: true}, cfg)

	assert.Equal(t, cfg.PDASharePercent, breakdown.BasisFor(models.BeneficiaryPDA, cfg).SharePercent)
	assert.Equal(t, cfg.PSMSharePercent, breakdown.BasisFor(models.BeneficiaryPSM, cfg).SharePercent)
	assert.Equal(t, 0.0, breakdown.BasisFor(models.BeneficiarySeller, cfg).SharePercent)
}
