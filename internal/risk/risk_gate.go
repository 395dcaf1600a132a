package risk

import (
	"wallet-service/internal/domain"

	"github.com/shopspring/decimal"
)

// Gate decides whether a withdrawal may be auto-approved or must wait
// for manual review. It is a pure policy over its inputs: no side
// effects, no external calls. When risk data is unavailable the gate
// fails closed and forces manual review.
type Gate struct {
	autoApproveCeiling decimal.Decimal
	kycCeiling         decimal.Decimal
	scoreThreshold     int
}

func NewGate(autoApproveCeiling, kycCeiling decimal.Decimal, scoreThreshold int) *Gate {
	return &Gate{
		autoApproveCeiling: autoApproveCeiling,
		kycCeiling:         kycCeiling,
		scoreThreshold:     scoreThreshold,
	}
}

// Assess annotates a withdrawal request with the gate's verdict.
// A nil profile means the risk collaborator did not answer: fail closed.
func (g *Gate) Assess(amount decimal.Decimal, profile *domain.RiskProfile) domain.RiskAssessment {
	if profile == nil {
		return domain.RiskAssessment{
			AutoApprove:          false,
			RequiresManualReview: true,
			RequiresKYC:          false,
		}
	}

	assessment := domain.RiskAssessment{}

	if amount.GreaterThan(g.autoApproveCeiling) {
		assessment.RequiresManualReview = true
	}
	if profile.Score >= g.scoreThreshold {
		assessment.RequiresManualReview = true
	}
	if amount.GreaterThan(g.kycCeiling) {
		assessment.RequiresKYC = true
	}

	for _, flag := range profile.Flags {
		switch flag {
		case domain.RiskFlagVelocityAbuse,
			domain.RiskFlagGeoMismatch,
			domain.RiskFlagChargebackHistory,
			domain.RiskFlagBonusAbuse:
			assessment.RequiresManualReview = true
		case domain.RiskFlagSanctionsHit:
			assessment.RequiresManualReview = true
			assessment.RequiresKYC = true
		default:
			// Unknown flag: treat like any adverse signal.
			assessment.RequiresManualReview = true
		}
	}

	assessment.AutoApprove = !assessment.RequiresManualReview && !assessment.RequiresKYC
	return assessment
}
