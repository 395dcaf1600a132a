package domain

type RiskFlag string

const (
	RiskFlagVelocityAbuse     RiskFlag = "velocity_abuse"
	RiskFlagGeoMismatch       RiskFlag = "geo_mismatch"
	RiskFlagChargebackHistory RiskFlag = "chargeback_history"
	RiskFlagBonusAbuse        RiskFlag = "bonus_abuse"
	RiskFlagSanctionsHit      RiskFlag = "sanctions_hit"
)

// RiskProfile is the precomputed risk assessment supplied by the external
// risk-profiling collaborator. The engine consumes it, never computes it.
type RiskProfile struct {
	Score int        `json:"score"`
	Flags []RiskFlag `json:"flags"`
}

// RiskAssessment is the gate's verdict, annotated onto the withdrawal
// before it reaches pending.
type RiskAssessment struct {
	AutoApprove          bool
	RequiresManualReview bool
	RequiresKYC          bool
}
