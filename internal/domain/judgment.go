package domain

// Intent is the classifier's verdict on a general query.
type Intent string

const (
	IntentGoldRelated      Intent = "gold_related"
	IntentReadyToInvest    Intent = "ready_to_invest"
	IntentGeneralFinance   Intent = "general_finance"
	IntentOtherInvestments Intent = "other_investments"
	IntentIrrelevant       Intent = "irrelevant"
)

// Stage is the classifier-reported position of a user within the purchase
// pipeline. There is no persisted current-stage field; the stage is re-derived
// from the classifier on every turn.
type Stage string

const (
	StageExploration Stage = "exploration"
	StageReadyToBuy  Stage = "ready_to_buy"
	StageBuyStep1    Stage = "buy_step_1"
	StageBuyStep2    Stage = "buy_step_2"
	StageBuyStep3    Stage = "buy_step_3"
	StageBuyStep4    Stage = "buy_step_4"
	StageBuyStep5    Stage = "buy_step_5"
)

// JudgmentMeta carries the structured extras a judgment may include. Grams,
// Amount and PaymentMethod are zero when the classifier did not extract them.
type JudgmentMeta struct {
	Confidence    float64
	Grams         float64
	Amount        float64
	PaymentMethod string
}

// IntentJudgment is the classifier's structured output for a general query.
type IntentJudgment struct {
	Intent Intent
	Answer string
	Meta   JudgmentMeta
}

// StageJudgment is the classifier's structured output once the user is in the
// purchase flow.
type StageJudgment struct {
	Stage   Stage
	Answer  string
	BuyLink string
	Meta    JudgmentMeta
}
