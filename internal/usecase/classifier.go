package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"gold-agent/internal/domain"
)

// TextGenerator is the external language-model capability: prompt in, raw
// text out.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Classifier adapts the text generator into structured judgments. It never
// fails: an unreachable model or unparsable output degrades to a judgment the
// rest of the pipeline can still act on.
type Classifier struct {
	gen TextGenerator
}

func NewClassifier(gen TextGenerator) (*Classifier, error) {
	if gen == nil {
		return nil, errors.New("usecase: text generator must not be nil")
	}
	return &Classifier{gen: gen}, nil
}

// intentPayload and stagePayload decode leniently: the model returns extra
// fields (query, source, category) that are not part of the contract.
type intentPayload struct {
	Intent string      `json:"intent"`
	Answer string      `json:"answer"`
	Meta   metaPayload `json:"meta"`
}

type stagePayload struct {
	Stage   string      `json:"stage"`
	Answer  string      `json:"answer"`
	BuyLink string      `json:"buy_link"`
	Meta    metaPayload `json:"meta"`
}

type metaPayload struct {
	Confidence    float64 `json:"confidence"`
	Grams         float64 `json:"grams"`
	Amount        float64 `json:"amount"`
	PaymentMethod string  `json:"payment_method"`
}

// ClassifyIntent judges a general query. The context block carries the last
// ten turns plus any price annotation.
func (c *Classifier) ClassifyIntent(ctx context.Context, query, contextBlock string) domain.IntentJudgment {
	raw, err := c.gen.Generate(ctx, buildIntentPrompt(query, contextBlock))
	if err != nil {
		slog.Warn("intent classification degraded", "err", err)
		return domain.IntentJudgment{
			Intent: domain.IntentIrrelevant,
			Answer: "Error contacting classifier: " + err.Error(),
		}
	}

	var payload intentPayload
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &payload); err != nil {
		slog.Warn("intent response unparsable", "err", err)
		return domain.IntentJudgment{Intent: domain.IntentIrrelevant, Answer: raw}
	}

	return domain.IntentJudgment{
		Intent: normalizeIntent(payload.Intent),
		Answer: payload.Answer,
		Meta:   toMeta(payload.Meta),
	}
}

// ClassifyStage judges where the user stands in the purchase pipeline. The
// context block carries the last five turns plus any price annotation.
func (c *Classifier) ClassifyStage(ctx context.Context, query, contextBlock string) domain.StageJudgment {
	raw, err := c.gen.Generate(ctx, buildStagePrompt(query, contextBlock))
	if err != nil {
		slog.Warn("stage classification degraded", "err", err)
		return domain.StageJudgment{
			Stage:  domain.StageExploration,
			Answer: "Error contacting classifier: " + err.Error(),
		}
	}

	var payload stagePayload
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &payload); err != nil {
		slog.Warn("stage response unparsable", "err", err)
		return domain.StageJudgment{Stage: domain.StageExploration, Answer: raw}
	}

	return domain.StageJudgment{
		Stage:   normalizeStage(payload.Stage),
		Answer:  payload.Answer,
		BuyLink: payload.BuyLink,
		Meta:    toMeta(payload.Meta),
	}
}

func toMeta(m metaPayload) domain.JudgmentMeta {
	return domain.JudgmentMeta{
		Confidence:    m.Confidence,
		Grams:         m.Grams,
		Amount:        m.Amount,
		PaymentMethod: m.PaymentMethod,
	}
}

// normalizeIntent maps anything outside the contract to irrelevant, keeping
// the answer usable.
func normalizeIntent(s string) domain.Intent {
	switch intent := domain.Intent(strings.TrimSpace(s)); intent {
	case domain.IntentGoldRelated, domain.IntentReadyToInvest, domain.IntentGeneralFinance, domain.IntentOtherInvestments, domain.IntentIrrelevant:
		return intent
	default:
		return domain.IntentIrrelevant
	}
}

// normalizeStage maps anything outside the contract to exploration, which has
// no side effects.
func normalizeStage(s string) domain.Stage {
	switch stage := domain.Stage(strings.TrimSpace(s)); stage {
	case domain.StageExploration, domain.StageReadyToBuy,
		domain.StageBuyStep1, domain.StageBuyStep2, domain.StageBuyStep3,
		domain.StageBuyStep4, domain.StageBuyStep5:
		return stage
	default:
		return domain.StageExploration
	}
}

// stripCodeFence removes a surrounding Markdown fence if the model ignored
// the raw-JSON instruction.
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
