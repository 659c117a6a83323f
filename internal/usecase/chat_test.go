package usecase

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"gold-agent/internal/conversation"
	"gold-agent/internal/domain"
)

type fakeClassifier struct {
	intent domain.IntentJudgment
	stage  domain.StageJudgment

	intentQuery string
	intentBlock string
	stageQuery  string
	stageBlock  string
	stageCalls  int
}

func (f *fakeClassifier) ClassifyIntent(_ context.Context, query, contextBlock string) domain.IntentJudgment {
	f.intentQuery = query
	f.intentBlock = contextBlock
	return f.intent
}

func (f *fakeClassifier) ClassifyStage(_ context.Context, query, contextBlock string) domain.StageJudgment {
	f.stageQuery = query
	f.stageBlock = contextBlock
	f.stageCalls++
	return f.stage
}

type fakeExecutor struct {
	res      *StepResult
	err      error
	calls    int
	judgment domain.StageJudgment
}

func (f *fakeExecutor) ExecuteStage(_ context.Context, _ string, judgment domain.StageJudgment) (*StepResult, error) {
	f.calls++
	f.judgment = judgment
	return f.res, f.err
}

func newTestChat(t *testing.T, classifier *fakeClassifier, price PriceSource, steps *fakeExecutor) (*ChatService, *conversation.Store) {
	t.Helper()
	conv := conversation.NewStore()
	svc, err := NewChatService(conv, classifier, price, steps)
	require.NoError(t, err)
	return svc, conv
}

func TestNewChatService_ValidatesDependencies(t *testing.T) {
	conv := conversation.NewStore()
	classifier := &fakeClassifier{}
	price := livePrice(5000)
	steps := &fakeExecutor{}

	for _, tc := range []struct {
		conv       ConversationStore
		classifier StageClassifier
		price      PriceSource
		steps      StageExecutor
	}{
		{nil, classifier, price, steps},
		{conv, nil, price, steps},
		{conv, classifier, nil, steps},
		{conv, classifier, price, nil},
	} {
		_, err := NewChatService(tc.conv, tc.classifier, tc.price, tc.steps)
		require.Error(t, err)
	}
}

func TestProcess_ValidatesInput(t *testing.T) {
	svc, _ := newTestChat(t, &fakeClassifier{}, livePrice(5000), &fakeExecutor{})

	_, err := svc.Process(context.Background(), ChatInput{UserID: "  ", Query: "hi"})
	expectError(t, err, ErrorInvalidInput, "empty_user_id")

	_, err = svc.Process(context.Background(), ChatInput{UserID: "u1", Query: "  "})
	expectError(t, err, ErrorInvalidInput, "empty_query")
}

func TestProcess_GeneralIntent_AppendsBothTurns(t *testing.T) {
	classifier := &fakeClassifier{intent: domain.IntentJudgment{
		Intent: domain.IntentGeneralFinance,
		Answer: "That feature is under development.",
		Meta:   domain.JudgmentMeta{Confidence: 0.9},
	}}
	steps := &fakeExecutor{}
	svc, conv := newTestChat(t, classifier, livePrice(5000), steps)

	out, err := svc.Process(context.Background(), ChatInput{UserID: "u1", Query: "what are mutual funds"})
	require.NoError(t, err)
	require.Equal(t, "That feature is under development.", out.Answer)
	require.Equal(t, domain.IntentGeneralFinance, out.Intent)
	require.Equal(t, 0.9, out.Confidence)
	require.Empty(t, out.Stage)
	require.Zero(t, steps.calls, "stage path must not run for non-investing intents")

	turns := conv.Window("u1", 10)
	require.Len(t, turns, 2)
	require.Equal(t, domain.RoleUser, turns[0].Role)
	require.Equal(t, "what are mutual funds", turns[0].Text)
	require.Equal(t, domain.RoleAssistant, turns[1].Role)
	require.Equal(t, "That feature is under development.", turns[1].Text)
}

func TestProcess_ReadyToInvest_RunsStagePath(t *testing.T) {
	classifier := &fakeClassifier{
		intent: domain.IntentJudgment{Intent: domain.IntentReadyToInvest},
		stage: domain.StageJudgment{
			Stage:   domain.StageBuyStep2,
			Answer:  "Got it, 2 grams. Proceed to payment.",
			BuyLink: "https://app.example/buy/payment",
			Meta:    domain.JudgmentMeta{Confidence: 0.8, Grams: 2},
		},
	}
	steps := &fakeExecutor{res: &StepResult{
		OrderID:      "order-1",
		NextEndpoint: "/api/gold/payment",
	}}
	svc, conv := newTestChat(t, classifier, livePrice(5000), steps)

	out, err := svc.Process(context.Background(), ChatInput{UserID: "u1", Query: "I want 2 grams"})
	require.NoError(t, err)
	require.Equal(t, 1, steps.calls)
	require.Equal(t, domain.StageBuyStep2, steps.judgment.Stage)
	require.Equal(t, 2.0, steps.judgment.Meta.Grams)
	require.Equal(t, "Got it, 2 grams. Proceed to payment.", out.Answer)
	require.Equal(t, domain.StageBuyStep2, out.Stage)
	require.Equal(t, "https://app.example/buy/payment", out.BuyLink)
	require.Equal(t, "order-1", out.OrderID)
	require.Equal(t, "/api/gold/payment", out.NextEndpoint)

	turns := conv.Window("u1", 10)
	require.Len(t, turns, 2)
	require.Equal(t, out.Answer, turns[1].Text)
}

func TestProcess_StageExecutionError_NoAssistantTurn(t *testing.T) {
	classifier := &fakeClassifier{
		intent: domain.IntentJudgment{Intent: domain.IntentReadyToInvest},
		stage:  domain.StageJudgment{Stage: domain.StageBuyStep3},
	}
	steps := &fakeExecutor{err: newError(ErrorPaymentMismatch, "payment_amount_mismatch", nil)}
	svc, conv := newTestChat(t, classifier, livePrice(5000), steps)

	_, err := svc.Process(context.Background(), ChatInput{UserID: "u1", Query: "paying 500"})
	expectError(t, err, ErrorPaymentMismatch, "payment_amount_mismatch")

	turns := conv.Window("u1", 10)
	require.Len(t, turns, 1, "rejected requests must not append an assistant turn")
	require.Equal(t, domain.RoleUser, turns[0].Role)
}

func TestProcess_PriceAnnotation_OnGoldQueries(t *testing.T) {
	classifier := &fakeClassifier{intent: domain.IntentJudgment{Intent: domain.IntentGoldRelated, Answer: "ok"}}
	price := livePrice(6254.24)
	svc, _ := newTestChat(t, classifier, price, &fakeExecutor{})

	_, err := svc.Process(context.Background(), ChatInput{UserID: "u1", Query: "is GOLD a good buy"})
	require.NoError(t, err)
	require.Equal(t, 1, price.calls)
	require.Contains(t, classifier.intentBlock, "6254.24 INR per gram")
}

func TestProcess_NoPriceLookup_OnOtherQueries(t *testing.T) {
	classifier := &fakeClassifier{intent: domain.IntentJudgment{Intent: domain.IntentGeneralFinance, Answer: "ok"}}
	price := livePrice(6254.24)
	svc, _ := newTestChat(t, classifier, price, &fakeExecutor{})

	_, err := svc.Process(context.Background(), ChatInput{UserID: "u1", Query: "tell me about bonds"})
	require.NoError(t, err)
	require.Zero(t, price.calls)
	require.NotContains(t, classifier.intentBlock, "[System]")
}

func TestProcess_PriceDown_AnnotatesUnavailability(t *testing.T) {
	classifier := &fakeClassifier{intent: domain.IntentJudgment{Intent: domain.IntentGoldRelated, Answer: "ok"}}
	svc, _ := newTestChat(t, classifier, downPrice(), &fakeExecutor{})

	_, err := svc.Process(context.Background(), ChatInput{UserID: "u1", Query: "gold price today?"})
	require.NoError(t, err)
	require.Contains(t, classifier.intentBlock, "Gold price is currently unavailable")
}

func TestProcess_WindowSizes(t *testing.T) {
	classifier := &fakeClassifier{
		intent: domain.IntentJudgment{Intent: domain.IntentReadyToInvest},
		stage:  domain.StageJudgment{Stage: domain.StageExploration, Answer: "ok"},
	}
	svc, conv := newTestChat(t, classifier, livePrice(5000), &fakeExecutor{})

	for i := 0; i < 20; i++ {
		conv.Append("u1", domain.RoleUser, fmt.Sprintf("turn-%d", i))
	}

	_, err := svc.Process(context.Background(), ChatInput{UserID: "u1", Query: "lets buy"})
	require.NoError(t, err)

	// the inbound query is appended before windowing, so it is always the
	// last line of both blocks
	intentLines := strings.Split(strings.TrimRight(classifier.intentBlock, "\n"), "\n")
	require.Len(t, intentLines, 10)
	require.Equal(t, "User: turn-11", intentLines[0])
	require.Equal(t, "User: lets buy", intentLines[9])

	stageLines := strings.Split(strings.TrimRight(classifier.stageBlock, "\n"), "\n")
	require.Len(t, stageLines, 5)
	require.Equal(t, "User: turn-16", stageLines[0])
	require.Equal(t, "User: lets buy", stageLines[4])
}

func TestProcess_StageBlockCarriesPriceAnnotation(t *testing.T) {
	classifier := &fakeClassifier{
		intent: domain.IntentJudgment{Intent: domain.IntentReadyToInvest},
		stage:  domain.StageJudgment{Stage: domain.StageExploration, Answer: "ok"},
	}
	svc, _ := newTestChat(t, classifier, livePrice(5000), &fakeExecutor{})

	_, err := svc.Process(context.Background(), ChatInput{UserID: "u1", Query: "buy gold now"})
	require.NoError(t, err)
	require.Contains(t, classifier.intentBlock, "5000.00 INR per gram")
	require.Contains(t, classifier.stageBlock, "5000.00 INR per gram")
}

func TestClear_ResetsHistory(t *testing.T) {
	classifier := &fakeClassifier{intent: domain.IntentJudgment{Intent: domain.IntentGeneralFinance, Answer: "ok"}}
	svc, conv := newTestChat(t, classifier, livePrice(5000), &fakeExecutor{})

	conv.Append("u1", domain.RoleUser, "earlier chatter")
	require.NoError(t, svc.Clear(context.Background(), "u1"))

	_, err := svc.Process(context.Background(), ChatInput{UserID: "u1", Query: "fresh start"})
	require.NoError(t, err)
	require.Equal(t, "User: fresh start\n", classifier.intentBlock)
}

func TestClear_ValidatesUserID(t *testing.T) {
	svc, _ := newTestChat(t, &fakeClassifier{}, livePrice(5000), &fakeExecutor{})
	err := svc.Clear(context.Background(), " ")
	expectError(t, err, ErrorInvalidInput, "empty_user_id")
}
