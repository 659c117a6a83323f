package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"gold-agent/internal/domain"
)

// ConversationStore is the per-user turn history behind the chat flow.
type ConversationStore interface {
	Append(userID, role, text string)
	Window(userID string, n int) []domain.Turn
	Clear(userID string)
}

// StageClassifier produces structured judgments from the external model.
type StageClassifier interface {
	ClassifyIntent(ctx context.Context, query, contextBlock string) domain.IntentJudgment
	ClassifyStage(ctx context.Context, query, contextBlock string) domain.StageJudgment
}

// StageExecutor runs the purchase side effects for a reported stage.
type StageExecutor interface {
	ExecuteStage(ctx context.Context, userID string, judgment domain.StageJudgment) (*StepResult, error)
}

// ChatService drives one user query through the conversation pipeline:
// history append, context windowing, optional price augmentation, intent
// classification, and stage execution once the user is ready to invest.
type ChatService struct {
	conv       ConversationStore
	classifier StageClassifier
	price      PriceSource
	steps      StageExecutor
}

type ChatInput struct {
	UserID string
	Query  string
}

type ChatOutput struct {
	Answer        string
	Intent        domain.Intent
	Stage         domain.Stage
	Confidence    float64
	BuyLink       string
	OrderID       string
	NextEndpoint  string
	TransactionID string
	WalletID      string
	Receipt       *domain.Receipt
}

func NewChatService(conv ConversationStore, classifier StageClassifier, price PriceSource, steps StageExecutor) (*ChatService, error) {
	if conv == nil {
		return nil, errors.New("usecase: conversation store must not be nil")
	}
	if classifier == nil {
		return nil, errors.New("usecase: classifier must not be nil")
	}
	if price == nil {
		return nil, errors.New("usecase: price source must not be nil")
	}
	if steps == nil {
		return nil, errors.New("usecase: stage executor must not be nil")
	}
	return &ChatService{conv: conv, classifier: classifier, price: price, steps: steps}, nil
}

// Process handles one inbound query. Validation failures from the purchase
// steps surface to the caller without appending an assistant turn, so the
// pipeline does not advance on a rejected request.
func (s *ChatService) Process(ctx context.Context, in ChatInput) (ChatOutput, error) {
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		return ChatOutput{}, newError(ErrorInvalidInput, "empty_user_id", nil)
	}
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return ChatOutput{}, newError(ErrorInvalidInput, "empty_query", nil)
	}

	s.conv.Append(userID, domain.RoleUser, query)

	annotation := ""
	if isPriceSensitive(query) {
		quote := s.price.FetchPrice(ctx)
		switch quote.State {
		case domain.PriceError:
			slog.Error("gold price lookup failed", "user_id", userID, "err", quote.Err)
		case domain.PriceUnavailable:
			slog.Warn("gold price unavailable", "user_id", userID)
		}
		annotation = priceAnnotation(quote)
	}

	intentBlock := buildContextBlock(s.conv.Window(userID, intentWindowSize)) + annotation
	intent := s.classifier.ClassifyIntent(ctx, query, intentBlock)
	slog.Info("intent classified", "user_id", userID, "intent", intent.Intent, "confidence", intent.Meta.Confidence)

	var out ChatOutput
	if intent.Intent == domain.IntentReadyToInvest {
		stageBlock := buildContextBlock(s.conv.Window(userID, stageWindowSize)) + annotation
		stage := s.classifier.ClassifyStage(ctx, query, stageBlock)
		slog.Info("stage classified", "user_id", userID, "stage", stage.Stage, "confidence", stage.Meta.Confidence)

		res, err := s.steps.ExecuteStage(ctx, userID, stage)
		if err != nil {
			return ChatOutput{}, err
		}

		out = ChatOutput{
			Answer:     stage.Answer,
			Intent:     intent.Intent,
			Stage:      stage.Stage,
			Confidence: stage.Meta.Confidence,
			BuyLink:    stage.BuyLink,
		}
		if res != nil {
			out.OrderID = res.OrderID
			out.NextEndpoint = res.NextEndpoint
			out.TransactionID = res.TransactionID
			out.WalletID = res.WalletID
			out.Receipt = res.Receipt
		}
	} else {
		out = ChatOutput{
			Answer:     intent.Answer,
			Intent:     intent.Intent,
			Confidence: intent.Meta.Confidence,
		}
	}

	s.conv.Append(userID, domain.RoleAssistant, out.Answer)
	return out, nil
}

// Clear resets the user's conversation history.
func (s *ChatService) Clear(_ context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return newError(ErrorInvalidInput, "empty_user_id", nil)
	}
	s.conv.Clear(userID)
	return nil
}
