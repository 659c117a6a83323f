package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"gold-agent/internal/domain"
	"gold-agent/internal/usecase"
)

// chatAPI and purchaseAPI are the two use case surfaces the Lambda exposes.
type chatAPI interface {
	Process(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
	Clear(ctx context.Context, userID string) error
}

type purchaseAPI interface {
	KYC(ctx context.Context, in usecase.KYCInput) (usecase.StepResult, error)
	Quantity(ctx context.Context, in usecase.QuantityInput) (usecase.StepResult, error)
	Payment(ctx context.Context, in usecase.PaymentInput) (usecase.StepResult, error)
	Vault(ctx context.Context, in usecase.VaultInput) (usecase.StepResult, error)
	Receipt(ctx context.Context, in usecase.ReceiptInput) (usecase.StepResult, error)
}

type Handler struct {
	chat  chatAPI
	steps purchaseAPI
}

func NewHandler(chat chatAPI, steps purchaseAPI) (*Handler, error) {
	if chat == nil {
		return nil, errors.New("handler: chat use case must not be nil")
	}
	if steps == nil {
		return nil, errors.New("handler: purchase use case must not be nil")
	}
	return &Handler{chat: chat, steps: steps}, nil
}

type chatRequest struct {
	UserID string `json:"userId"`
	Query  string `json:"query"`
}

type chatResponse struct {
	Answer        string          `json:"answer"`
	Intent        string          `json:"intent"`
	Stage         string          `json:"stage,omitempty"`
	Confidence    float64         `json:"confidence"`
	BuyLink       string          `json:"buyLink,omitempty"`
	OrderID       string          `json:"orderId,omitempty"`
	NextEndpoint  string          `json:"nextEndpoint,omitempty"`
	TransactionID string          `json:"transactionId,omitempty"`
	WalletID      string          `json:"walletId,omitempty"`
	Receipt       *domain.Receipt `json:"receipt,omitempty"`
}

type clearRequest struct {
	UserID string `json:"userId"`
}

type stepRequest struct {
	UserID        string  `json:"userId"`
	KYCDetails    string  `json:"kycDetails"`
	Grams         float64 `json:"grams"`
	Amount        float64 `json:"amount"`
	PaymentMethod string  `json:"paymentMethod"`
	Confirm       bool    `json:"confirm"`
}

type stepResponse struct {
	Message       string          `json:"message"`
	OrderID       string          `json:"orderId,omitempty"`
	NextEndpoint  string          `json:"nextEndpoint,omitempty"`
	TransactionID string          `json:"transactionId,omitempty"`
	WalletID      string          `json:"walletId,omitempty"`
	Receipt       *domain.Receipt `json:"receipt,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// Handle routes one API Gateway proxy event. POST /chat runs the
// conversational pipeline, POST /chat/clear drops the user's history, and
// POST /api/gold/{kyc,quantity,payment,vault,receipt} hit the purchase steps
// directly.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := correlationIDFrom(event.Headers)
	log := slog.With("correlation_id", correlationID, "path", event.Path)

	if event.HTTPMethod != http.MethodPost {
		return respond(http.StatusMethodNotAllowed, errorResponse{Error: "METHOD_NOT_ALLOWED"}, correlationID), nil
	}

	switch event.Path {
	case "/chat":
		return h.handleChat(ctx, event, correlationID, log), nil
	case "/chat/clear":
		return h.handleClear(ctx, event, correlationID, log), nil
	}

	if step, ok := strings.CutPrefix(event.Path, "/api/gold/"); ok {
		return h.handleStep(ctx, step, event, correlationID, log), nil
	}

	return respond(http.StatusNotFound, errorResponse{Error: "NOT_FOUND"}, correlationID), nil
}

func (h *Handler) handleChat(ctx context.Context, event events.APIGatewayProxyRequest, correlationID string, log *slog.Logger) events.APIGatewayProxyResponse {
	var req chatRequest
	if err := json.Unmarshal([]byte(event.Body), &req); err != nil {
		log.Warn("invalid request body", "err", err)
		return respond(http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "malformed_json"}, correlationID)
	}

	out, err := h.chat.Process(ctx, usecase.ChatInput{UserID: req.UserID, Query: req.Query})
	if err != nil {
		return errorRespond(err, correlationID, log)
	}

	log.Info("chat processed", "user_id", req.UserID, "intent", out.Intent, "stage", out.Stage)
	return respond(http.StatusOK, chatResponse{
		Answer:        out.Answer,
		Intent:        string(out.Intent),
		Stage:         string(out.Stage),
		Confidence:    out.Confidence,
		BuyLink:       out.BuyLink,
		OrderID:       out.OrderID,
		NextEndpoint:  out.NextEndpoint,
		TransactionID: out.TransactionID,
		WalletID:      out.WalletID,
		Receipt:       out.Receipt,
	}, correlationID)
}

func (h *Handler) handleClear(ctx context.Context, event events.APIGatewayProxyRequest, correlationID string, log *slog.Logger) events.APIGatewayProxyResponse {
	var req clearRequest
	if err := json.Unmarshal([]byte(event.Body), &req); err != nil {
		log.Warn("invalid request body", "err", err)
		return respond(http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "malformed_json"}, correlationID)
	}

	if err := h.chat.Clear(ctx, req.UserID); err != nil {
		return errorRespond(err, correlationID, log)
	}

	log.Info("conversation cleared", "user_id", req.UserID)
	return respond(http.StatusOK, messageResponse{Message: "conversation cleared"}, correlationID)
}

func (h *Handler) handleStep(ctx context.Context, step string, event events.APIGatewayProxyRequest, correlationID string, log *slog.Logger) events.APIGatewayProxyResponse {
	var req stepRequest
	if err := json.Unmarshal([]byte(event.Body), &req); err != nil {
		log.Warn("invalid request body", "err", err)
		return respond(http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "malformed_json"}, correlationID)
	}
	if strings.TrimSpace(req.UserID) == "" {
		return respond(http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "empty_user_id"}, correlationID)
	}

	var (
		res usecase.StepResult
		err error
	)
	switch step {
	case "kyc":
		if strings.TrimSpace(req.KYCDetails) == "" {
			return respond(http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "empty_kyc_details"}, correlationID)
		}
		res, err = h.steps.KYC(ctx, usecase.KYCInput{UserID: req.UserID, Details: req.KYCDetails})
	case "quantity":
		res, err = h.steps.Quantity(ctx, usecase.QuantityInput{UserID: req.UserID, Grams: req.Grams, Amount: req.Amount})
	case "payment":
		res, err = h.steps.Payment(ctx, usecase.PaymentInput{UserID: req.UserID, Method: req.PaymentMethod, Amount: req.Amount})
	case "vault":
		res, err = h.steps.Vault(ctx, usecase.VaultInput{UserID: req.UserID, Confirm: req.Confirm})
	case "receipt":
		res, err = h.steps.Receipt(ctx, usecase.ReceiptInput{UserID: req.UserID})
	default:
		return respond(http.StatusNotFound, errorResponse{Error: "NOT_FOUND"}, correlationID)
	}
	if err != nil {
		return errorRespond(err, correlationID, log)
	}

	log.Info("purchase step recorded", "user_id", req.UserID, "step", step, "order_id", res.OrderID)
	return respond(http.StatusOK, stepResponse{
		Message:       res.Message,
		OrderID:       res.OrderID,
		NextEndpoint:  res.NextEndpoint,
		TransactionID: res.TransactionID,
		WalletID:      res.WalletID,
		Receipt:       res.Receipt,
	}, correlationID)
}

func errorRespond(err error, correlationID string, log *slog.Logger) events.APIGatewayProxyResponse {
	var usecaseErr *usecase.Error
	if !errors.As(err, &usecaseErr) {
		log.Error("unexpected error", "err", err)
		return respond(http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal)}, correlationID)
	}

	status := statusFor(usecaseErr.Code)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "code", usecaseErr.Code, "reason", usecaseErr.Reason, "err", usecaseErr.Err)
	} else {
		log.Warn("request rejected", "code", usecaseErr.Code, "reason", usecaseErr.Reason)
	}
	return respond(status, errorResponse{Error: string(usecaseErr.Code), Reason: usecaseErr.Reason}, correlationID)
}

func statusFor(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidInput,
		usecase.ErrorPriceUnavailable,
		usecase.ErrorPaymentMismatch,
		usecase.ErrorVaultNotConfirmed,
		usecase.ErrorNoOrderFound:
		return http.StatusBadRequest
	case usecase.ErrorUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respond(status int, body any, correlationID string) events.APIGatewayProxyResponse {
	payload, err := json.Marshal(body)
	if err != nil {
		payload = []byte(`{"error":"INTERNAL_ERROR"}`)
		status = http.StatusInternalServerError
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":     "application/json",
			"X-Correlation-Id": correlationID,
		},
		Body: string(payload),
	}
}

func correlationIDFrom(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, "X-Correlation-Id") && v != "" {
			return v
		}
	}
	return uuid.NewString()
}
