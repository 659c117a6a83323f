package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"gold-agent/internal/domain"
)

// Ledger is the append-only order store the purchase flow reads and writes.
type Ledger interface {
	Append(ctx context.Context, step domain.OrderStep) error
	Latest(ctx context.Context, userID string, kind domain.StepKind) (domain.OrderStep, bool, error)
	LatestAny(ctx context.Context, userID string) (domain.OrderStep, bool, error)
	All(ctx context.Context, userID string) ([]domain.OrderStep, error)
}

// PriceSource is the live gold price lookup the quantity step derives from.
type PriceSource interface {
	FetchPrice(ctx context.Context) domain.PriceQuote
}

// PurchaseService executes the five purchase steps. There is no server-owned
// current stage: ExecuteStage attaches each step's validation and side effect
// to whichever stage the classifier reports, and the direct step endpoints
// invoke the same operations. Concurrent submissions for the same user are
// assumed not to interleave (at most one pipeline per user at a time); the
// append-only ledger makes a duplicate row the worst outcome of a race.
type PurchaseService struct {
	ledger       Ledger
	price        PriceSource
	endpointBase string
}

func NewPurchaseService(ledger Ledger, price PriceSource, endpointBase string) (*PurchaseService, error) {
	if ledger == nil {
		return nil, errors.New("usecase: ledger must not be nil")
	}
	if price == nil {
		return nil, errors.New("usecase: price source must not be nil")
	}
	if endpointBase == "" {
		endpointBase = "/api/gold"
	}
	return &PurchaseService{ledger: ledger, price: price, endpointBase: endpointBase}, nil
}

type KYCInput struct {
	UserID  string
	Details string
}

type QuantityInput struct {
	UserID string
	Grams  float64
	Amount float64
}

type PaymentInput struct {
	UserID string
	Method string
	Amount float64
}

type VaultInput struct {
	UserID  string
	Confirm bool
}

type ReceiptInput struct {
	UserID string
}

// StepResult is what every step emits: the user-facing message, the written
// row's id, and the endpoint to continue at. Receipt is set only by the final
// step.
type StepResult struct {
	Message       string
	OrderID       string
	NextEndpoint  string
	TransactionID string
	WalletID      string
	Receipt       *domain.Receipt
}

// KYC records the know-your-customer step. No precondition: it is the
// pipeline entry point.
func (s *PurchaseService) KYC(ctx context.Context, in KYCInput) (StepResult, error) {
	step := s.newStep(in.UserID, domain.StepKYC)
	step.KYCDetails = in.Details
	if err := s.ledger.Append(ctx, step); err != nil {
		return StepResult{}, newError(ErrorInternal, "ledger_write_error", err)
	}
	return StepResult{
		Message:      "KYC completed",
		OrderID:      step.ID,
		NextEndpoint: s.endpointBase + "/quantity",
	}, nil
}

// Quantity records how much gold the user wants. When only one of grams or
// amount is given, the other is derived from the live price (amount rounded
// to 2 decimals, grams to 4). Supplying neither, or needing a derivation with
// no usable price, rejects the request.
func (s *PurchaseService) Quantity(ctx context.Context, in QuantityInput) (StepResult, error) {
	grams, amount := in.Grams, in.Amount
	switch {
	case grams <= 0 && amount <= 0:
		return StepResult{}, newError(ErrorInvalidInput, "grams_or_amount_required", nil)
	case grams > 0 && amount <= 0:
		quote := s.price.FetchPrice(ctx)
		if !quote.Usable() {
			return StepResult{}, newError(ErrorPriceUnavailable, "gold_price_unavailable", quote.Err)
		}
		amount = round2(grams * quote.PerGramINR)
	case amount > 0 && grams <= 0:
		quote := s.price.FetchPrice(ctx)
		if !quote.Usable() {
			return StepResult{}, newError(ErrorPriceUnavailable, "gold_price_unavailable", quote.Err)
		}
		grams = round4(amount / quote.PerGramINR)
	}

	step := s.newStep(in.UserID, domain.StepQuantity)
	step.QuantityGrams = grams
	step.Amount = amount
	if err := s.ledger.Append(ctx, step); err != nil {
		return StepResult{}, newError(ErrorInternal, "ledger_write_error", err)
	}
	return StepResult{
		Message:      fmt.Sprintf("Quantity set: %v grams / %v INR", grams, amount),
		OrderID:      step.ID,
		NextEndpoint: s.endpointBase + "/payment",
	}, nil
}

// Payment validates the submitted amount against the latest ledger row, which
// must be the quantity step, and records the payment with a generated
// transaction id. A mismatch writes nothing.
func (s *PurchaseService) Payment(ctx context.Context, in PaymentInput) (StepResult, error) {
	last, found, err := s.ledger.LatestAny(ctx, in.UserID)
	if err != nil {
		return StepResult{}, newError(ErrorInternal, "ledger_read_error", err)
	}
	if !found || last.Step != domain.StepQuantity {
		return StepResult{}, newError(ErrorInvalidInput, "quantity_step_required", nil)
	}
	if in.Amount != last.Amount {
		return StepResult{}, newError(ErrorPaymentMismatch, "payment_amount_mismatch", nil)
	}

	step := s.newStep(in.UserID, domain.StepPayment)
	step.PaymentMethod = in.Method
	step.Amount = in.Amount
	step.TransactionID = newUUID()
	if err := s.ledger.Append(ctx, step); err != nil {
		return StepResult{}, newError(ErrorInternal, "ledger_write_error", err)
	}
	return StepResult{
		Message:       fmt.Sprintf("Payment of %v INR via %s confirmed", in.Amount, in.Method),
		OrderID:       step.ID,
		NextEndpoint:  s.endpointBase + "/vault",
		TransactionID: step.TransactionID,
	}, nil
}

// Vault records vault storage confirmation with a generated wallet id.
func (s *PurchaseService) Vault(ctx context.Context, in VaultInput) (StepResult, error) {
	if !in.Confirm {
		return StepResult{}, newError(ErrorVaultNotConfirmed, "vault_confirmation_required", nil)
	}

	step := s.newStep(in.UserID, domain.StepVaultConfirm)
	step.WalletID = newUUID()
	if err := s.ledger.Append(ctx, step); err != nil {
		return StepResult{}, newError(ErrorInternal, "ledger_write_error", err)
	}
	return StepResult{
		Message:      "Vault storage confirmed",
		OrderID:      step.ID,
		NextEndpoint: s.endpointBase + "/receipt",
		WalletID:     step.WalletID,
	}, nil
}

// Receipt assembles the final summary from the latest row of each step kind
// and records the post-buy marker. Steps the user skipped stay at their zero
// values; only a completely empty ledger is an error.
func (s *PurchaseService) Receipt(ctx context.Context, in ReceiptInput) (StepResult, error) {
	steps, err := s.ledger.All(ctx, in.UserID)
	if err != nil {
		return StepResult{}, newError(ErrorInternal, "ledger_read_error", err)
	}
	if len(steps) == 0 {
		return StepResult{}, newError(ErrorNoOrderFound, "no_orders_for_user", nil)
	}

	receipt := &domain.Receipt{
		UserID:       in.UserID,
		PurchaseTime: nowUTC().Format(time.RFC3339),
		Message:      "Purchase complete",
	}
	// steps are in creation order, so the last row of each kind wins.
	for _, step := range steps {
		switch step.Step {
		case domain.StepKYC:
			receipt.KYCDetails = step.KYCDetails
		case domain.StepQuantity:
			receipt.QuantityGrams = step.QuantityGrams
			receipt.Amount = step.Amount
		case domain.StepPayment:
			receipt.PaymentMethod = step.PaymentMethod
			receipt.TransactionID = step.TransactionID
		case domain.StepVaultConfirm:
			receipt.WalletID = step.WalletID
		}
	}

	marker := s.newStep(in.UserID, domain.StepPostBuy)
	if err := s.ledger.Append(ctx, marker); err != nil {
		return StepResult{}, newError(ErrorInternal, "ledger_write_error", err)
	}
	return StepResult{
		Message: receipt.Message,
		OrderID: marker.ID,
		Receipt: receipt,
	}, nil
}

// ExecuteStage is the dispatch from a classifier judgment to a step
// execution: a pure mapping over (judgment, ledger). Stages without side
// effects return a nil result. The classifier is the authority on stage;
// nothing here advances or persists a stage of its own.
func (s *PurchaseService) ExecuteStage(ctx context.Context, userID string, judgment domain.StageJudgment) (*StepResult, error) {
	switch judgment.Stage {
	case domain.StageExploration:
		return nil, nil
	case domain.StageReadyToBuy:
		return &StepResult{NextEndpoint: s.endpointBase + "/kyc"}, nil
	case domain.StageBuyStep1:
		res, err := s.KYC(ctx, KYCInput{UserID: userID})
		return resultOrError(res, err)
	case domain.StageBuyStep2:
		res, err := s.Quantity(ctx, QuantityInput{
			UserID: userID,
			Grams:  judgment.Meta.Grams,
			Amount: judgment.Meta.Amount,
		})
		return resultOrError(res, err)
	case domain.StageBuyStep3:
		res, err := s.Payment(ctx, PaymentInput{
			UserID: userID,
			Method: judgment.Meta.PaymentMethod,
			Amount: judgment.Meta.Amount,
		})
		return resultOrError(res, err)
	case domain.StageBuyStep4:
		// The classifier only reports this stage once the user has
		// confirmed in conversation.
		res, err := s.Vault(ctx, VaultInput{UserID: userID, Confirm: true})
		return resultOrError(res, err)
	case domain.StageBuyStep5:
		res, err := s.Receipt(ctx, ReceiptInput{UserID: userID})
		return resultOrError(res, err)
	default:
		return nil, nil
	}
}

func resultOrError(res StepResult, err error) (*StepResult, error) {
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *PurchaseService) newStep(userID string, kind domain.StepKind) domain.OrderStep {
	return domain.OrderStep{
		ID:        newUUID(),
		UserID:    userID,
		Step:      kind,
		CreatedAt: nowUTC(),
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}

var newUUID = func() string {
	return uuid.NewString()
}

var nowUTC = func() time.Time {
	return time.Now().UTC()
}
