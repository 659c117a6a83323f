// Package repository persists the order ledger in a single DynamoDB table.
// The ledger is append-only: no update or delete is ever issued, corrections
// are modeled as new rows, and the latest row of each step kind wins on read.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"gold-agent/internal/domain"
)

const skPrefixStep = "STEP#"

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Ledger defines the order-ledger operations consumed by the purchase flow.
type Ledger interface {
	Append(ctx context.Context, step domain.OrderStep) error
	Latest(ctx context.Context, userID string, kind domain.StepKind) (domain.OrderStep, bool, error)
	LatestAny(ctx context.Context, userID string) (domain.OrderStep, bool, error)
	All(ctx context.Context, userID string) ([]domain.OrderStep, error)
}

// Client wraps a DynamoDB table holding order-step rows.
type Client struct {
	api       dynamodbAPI
	tableName string
}

// New creates a new ledger Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName}, nil
}

// userPK returns the DynamoDB partition key for a user's ledger rows.
func userPK(userID string) string {
	return "USER#" + userID
}

// stepSK returns the sort key for a step row. The timestamp orders rows by
// creation time; the row id breaks ties between writes in the same nanosecond.
func stepSK(ts time.Time, id string) string {
	return skPrefixStep + ts.UTC().Format(time.RFC3339Nano) + "#" + id
}

// Append inserts a new immutable step row. A storage failure here is fatal to
// the request; nothing retries it.
func (c *Client) Append(ctx context.Context, step domain.OrderStep) error {
	if step.ID == "" || step.UserID == "" || step.Step == "" {
		return errors.New("repository: Append: id, user id and step kind are required")
	}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                stepItem(step),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: Append: %w", err)
	}
	return nil
}

// All returns every step row for the user in creation order.
func (c *Client) All(ctx context.Context, userID string) ([]domain.OrderStep, error) {
	out, err := c.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: userPK(userID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixStep},
		},
		ScanIndexForward: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: All query: %w", err)
	}

	steps := make([]domain.OrderStep, 0, len(out.Items))
	for _, item := range out.Items {
		step, err := itemToStep(item)
		if err != nil {
			return nil, fmt.Errorf("repository: All unmarshal: %w", err)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// LatestAny returns the most recently created step row of any kind.
func (c *Client) LatestAny(ctx context.Context, userID string) (domain.OrderStep, bool, error) {
	out, err := c.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: userPK(userID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixStep},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return domain.OrderStep{}, false, fmt.Errorf("repository: LatestAny query: %w", err)
	}
	if len(out.Items) == 0 {
		return domain.OrderStep{}, false, nil
	}
	step, err := itemToStep(out.Items[0])
	if err != nil {
		return domain.OrderStep{}, false, fmt.Errorf("repository: LatestAny unmarshal: %w", err)
	}
	return step, true, nil
}

// Latest returns the most recently created row of the given kind for the
// user. The filter runs server-side after the key condition, so no Limit is
// set; the newest match comes back first.
func (c *Client) Latest(ctx context.Context, userID string, kind domain.StepKind) (domain.OrderStep, bool, error) {
	out, err := c.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		FilterExpression:       aws.String("#step = :step"),
		ExpressionAttributeNames: map[string]string{
			"#step": "step",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: userPK(userID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixStep},
			":step":   &types.AttributeValueMemberS{Value: string(kind)},
		},
		ScanIndexForward: aws.Bool(false),
	})
	if err != nil {
		return domain.OrderStep{}, false, fmt.Errorf("repository: Latest query: %w", err)
	}
	if len(out.Items) == 0 {
		return domain.OrderStep{}, false, nil
	}
	step, err := itemToStep(out.Items[0])
	if err != nil {
		return domain.OrderStep{}, false, fmt.Errorf("repository: Latest unmarshal: %w", err)
	}
	return step, true, nil
}

func stepItem(step domain.OrderStep) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":            &types.AttributeValueMemberS{Value: userPK(step.UserID)},
		"SK":            &types.AttributeValueMemberS{Value: stepSK(step.CreatedAt, step.ID)},
		"id":            &types.AttributeValueMemberS{Value: step.ID},
		"userId":        &types.AttributeValueMemberS{Value: step.UserID},
		"step":          &types.AttributeValueMemberS{Value: string(step.Step)},
		"kycDetails":    &types.AttributeValueMemberS{Value: step.KYCDetails},
		"quantityGrams": &types.AttributeValueMemberN{Value: formatFloat(step.QuantityGrams)},
		"amount":        &types.AttributeValueMemberN{Value: formatFloat(step.Amount)},
		"paymentMethod": &types.AttributeValueMemberS{Value: step.PaymentMethod},
		"transactionId": &types.AttributeValueMemberS{Value: step.TransactionID},
		"walletId":      &types.AttributeValueMemberS{Value: step.WalletID},
		"createdAt":     &types.AttributeValueMemberS{Value: step.CreatedAt.UTC().Format(time.RFC3339Nano)},
	}
}

// itemToStep converts a DynamoDB attribute map to an OrderStep.
func itemToStep(item map[string]types.AttributeValue) (domain.OrderStep, error) {
	id, err := strAttr(item, "id")
	if err != nil {
		return domain.OrderStep{}, err
	}
	userID, err := strAttr(item, "userId")
	if err != nil {
		return domain.OrderStep{}, err
	}
	kind, err := strAttr(item, "step")
	if err != nil {
		return domain.OrderStep{}, err
	}
	kycDetails, _ := strAttr(item, "kycDetails")
	paymentMethod, _ := strAttr(item, "paymentMethod")
	transactionID, _ := strAttr(item, "transactionId")
	walletID, _ := strAttr(item, "walletId")

	grams, err := floatAttr(item, "quantityGrams")
	if err != nil {
		return domain.OrderStep{}, err
	}
	amount, err := floatAttr(item, "amount")
	if err != nil {
		return domain.OrderStep{}, err
	}

	var createdAt time.Time
	if raw, attrErr := strAttr(item, "createdAt"); attrErr == nil && raw != "" {
		createdAt, err = time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return domain.OrderStep{}, fmt.Errorf("repository: parse createdAt: %w", err)
		}
	}

	return domain.OrderStep{
		ID:            id,
		UserID:        userID,
		Step:          domain.StepKind(kind),
		KYCDetails:    kycDetails,
		QuantityGrams: grams,
		Amount:        amount,
		PaymentMethod: paymentMethod,
		TransactionID: transactionID,
		WalletID:      walletID,
		CreatedAt:     createdAt,
	}, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func floatAttr(item map[string]types.AttributeValue, key string) (float64, error) {
	v, ok := item[key]
	if !ok {
		return 0, nil
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.ParseFloat(n.Value, 64)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
