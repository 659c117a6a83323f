package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"gold-agent/internal/domain"
)

type fakeDynamo struct {
	putErr      error
	queryOut    *dynamodb.QueryOutput
	queryErr    error
	lastPutIn   *dynamodb.PutItemInput
	lastQueryIn *dynamodb.QueryInput
	putCount    int
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPutIn = in
	f.putCount++
	return &dynamodb.PutItemOutput{}, f.putErr
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.lastQueryIn = in
	return f.queryOut, f.queryErr
}

func mustNewClient(t *testing.T, db *fakeDynamo) *Client {
	t.Helper()
	c, err := New(db, "gold-orders")
	require.NoError(t, err)
	return c
}

func sampleStep(id string, kind domain.StepKind) domain.OrderStep {
	return domain.OrderStep{
		ID:        id,
		UserID:    "u1",
		Step:      kind,
		CreatedAt: time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
	}
}

func sampleItem(id, kind string, amount float64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":            &types.AttributeValueMemberS{Value: "USER#u1"},
		"SK":            &types.AttributeValueMemberS{Value: "STEP#2026-08-30T10:00:00Z#" + id},
		"id":            &types.AttributeValueMemberS{Value: id},
		"userId":        &types.AttributeValueMemberS{Value: "u1"},
		"step":          &types.AttributeValueMemberS{Value: kind},
		"kycDetails":    &types.AttributeValueMemberS{Value: ""},
		"quantityGrams": &types.AttributeValueMemberN{Value: "0"},
		"amount":        &types.AttributeValueMemberN{Value: formatFloat(amount)},
		"paymentMethod": &types.AttributeValueMemberS{Value: ""},
		"transactionId": &types.AttributeValueMemberS{Value: ""},
		"walletId":      &types.AttributeValueMemberS{Value: ""},
		"createdAt":     &types.AttributeValueMemberS{Value: "2026-08-30T10:00:00Z"},
	}
}

func TestAppend_HappyPath(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	step := sampleStep("id-1", domain.StepKYC)
	step.KYCDetails = "name, email, phone"

	require.NoError(t, c.Append(context.Background(), step))
	require.NotNil(t, db.lastPutIn)
	require.Equal(t, "gold-orders", *db.lastPutIn.TableName)
	require.Equal(t, "attribute_not_exists(PK) AND attribute_not_exists(SK)", *db.lastPutIn.ConditionExpression)
	require.Equal(t, "USER#u1", db.lastPutIn.Item["PK"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "KYC", db.lastPutIn.Item["step"].(*types.AttributeValueMemberS).Value)
	require.Contains(t, db.lastPutIn.Item["SK"].(*types.AttributeValueMemberS).Value, "STEP#2026-08-30T10:00:00Z#id-1")
}

func TestAppend_MissingFields(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	require.Error(t, c.Append(context.Background(), domain.OrderStep{UserID: "u1", Step: domain.StepKYC}))
	require.Error(t, c.Append(context.Background(), domain.OrderStep{ID: "id-1", Step: domain.StepKYC}))
	require.Error(t, c.Append(context.Background(), domain.OrderStep{ID: "id-1", UserID: "u1"}))
	require.Zero(t, db.putCount)
}

func TestAppend_DynamoError(t *testing.T) {
	db := &fakeDynamo{putErr: errors.New("ProvisionedThroughputExceededException")}
	c := mustNewClient(t, db)
	err := c.Append(context.Background(), sampleStep("id-1", domain.StepKYC))
	require.Error(t, err)
	require.Contains(t, err.Error(), "Append")
}

func TestAll_HappyPath_CreationOrder(t *testing.T) {
	db := &fakeDynamo{queryOut: &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{
		sampleItem("id-1", "KYC", 0),
		sampleItem("id-2", "QUANTITY", 10000),
	}}}
	c := mustNewClient(t, db)
	steps, err := c.All(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, steps, 2)
	require.Equal(t, domain.StepKYC, steps[0].Step)
	require.Equal(t, domain.StepQuantity, steps[1].Step)
	require.Equal(t, 10000.0, steps[1].Amount)
	require.True(t, *db.lastQueryIn.ScanIndexForward)
}

func TestAll_Empty(t *testing.T) {
	db := &fakeDynamo{queryOut: &dynamodb.QueryOutput{}}
	c := mustNewClient(t, db)
	steps, err := c.All(context.Background(), "u1")
	require.NoError(t, err)
	require.Empty(t, steps)
}

func TestAll_QueryError(t *testing.T) {
	db := &fakeDynamo{queryErr: errors.New("ResourceNotFoundException")}
	c := mustNewClient(t, db)
	_, err := c.All(context.Background(), "u1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "All")
}

func TestAll_MalformedItem(t *testing.T) {
	item := sampleItem("id-1", "KYC", 0)
	delete(item, "userId")
	db := &fakeDynamo{queryOut: &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{item}}}
	c := mustNewClient(t, db)
	_, err := c.All(context.Background(), "u1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "userId")
}

func TestLatestAny_HappyPath(t *testing.T) {
	db := &fakeDynamo{queryOut: &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{
		sampleItem("id-9", "QUANTITY", 5000),
	}}}
	c := mustNewClient(t, db)
	step, found, err := c.LatestAny(context.Background(), "u1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, domain.StepQuantity, step.Step)
	require.False(t, *db.lastQueryIn.ScanIndexForward)
	require.Equal(t, int32(1), *db.lastQueryIn.Limit)
}

func TestLatestAny_NoRows(t *testing.T) {
	db := &fakeDynamo{queryOut: &dynamodb.QueryOutput{}}
	c := mustNewClient(t, db)
	_, found, err := c.LatestAny(context.Background(), "u1")
	require.NoError(t, err)
	require.False(t, found)
}

func TestLatest_FiltersByKind(t *testing.T) {
	db := &fakeDynamo{queryOut: &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{
		sampleItem("id-4", "PAYMENT", 10000),
	}}}
	c := mustNewClient(t, db)
	step, found, err := c.Latest(context.Background(), "u1", domain.StepPayment)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, domain.StepPayment, step.Step)
	require.Equal(t, "#step = :step", *db.lastQueryIn.FilterExpression)
	require.Equal(t, "PAYMENT", db.lastQueryIn.ExpressionAttributeValues[":step"].(*types.AttributeValueMemberS).Value)
	require.False(t, *db.lastQueryIn.ScanIndexForward)
	require.Nil(t, db.lastQueryIn.Limit)
}

func TestLatest_NoMatch(t *testing.T) {
	db := &fakeDynamo{queryOut: &dynamodb.QueryOutput{}}
	c := mustNewClient(t, db)
	_, found, err := c.Latest(context.Background(), "u1", domain.StepVaultConfirm)
	require.NoError(t, err)
	require.False(t, found)
}

func TestLatest_QueryError(t *testing.T) {
	db := &fakeDynamo{queryErr: errors.New("boom")}
	c := mustNewClient(t, db)
	_, _, err := c.Latest(context.Background(), "u1", domain.StepQuantity)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Latest")
}

func TestStepSK_OrdersByTimestamp(t *testing.T) {
	earlier := stepSK(time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC), "a")
	later := stepSK(time.Date(2026, 8, 30, 11, 0, 0, 0, time.UTC), "a")
	require.Less(t, earlier, later)
}

func TestUserPK(t *testing.T) {
	require.Equal(t, "USER#u-42", userPK("u-42"))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, "gold-orders")
	require.Error(t, err)
	_, err = New(&fakeDynamo{}, "  ")
	require.Error(t, err)
}
