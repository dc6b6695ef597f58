package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/citymate-api/internal/domain"
)

const (
	codePrefix         = "CODE#"
	slotPrefix         = "SLOT#"
	maxReplaceAttempts = 3
)

// codeItem is a OneTimeCode stored under CODE#<code_id>.
type codeItem struct {
	PK string `dynamodbav:"pk"`
	domain.OneTimeCode
	TTL int64 `dynamodbav:"ttl"`
}

// slotItem points at the single live code for a (purpose, contact) pair.
type slotItem struct {
	PK     string `dynamodbav:"pk"`
	CodeID string `dynamodbav:"code_id"`
	TTL    int64  `dynamodbav:"ttl"`
}

func codeKey(codeID string) string { return codePrefix + codeID }

func slotKey(purpose domain.Purpose, contact string) string {
	return slotPrefix + string(purpose) + "#" + contact
}

// OTPRepo stores one-time codes. Replacing a code swaps the slot pointer and
// deletes the previous code in one transaction, so a (purpose, contact) pair
// never has two live codes.
type OTPRepo struct {
	client    API
	tableName string
}

func NewOTPRepo(client API, tableName string) *OTPRepo {
	return &OTPRepo{client: client, tableName: tableName}
}

// Replace stores c and discards whatever code previously held its slot.
func (r *OTPRepo) Replace(ctx context.Context, c *domain.OneTimeCode) error {
	slot := slotKey(c.Purpose, c.Contact)
	for attempt := 1; ; attempt++ {
		prev, err := r.currentCodeID(ctx, slot)
		if err != nil {
			return err
		}
		items, err := r.replaceItems(c, slot, prev)
		if err != nil {
			return err
		}
		_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
		if err == nil {
			return nil
		}
		var tce *types.TransactionCanceledException
		if !errors.As(err, &tce) {
			return fmt.Errorf("replace code: %w", err)
		}
		if attempt >= maxReplaceAttempts {
			return fmt.Errorf("replace code for %s: %w", c.Purpose, domain.ErrConflict)
		}
		slog.Warn("code slot changed concurrently, retrying", "purpose", c.Purpose, "attempt", attempt)
	}
}

// Get returns the code with the given id. Missing codes yield ErrNotFound.
func (r *OTPRepo) Get(ctx context.Context, codeID string) (*domain.OneTimeCode, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldPK, codeKey(codeID)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("code not found: %w", domain.ErrNotFound)
	}
	var item codeItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal code: %w", err)
	}
	return &item.OneTimeCode, nil
}

// Delete removes c and releases its slot if the slot still points at c.
func (r *OTPRepo) Delete(ctx context.Context, c *domain.OneTimeCode) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(fieldPK, codeKey(c.CodeID)),
	})
	if err != nil {
		return fmt.Errorf("delete code: %w", err)
	}
	_, err = r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      strKey(fieldPK, slotKey(c.Purpose, c.Contact)),
		ConditionExpression:      aws.String("#c = :id"),
		ExpressionAttributeNames: map[string]string{"#c": fieldCodeID},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberS{Value: c.CodeID},
		},
	})
	var ccf *types.ConditionalCheckFailedException
	if err != nil && !errors.As(err, &ccf) {
		return fmt.Errorf("release code slot: %w", err)
	}
	return nil
}

func (r *OTPRepo) currentCodeID(ctx context.Context, slot string) (string, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldPK, slot),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("read code slot: %w", err)
	}
	if out.Item == nil {
		return "", nil
	}
	var s slotItem
	if err := attributevalue.UnmarshalMap(out.Item, &s); err != nil {
		return "", fmt.Errorf("unmarshal code slot: %w", err)
	}
	return s.CodeID, nil
}

// replaceItems builds the transaction: put the new code, move the slot from
// prev to c, and delete prev. An empty prev means the slot must not exist yet.
func (r *OTPRepo) replaceItems(c *domain.OneTimeCode, slot, prev string) ([]types.TransactWriteItem, error) {
	ttl := c.ExpiresAt.Unix()
	code, err := attributevalue.MarshalMap(codeItem{PK: codeKey(c.CodeID), OneTimeCode: *c, TTL: ttl})
	if err != nil {
		return nil, fmt.Errorf("marshal code: %w", err)
	}
	pointer, err := attributevalue.MarshalMap(slotItem{PK: slot, CodeID: c.CodeID, TTL: ttl})
	if err != nil {
		return nil, fmt.Errorf("marshal code slot: %w", err)
	}

	slotPut := &types.Put{
		TableName:                aws.String(r.tableName),
		Item:                     pointer,
		ConditionExpression:      aws.String("attribute_not_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{"#pk": fieldPK},
	}
	if prev != "" {
		slotPut.ConditionExpression = aws.String("#c = :prev")
		slotPut.ExpressionAttributeNames = map[string]string{"#c": fieldCodeID}
		slotPut.ExpressionAttributeValues = map[string]types.AttributeValue{
			":prev": &types.AttributeValueMemberS{Value: prev},
		}
	}

	items := []types.TransactWriteItem{
		{Put: &types.Put{
			TableName:                aws.String(r.tableName),
			Item:                     code,
			ConditionExpression:      aws.String("attribute_not_exists(#pk)"),
			ExpressionAttributeNames: map[string]string{"#pk": fieldPK},
		}},
		{Put: slotPut},
	}
	if prev != "" && prev != c.CodeID {
		items = append(items, types.TransactWriteItem{Delete: &types.Delete{
			TableName: aws.String(r.tableName),
			Key:       strKey(fieldPK, codeKey(prev)),
		}})
	}
	return items, nil
}
