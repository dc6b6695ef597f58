package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/citymate-api/internal/domain"
)

// UserRepo provides typed DynamoDB operations for the users table.
type UserRepo struct {
	client    API
	tableName string
}

func NewUserRepo(client API, tableName string) *UserRepo {
	return &UserRepo{client: client, tableName: tableName}
}

// markerItem reserves a username, email or phone for OwnerID.
type markerItem struct {
	UserID  string `dynamodbav:"user_id"`
	OwnerID string `dynamodbav:"owner_id"`
}

// uniqueFields maps each unique user attribute to its marker prefix.
var uniqueFields = []struct{ attr, prefix string }{
	{fieldUsername, markerUsername},
	{fieldEmail, markerEmail},
	{fieldPhone, markerPhone},
}

// Put inserts a new user together with the markers reserving its username,
// email and phone. It fails with ErrConflict when the user_id or any of those
// values is taken.
func (r *UserRepo) Put(ctx context.Context, u *domain.User) error {
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	items := []types.TransactWriteItem{{Put: &types.Put{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(user_id)"),
	}}}
	for _, f := range uniqueFields {
		value := uniqueValue(u, f.attr)
		if value == "" {
			continue
		}
		put, err := r.markerPut(f.prefix+value, u.UserID)
		if err != nil {
			return err
		}
		items = append(items, put)
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		if conditionFailed(tce, 0) {
			return fmt.Errorf("user %s already exists: %w", u.UserID, domain.ErrConflict)
		}
		return fmt.Errorf("username or contact already taken: %w", domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

func (r *UserRepo) Get(ctx context.Context, userID string) (*domain.User, error) {
	return r.get(ctx, userID, false)
}

func (r *UserRepo) get(ctx context.Context, userID string, consistent bool) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldUserID, userID),
		ConsistentRead: aws.Bool(consistent),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.queryGSI(ctx, indexUsername, fieldUsername, username)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.queryGSI(ctx, indexEmail, fieldEmail, email)
}

func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	return r.queryGSI(ctx, indexPhone, fieldPhone, phone)
}

// Update applies a partial update. A nil value removes the attribute. Changes
// to username, email or phone move their markers in the same transaction and
// fail with ErrConflict when the new value is held by another user.
func (r *UserRepo) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	updates[fieldUpdatedAt] = time.Now().UTC()
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	update := &types.Update{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldUserID, userID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(user_id)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	}

	markers, err := r.markerMoves(ctx, userID, updates)
	if err != nil {
		return err
	}
	if len(markers) == 0 {
		_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 update.TableName,
			Key:                       update.Key,
			UpdateExpression:          update.UpdateExpression,
			ConditionExpression:       update.ConditionExpression,
			ExpressionAttributeNames:  update.ExpressionAttributeNames,
			ExpressionAttributeValues: update.ExpressionAttributeValues,
		})
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("user not found: %w", domain.ErrNotFound)
		}
		return err
	}

	items := append([]types.TransactWriteItem{{Update: update}}, markers...)
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		if conditionFailed(tce, 0) {
			return fmt.Errorf("user not found: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("username or contact already taken: %w", domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// markerMoves returns the marker writes for every unique attribute that
// updates changes: reserve the new value and release the old one.
func (r *UserRepo) markerMoves(ctx context.Context, userID string, updates map[string]interface{}) ([]types.TransactWriteItem, error) {
	var touched bool
	for _, f := range uniqueFields {
		if _, ok := updates[f.attr]; ok {
			touched = true
		}
	}
	if !touched {
		return nil, nil
	}
	current, err := r.get(ctx, userID, true)
	if err != nil {
		return nil, err
	}

	var items []types.TransactWriteItem
	for _, f := range uniqueFields {
		v, ok := updates[f.attr]
		if !ok {
			continue
		}
		next, old := stringOf(v), uniqueValue(current, f.attr)
		if next == old {
			continue
		}
		if next != "" {
			put, err := r.markerPut(f.prefix+next, userID)
			if err != nil {
				return nil, err
			}
			items = append(items, put)
		}
		if old != "" {
			items = append(items, types.TransactWriteItem{Delete: &types.Delete{
				TableName: aws.String(r.tableName),
				Key:       strKey(fieldUserID, f.prefix+old),
			}})
		}
	}
	return items, nil
}

func (r *UserRepo) markerPut(key, ownerID string) (types.TransactWriteItem, error) {
	item, err := attributevalue.MarshalMap(markerItem{UserID: key, OwnerID: ownerID})
	if err != nil {
		return types.TransactWriteItem{}, fmt.Errorf("marshal marker: %w", err)
	}
	return types.TransactWriteItem{Put: &types.Put{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(user_id)"),
	}}, nil
}

func uniqueValue(u *domain.User, attr string) string {
	switch attr {
	case fieldUsername:
		return u.Username
	case fieldEmail:
		return aws.ToString(u.Email)
	case fieldPhone:
		return aws.ToString(u.Phone)
	}
	return ""
}

func stringOf(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case *string:
		return aws.ToString(s)
	}
	return ""
}

// conditionFailed reports whether transaction item i was cancelled by its condition.
func conditionFailed(tce *types.TransactionCanceledException, i int) bool {
	if i >= len(tce.CancellationReasons) {
		return false
	}
	return aws.ToString(tce.CancellationReasons[i].Code) == "ConditionalCheckFailed"
}

func (r *UserRepo) queryGSI(ctx context.Context, index, attr, value string) (*domain.User, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: value}},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Items[0], &u); err != nil {
		return nil, err
	}
	return &u, nil
}
