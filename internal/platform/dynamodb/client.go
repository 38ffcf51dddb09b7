package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

// Attribute names of a lock item.
const (
	AttrLockID    = "LockID"
	AttrLeaseID   = "lease_id"
	AttrOwner     = "owner"
	AttrExpiresAt = "expires_at"
)

var (
	// ErrConditionFailed is returned when a conditional write did not apply.
	ErrConditionFailed = errors.New("condition check failed")

	// ErrNotFound is returned when the lock item does not exist.
	ErrNotFound = errors.New("lock not found")
)

// LockItem is a lease record. ExpiresAt is stored as epoch seconds so the
// table's TTL can reap abandoned locks.
type LockItem struct {
	LockID    string `dynamodbav:"LockID"`
	LeaseID   string `dynamodbav:"lease_id"`
	Owner     string `dynamodbav:"owner"`
	ExpiresAt int64  `dynamodbav:"expires_at"`
}

// Expiry returns ExpiresAt as a time.
func (i *LockItem) Expiry() time.Time {
	return time.Unix(i.ExpiresAt, 0)
}

// Client performs lock operations against one table.
type Client struct {
	db    *dynamodb.Client
	table string
}

// Options configures NewClient.
type Options struct {
	Region   string
	Profile  string
	Endpoint string
}

// NewClient creates a client for table using the default AWS credential chain.
func NewClient(ctx context.Context, table string, opts Options) (*Client, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(opts.Profile))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	db := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})
	return &Client{db: db, table: table}, nil
}

// Table returns the lock table name.
func (c *Client) Table() string {
	return c.table
}

// AcquireLock writes item if no lock exists for its LockID or the existing
// one expired before now.
func (c *Client) AcquireLock(ctx context.Context, item LockItem, now time.Time) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal lock item: %w", err)
	}

	_, err = c.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.table),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(#id) OR #exp < :now"),
		ExpressionAttributeNames: map[string]string{
			"#id":  AttrLockID,
			"#exp": AttrExpiresAt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": epoch(now.Unix()),
		},
	})
	return c.wrap("acquire", item.LockID, err)
}

// RenewLock moves the expiry of a lock still held by item.LeaseID.
func (c *Client) RenewLock(ctx context.Context, item LockItem) error {
	_, err := c.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(c.table),
		Key:                 lockKey(item.LockID),
		UpdateExpression:    aws.String("SET #exp = :exp"),
		ConditionExpression: aws.String("#lease = :lease"),
		ExpressionAttributeNames: map[string]string{
			"#exp":   AttrExpiresAt,
			"#lease": AttrLeaseID,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":exp":   epoch(item.ExpiresAt),
			":lease": &types.AttributeValueMemberS{Value: item.LeaseID},
		},
	})
	return c.wrap("renew", item.LockID, err)
}

// DeleteLock removes a lock still held by leaseID.
func (c *Client) DeleteLock(ctx context.Context, lockID, leaseID string) error {
	_, err := c.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(c.table),
		Key:                 lockKey(lockID),
		ConditionExpression: aws.String("#lease = :lease"),
		ExpressionAttributeNames: map[string]string{
			"#lease": AttrLeaseID,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":lease": &types.AttributeValueMemberS{Value: leaseID},
		},
	})
	return c.wrap("release", lockID, err)
}

// ForceDeleteLock removes a lock unconditionally.
func (c *Client) ForceDeleteLock(ctx context.Context, lockID string) error {
	_, err := c.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(c.table),
		Key:       lockKey(lockID),
	})
	return c.wrap("force delete", lockID, err)
}

// GetLock reads a lock with a strongly consistent read.
func (c *Client) GetLock(ctx context.Context, lockID string) (*LockItem, error) {
	out, err := c.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.table),
		Key:            lockKey(lockID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, c.wrap("get", lockID, err)
	}
	if len(out.Item) == 0 {
		return nil, fmt.Errorf("lock %s: %w", lockID, ErrNotFound)
	}

	var item LockItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal lock %s: %w", lockID, err)
	}
	return &item, nil
}

func (c *Client) wrap(op, lockID string, err error) error {
	if err == nil {
		return nil
	}
	if isConditionFailed(err) {
		return fmt.Errorf("%s lock %s: %w", op, lockID, ErrConditionFailed)
	}
	return fmt.Errorf("failed to %s lock %s in table %s: %w", op, lockID, c.table, err)
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "ConditionalCheckFailedException"
	}
	return false
}

func lockKey(lockID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		AttrLockID: &types.AttributeValueMemberS{Value: lockID},
	}
}

func epoch(sec int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(sec, 10)}
}
