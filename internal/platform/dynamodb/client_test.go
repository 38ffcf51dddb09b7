package dynamodb

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Target string
	Body   map[string]any
}

type recorder struct {
	mu       sync.Mutex
	requests []capturedRequest
}

func (r *recorder) add(req capturedRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
}

func (r *recorder) all() []capturedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]capturedRequest(nil), r.requests...)
}

// testClient creates a Client backed by a test server speaking the DynamoDB
// JSON protocol. Every request is recorded; respond writes the reply.
func testClient(t *testing.T, respond func(w http.ResponseWriter, target string)) (*Client, *recorder) {
	t.Helper()

	captured := &recorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(data, &body)
		target := r.Header.Get("X-Amz-Target")
		captured.add(capturedRequest{Target: target, Body: body})

		w.Header().Set("Content-Type", "application/x-amz-json-1.0")
		respond(w, target)
	}))
	t.Cleanup(server.Close)

	db := dynamodb.New(dynamodb.Options{
		Region:           "us-east-1",
		BaseEndpoint:     aws.String(server.URL),
		Credentials:      credentials.NewStaticCredentialsProvider("test-key", "test-secret", ""),
		RetryMaxAttempts: 1,
	})
	return &Client{db: db, table: "splunkctl-locks"}, captured
}

func ok(w http.ResponseWriter, _ string) {
	_, _ = w.Write([]byte(`{}`))
}

func conditionFailed(w http.ResponseWriter, _ string) {
	w.WriteHeader(http.StatusBadRequest)
	_, _ = w.Write([]byte(`{"__type":"com.amazonaws.dynamodb.v20120810#ConditionalCheckFailedException","message":"The conditional request failed"}`))
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	client, err := NewClient(context.Background(), "locks", Options{Region: "us-east-1", Endpoint: "http://localhost:8000"})
	require.NoError(t, err)
	assert.Equal(t, "locks", client.Table())
}

func TestAcquireLock_Success(t *testing.T) {
	t.Parallel()

	client, captured := testClient(t, ok)
	now := time.Unix(1700000000, 0)

	err := client.AcquireLock(context.Background(), LockItem{
		LockID:    "splunkctl/prod",
		LeaseID:   "lease-1",
		Owner:     "ops-laptop:42",
		ExpiresAt: now.Add(15 * time.Minute).Unix(),
	}, now)
	require.NoError(t, err)

	require.Len(t, captured.all(), 1)
	req := captured.all()[0]
	assert.Equal(t, "DynamoDB_20120810.PutItem", req.Target)
	assert.Equal(t, "splunkctl-locks", req.Body["TableName"])
	assert.Equal(t, "attribute_not_exists(#id) OR #exp < :now", req.Body["ConditionExpression"])

	item := req.Body["Item"].(map[string]any)
	assert.Equal(t, map[string]any{"S": "splunkctl/prod"}, item["LockID"])
	assert.Equal(t, map[string]any{"S": "lease-1"}, item["lease_id"])
	assert.Equal(t, map[string]any{"N": "1700000900"}, item["expires_at"])

	values := req.Body["ExpressionAttributeValues"].(map[string]any)
	assert.Equal(t, map[string]any{"N": "1700000000"}, values[":now"])
}

func TestAcquireLock_Held(t *testing.T) {
	t.Parallel()

	client, _ := testClient(t, conditionFailed)

	err := client.AcquireLock(context.Background(), LockItem{LockID: "splunkctl/prod", LeaseID: "lease-2"}, time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConditionFailed)
}

func TestAcquireLock_OtherError(t *testing.T) {
	t.Parallel()

	client, _ := testClient(t, func(w http.ResponseWriter, _ string) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"__type":"com.amazonaws.dynamodb.v20120810#ResourceNotFoundException","message":"Requested resource not found"}`))
	})

	err := client.AcquireLock(context.Background(), LockItem{LockID: "splunkctl/prod"}, time.Now())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConditionFailed)
	assert.Contains(t, err.Error(), "failed to acquire lock splunkctl/prod in table splunkctl-locks")
}

func TestRenewLock(t *testing.T) {
	t.Parallel()

	client, captured := testClient(t, ok)

	err := client.RenewLock(context.Background(), LockItem{LockID: "splunkctl/prod", LeaseID: "lease-1", ExpiresAt: 1700001000})
	require.NoError(t, err)

	req := captured.all()[0]
	assert.Equal(t, "DynamoDB_20120810.UpdateItem", req.Target)
	assert.Equal(t, "#lease = :lease", req.Body["ConditionExpression"])
	values := req.Body["ExpressionAttributeValues"].(map[string]any)
	assert.Equal(t, map[string]any{"S": "lease-1"}, values[":lease"])
	assert.Equal(t, map[string]any{"N": "1700001000"}, values[":exp"])
}

func TestRenewLock_Lost(t *testing.T) {
	t.Parallel()

	client, _ := testClient(t, conditionFailed)
	err := client.RenewLock(context.Background(), LockItem{LockID: "splunkctl/prod", LeaseID: "stale"})
	assert.ErrorIs(t, err, ErrConditionFailed)
}

func TestDeleteLock(t *testing.T) {
	t.Parallel()

	client, captured := testClient(t, ok)
	require.NoError(t, client.DeleteLock(context.Background(), "splunkctl/prod", "lease-1"))

	req := captured.all()[0]
	assert.Equal(t, "DynamoDB_20120810.DeleteItem", req.Target)
	assert.Equal(t, "#lease = :lease", req.Body["ConditionExpression"])
	assert.Equal(t, map[string]any{"LockID": map[string]any{"S": "splunkctl/prod"}}, req.Body["Key"])
}

func TestForceDeleteLock_Unconditional(t *testing.T) {
	t.Parallel()

	client, captured := testClient(t, ok)
	require.NoError(t, client.ForceDeleteLock(context.Background(), "splunkctl/prod"))

	req := captured.all()[0]
	assert.Equal(t, "DynamoDB_20120810.DeleteItem", req.Target)
	assert.NotContains(t, req.Body, "ConditionExpression")
}

func TestGetLock(t *testing.T) {
	t.Parallel()

	client, captured := testClient(t, func(w http.ResponseWriter, _ string) {
		_, _ = w.Write([]byte(`{"Item":{"LockID":{"S":"splunkctl/prod"},"lease_id":{"S":"lease-1"},"owner":{"S":"ci-runner:7"},"expires_at":{"N":"1700000900"}}}`))
	})

	item, err := client.GetLock(context.Background(), "splunkctl/prod")
	require.NoError(t, err)
	assert.Equal(t, "lease-1", item.LeaseID)
	assert.Equal(t, "ci-runner:7", item.Owner)
	assert.Equal(t, time.Unix(1700000900, 0), item.Expiry())
	assert.Equal(t, true, captured.all()[0].Body["ConsistentRead"])
}

func TestGetLock_NotFound(t *testing.T) {
	t.Parallel()

	client, _ := testClient(t, ok)
	_, err := client.GetLock(context.Background(), "splunkctl/none")
	assert.ErrorIs(t, err, ErrNotFound)
}
