package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClient creates a Client backed by a test HTTP server.
// The handler receives real S3 XML-protocol requests.
func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := s3.New(s3.Options{
		Region:       "us-east-1",
		BaseEndpoint: aws.String(server.URL),
		UsePathStyle: true,
		Credentials:  credentials.NewStaticCredentialsProvider("test-key", "test-secret", ""),
	})

	return &Client{s3: client, bucket: "state-bucket"}
}

// xmlResponse is a helper to write S3-style XML responses.
func xmlResponse(w http.ResponseWriter, statusCode int, body string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(statusCode)
	_, _ = w.Write([]byte(body))
}

func errorBody(code string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>%s</Code><Message>%s</Message></Error>`, code, code)
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	client, err := NewClient(context.Background(), "bucket", Options{Region: "us-east-1", Endpoint: "http://localhost:9000"})
	require.NoError(t, err)
	assert.Equal(t, "bucket", client.Bucket())
}

func TestGetObject_Success(t *testing.T) {
	t.Parallel()

	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/state-bucket/splunkctl/prod/state.json", r.URL.Path)
		w.Header().Set("ETag", `"abc123"`)
		_, _ = w.Write([]byte(`{"version":3}`))
	}))

	obj, err := client.GetObject(context.Background(), "splunkctl/prod/state.json")
	require.NoError(t, err)
	assert.Equal(t, `{"version":3}`, string(obj.Data))
	assert.Equal(t, `"abc123"`, obj.ETag)
}

func TestGetObject_NotFound(t *testing.T) {
	t.Parallel()

	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		xmlResponse(w, http.StatusNotFound, errorBody("NoSuchKey"))
	}))

	_, err := client.GetObject(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetObject_OtherError(t *testing.T) {
	t.Parallel()

	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		xmlResponse(w, http.StatusForbidden, errorBody("AccessDenied"))
	}))

	_, err := client.GetObject(context.Background(), "key")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "failed to get object key from bucket state-bucket")
}

func TestPutObject_Conditions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		opts            PutOptions
		wantIfMatch     string
		wantIfNoneMatch string
	}{
		{name: "unconditional"},
		{name: "if match", opts: PutOptions{IfMatch: `"v1"`}, wantIfMatch: `"v1"`},
		{name: "if none match", opts: PutOptions{IfNoneMatch: "*"}, wantIfNoneMatch: "*"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			bodies := make(chan string, 1)
			client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPut, r.Method)
				assert.Equal(t, tt.wantIfMatch, r.Header.Get("If-Match"))
				assert.Equal(t, tt.wantIfNoneMatch, r.Header.Get("If-None-Match"))
				data, _ := io.ReadAll(r.Body)
				bodies <- string(data)
				w.Header().Set("ETag", `"v2"`)
				w.WriteHeader(http.StatusOK)
			}))

			etag, err := client.PutObject(context.Background(), "key", []byte("payload"), tt.opts)
			require.NoError(t, err)
			assert.Equal(t, `"v2"`, etag)
			assert.Equal(t, "payload", <-bodies)
		})
	}
}

func TestPutObject_PreconditionFailed(t *testing.T) {
	t.Parallel()

	for _, code := range []struct {
		status int
		code   string
	}{
		{http.StatusPreconditionFailed, "PreconditionFailed"},
		{http.StatusConflict, "ConditionalRequestConflict"},
	} {
		t.Run(code.code, func(t *testing.T) {
			t.Parallel()

			client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				xmlResponse(w, code.status, errorBody(code.code))
			}))

			_, err := client.PutObject(context.Background(), "key", []byte("x"), PutOptions{IfMatch: `"old"`})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrPreconditionFailed)
		})
	}
}

func TestBucketExists(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		want    bool
		wantErr bool
	}{
		{name: "exists", status: http.StatusOK, want: true},
		{name: "missing", status: http.StatusNotFound, want: false},
		{name: "forbidden", status: http.StatusForbidden, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodHead, r.Method)
				w.WriteHeader(tt.status)
			}))

			exists, err := client.BucketExists(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, exists)
		})
	}
}

func TestGetObject_MissingBucketIsNotAMissingObject(t *testing.T) {
	t.Parallel()

	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		xmlResponse(w, http.StatusNotFound, errorBody("NoSuchBucket"))
	}))

	_, err := client.GetObject(context.Background(), "splunkctl/prod/state.json")
	require.ErrorIs(t, err, ErrBucketNotFound)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "state-bucket")
}

func TestNotFoundClassification(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("outer: %w", &smithy.GenericAPIError{Code: "NoSuchKey"})
	assert.True(t, isNoSuchKey(wrapped))
	assert.False(t, isNoSuchKey(nil))
	assert.False(t, isNoSuchKey(errors.New("boom")))
	assert.False(t, isNoSuchKey(&smithy.GenericAPIError{Code: "AccessDenied"}))

	bucket := fmt.Errorf("outer: %w", &smithy.GenericAPIError{Code: "NoSuchBucket"})
	assert.True(t, isNoSuchBucket(bucket))
	assert.False(t, isNoSuchKey(bucket))
	assert.False(t, isNoSuchBucket(wrapped))
}
