package ssh

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/imamik/splunkctl/internal/util/keygen"
)

// generateTestKey generates a test key pair for use in tests.
func generateTestKey(t *testing.T) *keygen.KeyPair {
	t.Helper()
	keyPair, err := keygen.GenerateEd25519KeyPair()
	require.NoError(t, err)
	return keyPair
}

type execHandler func(command string) (stdout, stderr string, exitCode uint32)

// startServer runs an in-process SSH server accepting only the given client key.
func startServer(t *testing.T, clientKey *keygen.KeyPair, handle execHandler) int {
	t.Helper()

	authorized, _, _, _, err := ssh.ParseAuthorizedKey(clientKey.PublicKey)
	require.NoError(t, err)

	hostKey := generateTestKey(t)
	hostSigner, err := ssh.ParsePrivateKey(hostKey.PrivateKey)
	require.NoError(t, err)

	cfg := &ssh.ServerConfig{
		PublicKeyCallback: func(_ ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if bytes.Equal(key.Marshal(), authorized.Marshal()) {
				return nil, nil
			}
			return nil, errors.New("unauthorized")
		},
	}
	cfg.AddHostKey(hostSigner)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveConn(conn, cfg, handle)
		}
	}()

	return ln.Addr().(*net.TCPAddr).Port
}

func serveConn(conn net.Conn, cfg *ssh.ServerConfig, handle execHandler) {
	_, chans, reqs, err := ssh.NewServerConn(conn, cfg)
	if err != nil {
		return
	}
	go ssh.DiscardRequests(reqs)

	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			_ = newCh.Reject(ssh.UnknownChannelType, "unsupported")
			continue
		}
		ch, requests, err := newCh.Accept()
		if err != nil {
			continue
		}
		go func() {
			defer ch.Close()
			for req := range requests {
				if req.Type != "exec" {
					_ = req.Reply(false, nil)
					continue
				}
				var payload struct{ Command string }
				_ = ssh.Unmarshal(req.Payload, &payload)
				_ = req.Reply(true, nil)

				stdout, stderr, code := handle(payload.Command)
				_, _ = io.WriteString(ch, stdout)
				_, _ = io.WriteString(ch.Stderr(), stderr)
				_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{code}))
				return
			}
		}()
	}
}

func TestNewClient_Validation(t *testing.T) {
	t.Parallel()
	keyPair := generateTestKey(t)

	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{name: "nil config", cfg: nil, wantErr: "config cannot be nil"},
		{name: "empty host", cfg: &Config{User: "ec2-user", PrivateKey: keyPair.PrivateKey}, wantErr: "config host cannot be empty"},
		{name: "empty user", cfg: &Config{Host: "10.0.0.1", PrivateKey: keyPair.PrivateKey}, wantErr: "config user cannot be empty"},
		{name: "empty key", cfg: &Config{Host: "10.0.0.1", User: "ec2-user"}, wantErr: "config private key cannot be empty"},
		{name: "invalid key", cfg: &Config{Host: "10.0.0.1", User: "ec2-user", PrivateKey: []byte("nope")}, wantErr: "failed to parse private key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewClient(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewClient_AppliesDefaultsWithoutMutatingInput(t *testing.T) {
	t.Parallel()
	keyPair := generateTestKey(t)

	cfg := &Config{Host: "10.0.0.1", User: "ec2-user", PrivateKey: keyPair.PrivateKey}
	client, err := NewClient(cfg)
	require.NoError(t, err)

	assert.Equal(t, defaultPort, client.config.Port)
	assert.Equal(t, defaultDialTimeout, client.config.DialTimeout)
	assert.Equal(t, defaultMaxRetries, client.config.MaxRetries)
	assert.Equal(t, defaultRetryDelay, client.config.RetryDelay)
	assert.NotNil(t, client.signer)

	assert.Zero(t, cfg.Port)
	assert.Zero(t, cfg.MaxRetries)
}

func TestRun_Success(t *testing.T) {
	t.Parallel()
	keyPair := generateTestKey(t)

	commands := make(chan string, 1)
	port := startServer(t, keyPair, func(command string) (string, string, uint32) {
		commands <- command
		return "splunkd is running\n", "", 0
	})

	client, err := NewClient(&Config{Host: "127.0.0.1", Port: port, User: "ec2-user", PrivateKey: keyPair.PrivateKey})
	require.NoError(t, err)

	result, err := client.Run(context.Background(), "/opt/splunk/bin/splunk status")
	require.NoError(t, err)
	assert.Equal(t, "/opt/splunk/bin/splunk status", <-commands)
	assert.Equal(t, "splunkd is running\n", result.Stdout)
	assert.Equal(t, 0, result.ExitCode)
}

func TestRun_NonZeroExitIsAResult(t *testing.T) {
	t.Parallel()
	keyPair := generateTestKey(t)

	port := startServer(t, keyPair, func(string) (string, string, uint32) {
		return "", "certificate not found\n", 3
	})

	client, err := NewClient(&Config{Host: "127.0.0.1", Port: port, User: "ec2-user", PrivateKey: keyPair.PrivateKey})
	require.NoError(t, err)

	result, err := client.Run(context.Background(), "bootstrap.sh")
	require.NoError(t, err)
	assert.Equal(t, 3, result.ExitCode)
	assert.Equal(t, "certificate not found\n", result.Stderr)
}

func TestRun_ContextTimeoutAbortsCommand(t *testing.T) {
	t.Parallel()
	keyPair := generateTestKey(t)

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	port := startServer(t, keyPair, func(string) (string, string, uint32) {
		<-release
		return "", "", 0
	})

	client, err := NewClient(&Config{Host: "127.0.0.1", Port: port, User: "ec2-user", PrivateKey: keyPair.PrivateKey})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	_, err = client.Run(ctx, "sleep 600")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRun_ConnectFailure(t *testing.T) {
	t.Parallel()
	keyPair := generateTestKey(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	client, err := NewClient(&Config{
		Host:        "127.0.0.1",
		Port:        port,
		User:        "ec2-user",
		PrivateKey:  keyPair.PrivateKey,
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  1,
		RetryDelay:  10 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = client.Run(context.Background(), "true")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to establish SSH connection")
}

func TestRun_CancelledContext(t *testing.T) {
	t.Parallel()
	keyPair := generateTestKey(t)

	client, err := NewClient(&Config{
		Host:        "192.0.2.1",
		User:        "ec2-user",
		PrivateKey:  keyPair.PrivateKey,
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  3,
		RetryDelay:  100 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = client.Run(ctx, "true")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
