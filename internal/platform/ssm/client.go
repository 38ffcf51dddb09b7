// Package ssm runs shell commands on EC2 instances through AWS Systems Manager.
package ssm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/imamik/splunkctl/internal/util/retry"
)

const (
	// DocumentName is the SSM document used for every command.
	DocumentName = "AWS-RunShellScript"

	defaultPollInterval = 5 * time.Second
	defaultAgentTimeout = 5 * time.Minute
	maxAgentPollDelay   = 30 * time.Second
	cancelTimeout       = 10 * time.Second
)

// ErrAgentOffline is returned when the SSM agent of an instance does not
// report online within the agent timeout.
var ErrAgentOffline = errors.New("ssm agent not online")

// Result holds the outcome of a command invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Client sends commands and waits for their invocation result.
type Client struct {
	ssm          *ssm.Client
	pollInterval time.Duration
	agentTimeout time.Duration

	// online caches instances whose agent was seen online.
	online sync.Map
}

// Options configures NewClient.
type Options struct {
	Region       string
	Profile      string
	Endpoint     string
	PollInterval time.Duration
	AgentTimeout time.Duration
}

// NewClient creates a client using the default AWS credential chain.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(opts.Profile))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	api := ssm.NewFromConfig(cfg, func(o *ssm.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})
	return newClient(api, opts.PollInterval, opts.AgentTimeout), nil
}

func newClient(api *ssm.Client, poll, agentTimeout time.Duration) *Client {
	if poll <= 0 {
		poll = defaultPollInterval
	}
	if agentTimeout <= 0 {
		agentTimeout = defaultAgentTimeout
	}
	return &Client{ssm: api, pollInterval: poll, agentTimeout: agentTimeout}
}

// WaitOnline blocks until the SSM agent of instanceID reports online. A
// freshly launched instance registers with Systems Manager only once its
// agent has started, and commands sent before that are rejected.
func (c *Client) WaitOnline(ctx context.Context, instanceID string) error {
	if _, ok := c.online.Load(instanceID); ok {
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.agentTimeout)
	defer cancel()

	err := retry.WithExponentialBackoff(waitCtx, func() error {
		return c.pingStatus(waitCtx, instanceID)
	},
		retry.WithMaxRetries(math.MaxInt),
		retry.WithInitialDelay(c.pollInterval),
		retry.WithMaxDelay(max(c.pollInterval, maxAgentPollDelay)),
		retry.WithRetryIf(func(err error) bool { return errors.Is(err, ErrAgentOffline) }),
	)
	switch {
	case err == nil:
		c.online.Store(instanceID, struct{}{})
		return nil
	case ctx.Err() != nil:
		return fmt.Errorf("waiting for ssm agent on %s: %w", instanceID, ctx.Err())
	case waitCtx.Err() != nil:
		return fmt.Errorf("%w: %s not online after %v", ErrAgentOffline, instanceID, c.agentTimeout)
	default:
		return err
	}
}

func (c *Client) pingStatus(ctx context.Context, instanceID string) error {
	out, err := c.ssm.DescribeInstanceInformation(ctx, &ssm.DescribeInstanceInformationInput{
		Filters: []types.InstanceInformationStringFilter{
			{Key: aws.String("InstanceIds"), Values: []string{instanceID}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to describe ssm agent of %s: %w", instanceID, err)
	}
	for _, info := range out.InstanceInformationList {
		if aws.ToString(info.InstanceId) != instanceID {
			continue
		}
		if info.PingStatus == types.PingStatusOnline {
			return nil
		}
		return fmt.Errorf("%w: %s is %s", ErrAgentOffline, instanceID, info.PingStatus)
	}
	return fmt.Errorf("%w: %s is not registered", ErrAgentOffline, instanceID)
}

// Run waits for the agent of instanceID to be online, executes command and
// blocks until the invocation finishes. A script that exits non-zero yields a
// Result with that ExitCode and a nil error. When ctx ends first the command
// is cancelled on the instance.
func (c *Client) Run(ctx context.Context, instanceID, command string) (*Result, error) {
	if err := c.WaitOnline(ctx, instanceID); err != nil {
		return nil, err
	}
	sent, err := c.ssm.SendCommand(ctx, &ssm.SendCommandInput{
		DocumentName: aws.String(DocumentName),
		InstanceIds:  []string{instanceID},
		Parameters:   map[string][]string{"commands": {command}},
		Comment:      aws.String("splunkctl"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send command to %s: %w", instanceID, err)
	}
	if sent.Command == nil || sent.Command.CommandId == nil {
		return nil, fmt.Errorf("send command to %s returned no command id", instanceID)
	}
	commandID := *sent.Command.CommandId

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		result, done, err := c.poll(ctx, commandID, instanceID)
		if err != nil || done {
			return result, err
		}

		select {
		case <-ctx.Done():
			c.cancel(ctx, commandID, instanceID)
			return nil, fmt.Errorf("command %s aborted on %s: %w", commandID, instanceID, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) poll(ctx context.Context, commandID, instanceID string) (*Result, bool, error) {
	out, err := c.ssm.GetCommandInvocation(ctx, &ssm.GetCommandInvocationInput{
		CommandId:  aws.String(commandID),
		InstanceId: aws.String(instanceID),
	})
	if err != nil {
		// The invocation is registered asynchronously after SendCommand.
		var notYet *types.InvocationDoesNotExist
		if errors.As(err, &notYet) {
			return nil, false, nil
		}
		if ctx.Err() != nil {
			return nil, false, nil
		}
		return nil, true, fmt.Errorf("failed to get invocation of %s on %s: %w", commandID, instanceID, err)
	}

	switch out.Status {
	case types.CommandInvocationStatusSuccess, types.CommandInvocationStatusFailed:
		return &Result{
			Stdout:   aws.ToString(out.StandardOutputContent),
			Stderr:   aws.ToString(out.StandardErrorContent),
			ExitCode: int(out.ResponseCode),
		}, true, nil
	case types.CommandInvocationStatusCancelled, types.CommandInvocationStatusTimedOut:
		return nil, true, fmt.Errorf("command %s on %s ended with status %s: %s",
			commandID, instanceID, out.Status, aws.ToString(out.StatusDetails))
	default:
		return nil, false, nil
	}
}

func (c *Client) cancel(ctx context.Context, commandID, instanceID string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelTimeout)
	defer cancel()
	_, _ = c.ssm.CancelCommand(cctx, &ssm.CancelCommandInput{
		CommandId:   aws.String(commandID),
		InstanceIds: []string{instanceID},
	})
}
