package ec2

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
)

// ErrNotFound is returned when an instance does not exist.
var ErrNotFound = errors.New("instance not found")

// Instance states as reported by EC2.
const (
	StatePending      = "pending"
	StateRunning      = "running"
	StateShuttingDown = "shutting-down"
	StateTerminated   = "terminated"
	StateStopping     = "stopping"
	StateStopped      = "stopped"
)

// DefaultRootDevice is the root device name of Amazon Linux and RHEL images.
const DefaultRootDevice = "/dev/xvda"

// Instance is the subset of an EC2 instance the orchestrator tracks.
type Instance struct {
	ID         string
	State      string
	PrivateIP  string
	PublicIP   string
	LaunchTime time.Time
	Tags       map[string]string
}

// Live reports whether the instance is, or is about to be, running.
func (i *Instance) Live() bool {
	return i.State == StatePending || i.State == StateRunning
}

// Gone reports whether the instance can never run again.
func (i *Instance) Gone() bool {
	return i.State == StateShuttingDown || i.State == StateTerminated
}

// LaunchInput describes one instance to launch.
type LaunchInput struct {
	ImageID            string
	InstanceType       string
	SubnetID           string
	SecurityGroupIDs   []string
	KeyName            string
	IAMInstanceProfile string
	AssociatePublicIP  bool
	RootVolumeGiB      int32
	RootDevice         string
	Tags               map[string]string
	// ClientToken makes retries of the same launch idempotent.
	ClientToken string
}

// Client wraps the EC2 API.
type Client struct {
	ec2 *ec2.Client
}

// Options configures NewClient.
type Options struct {
	Region   string
	Profile  string
	Endpoint string
}

// NewClient creates an EC2 client using the default AWS credential chain.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(opts.Profile))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := ec2.NewFromConfig(cfg, func(o *ec2.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})
	return &Client{ec2: client}, nil
}

// RunInstance launches a single tagged instance.
func (c *Client) RunInstance(ctx context.Context, in LaunchInput) (*Instance, error) {
	input := &ec2.RunInstancesInput{
		ImageId:      aws.String(in.ImageID),
		InstanceType: types.InstanceType(in.InstanceType),
		MinCount:     aws.Int32(1),
		MaxCount:     aws.Int32(1),
		TagSpecifications: []types.TagSpecification{
			{ResourceType: types.ResourceTypeInstance, Tags: toTags(in.Tags)},
			{ResourceType: types.ResourceTypeVolume, Tags: toTags(in.Tags)},
		},
	}
	if in.ClientToken != "" {
		input.ClientToken = aws.String(in.ClientToken)
	}
	if in.KeyName != "" {
		input.KeyName = aws.String(in.KeyName)
	}
	if in.IAMInstanceProfile != "" {
		input.IamInstanceProfile = &types.IamInstanceProfileSpecification{Name: aws.String(in.IAMInstanceProfile)}
	}

	// A public address can only be requested on an explicit network interface.
	if in.AssociatePublicIP {
		input.NetworkInterfaces = []types.InstanceNetworkInterfaceSpecification{{
			DeviceIndex:              aws.Int32(0),
			SubnetId:                 aws.String(in.SubnetID),
			Groups:                   in.SecurityGroupIDs,
			AssociatePublicIpAddress: aws.Bool(true),
			DeleteOnTermination:      aws.Bool(true),
		}}
	} else {
		input.SubnetId = aws.String(in.SubnetID)
		input.SecurityGroupIds = in.SecurityGroupIDs
	}

	if in.RootVolumeGiB > 0 {
		device := in.RootDevice
		if device == "" {
			device = DefaultRootDevice
		}
		input.BlockDeviceMappings = []types.BlockDeviceMapping{{
			DeviceName: aws.String(device),
			Ebs: &types.EbsBlockDevice{
				VolumeSize:          aws.Int32(in.RootVolumeGiB),
				VolumeType:          types.VolumeTypeGp3,
				DeleteOnTermination: aws.Bool(true),
			},
		}}
	}

	out, err := c.ec2.RunInstances(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to run instance: %w", err)
	}
	if len(out.Instances) == 0 {
		return nil, fmt.Errorf("run instances returned no instance")
	}
	return fromEC2(out.Instances[0]), nil
}

// DescribeInstance returns one instance by id.
func (c *Client) DescribeInstance(ctx context.Context, id string) (*Instance, error) {
	out, err := c.ec2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{id},
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("instance %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to describe instance %s: %w", id, err)
	}

	for _, r := range out.Reservations {
		for _, inst := range r.Instances {
			if aws.ToString(inst.InstanceId) == id {
				return fromEC2(inst), nil
			}
		}
	}
	return nil, fmt.Errorf("instance %s: %w", id, ErrNotFound)
}

// FindInstances returns the live or stopped instances carrying every tag,
// newest first.
func (c *Client) FindInstances(ctx context.Context, tags map[string]string) ([]*Instance, error) {
	filters := []types.Filter{{
		Name:   aws.String("instance-state-name"),
		Values: []string{StatePending, StateRunning, StateStopping, StateStopped},
	}}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		filters = append(filters, types.Filter{
			Name:   aws.String("tag:" + k),
			Values: []string{tags[k]},
		})
	}

	var found []*Instance
	paginator := ec2.NewDescribeInstancesPaginator(c.ec2, &ec2.DescribeInstancesInput{Filters: filters})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to find instances: %w", err)
		}
		for _, r := range page.Reservations {
			for _, inst := range r.Instances {
				found = append(found, fromEC2(inst))
			}
		}
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].LaunchTime.After(found[j].LaunchTime) })
	return found, nil
}

// CreateTags sets tags on a resource, overwriting existing values.
func (c *Client) CreateTags(ctx context.Context, id string, tags map[string]string) error {
	_, err := c.ec2.CreateTags(ctx, &ec2.CreateTagsInput{
		Resources: []string{id},
		Tags:      toTags(tags),
	})
	if err != nil {
		return fmt.Errorf("failed to tag %s: %w", id, err)
	}
	return nil
}

func fromEC2(inst types.Instance) *Instance {
	out := &Instance{
		ID:         aws.ToString(inst.InstanceId),
		PrivateIP:  aws.ToString(inst.PrivateIpAddress),
		PublicIP:   aws.ToString(inst.PublicIpAddress),
		LaunchTime: aws.ToTime(inst.LaunchTime),
		Tags:       make(map[string]string, len(inst.Tags)),
	}
	if inst.State != nil {
		out.State = string(inst.State.Name)
	}
	for _, t := range inst.Tags {
		out.Tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return out
}

// toTags converts a map to EC2 tags sorted by key.
func toTags(tags map[string]string) []types.Tag {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]types.Tag, 0, len(keys))
	for _, k := range keys {
		out = append(out, types.Tag{Key: aws.String(k), Value: aws.String(tags[k])})
	}
	return out
}

// isNotFoundError checks if the error reports an unknown instance id.
func isNotFoundError(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "InvalidInstanceID.NotFound", "InvalidInstanceID.Malformed":
			return true
		}
	}
	return false
}

// IsThrottle reports whether err is an API rate limit that is worth retrying.
func IsThrottle(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "RequestLimitExceeded", "Throttling", "ThrottlingException":
			return true
		}
	}
	return false
}

// IsTransient reports whether err is worth retrying: throttling, a server
// side fault or a network failure. Client errors such as bad parameters or
// missing permissions are not.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrNotFound) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if IsThrottle(err) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "InternalError", "InternalFailure", "ServiceUnavailable", "Unavailable":
			return true
		}
		if apiErr.ErrorFault() == smithy.FaultServer {
			return true
		}
	}
	var statusErr interface{ HTTPStatusCode() int }
	if errors.As(err, &statusErr) && statusErr.HTTPStatusCode() >= 500 {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
