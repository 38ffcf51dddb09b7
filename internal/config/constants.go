package config

import "time"

// DefaultConfigFile is looked up in the working directory when no path is given.
const DefaultConfigFile = "splunkctl.yaml"

// Defaults applied by the loader.
const (
	DefaultStateKeyPrefix   = "splunkctl"
	DefaultLockTable        = "splunkctl-locks"
	DefaultLeaseTTL         = 15 * time.Minute
	DefaultBootstrapCommand = "/opt/splunk-bootstrap/bootstrap.sh"
	DefaultCheckCommand     = "test -f /opt/splunk/etc/.splunkctl-joined"
	DefaultHealthCommand    = "/opt/splunk/bin/splunk status"
	DefaultSSHUser          = "ec2-user"
	DefaultSSHPort          = 22
)

// Executor names accepted by bootstrap.executor.
const (
	ExecutorSSH = "ssh"
	ExecutorSSM = "ssm"
)
