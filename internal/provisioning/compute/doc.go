// Package compute allocates the EC2 instance behind each Splunk node.
//
// The driver is idempotent per node: a recorded instance id is reused while
// the instance lives, an untracked instance carrying the node's tags is
// adopted, and only when neither exists is a new instance launched. It then
// waits for the instance to run with an address.
package compute
