// Package ssh provides an SSH client for executing commands on cluster nodes.
//
// Freshly launched instances accept connections only after cloud-init has
// started sshd, so the client retries the dial with exponential backoff.
// Commands report stdout, stderr and the exit code separately; a non-zero
// exit is a result, not a transport error.
package ssh
