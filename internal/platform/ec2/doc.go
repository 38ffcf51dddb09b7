// Package ec2 is the compute backend: it launches, describes, finds and tags
// the instances that back cluster nodes.
package ec2
