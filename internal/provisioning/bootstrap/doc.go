// Package bootstrap configures a running instance for its Splunk role.
//
// Every role runs the same node bootstrap script with four positional
// arguments (certificate, role, cluster, archival bucket) and the cluster
// master address in SPLUNK_CLUSTER_MASTER. A check command guards the script
// so that a node which already joined is left untouched. Commands reach the
// node through an Executor: SSH or AWS Systems Manager.
package bootstrap
