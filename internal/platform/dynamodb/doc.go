// Package dynamodb provides the lock table client used to lease a cluster.
//
// Each lock is one item keyed by LockID. Writes are conditional so that only
// an absent or expired lock can be taken, and only its holder can renew or
// delete it.
package dynamodb
