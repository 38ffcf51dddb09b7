// Package retry provides exponential backoff retry logic for transient failures.
//
// [WithExponentialBackoff] retries an operation with a bounded number of
// attempts and a capped delay. It is used for AWS read and poll calls where
// throttling or eventual consistency produce short-lived errors. Errors wrapped
// with [Fatal] stop the loop immediately.
package retry
