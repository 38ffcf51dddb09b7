// Package async provides utilities for parallel task execution with
// error collection.
//
// [RunParallel] executes the tasks of one provisioning tier concurrently and
// waits for every task, so a failing node never abandons its siblings
// mid-flight.
package async
