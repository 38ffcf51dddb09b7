// Package s3 provides the object storage client backing the cluster state document.
//
// Reads return the object's ETag alongside its body so callers can issue
// conditional writes (If-Match / If-None-Match) and detect concurrent writers.
package s3
