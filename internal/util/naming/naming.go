package naming

import (
	"fmt"
	"path"
	"strings"
)

// Node returns the name of the ordinal-th node of a role, e.g. "prod-indexer-2".
func Node(cluster, role string, ordinal int) string {
	return fmt.Sprintf("%s-%s-%d", cluster, role, ordinal)
}

// StateKey returns the object key holding a cluster's state document.
func StateKey(prefix, cluster string) string {
	return path.Join(strings.Trim(prefix, "/"), cluster, "state.json")
}

// LockID returns the lock table key guarding a cluster's state.
func LockID(cluster string) string {
	return fmt.Sprintf("splunkctl/%s", cluster)
}
