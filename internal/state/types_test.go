package state

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/imamik/splunkctl/internal/config"
)

func TestNode_Address(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "10.0.0.4", (&Node{PrivateAddress: "10.0.0.4", PublicAddress: "3.3.3.3"}).Address())
	assert.Equal(t, "3.3.3.3", (&Node{PublicAddress: "3.3.3.3"}).Address())
	assert.Empty(t, (&Node{}).Address())
}

func TestClusterState_CloneIsDeep(t *testing.T) {
	t.Parallel()

	st := New("prod")
	st.Put(&Node{Name: "prod-clustermaster-0", Status: StatusReady})

	clone := st.Clone()
	clone.Nodes["prod-clustermaster-0"].Status = StatusFailed

	assert.Equal(t, StatusReady, st.Nodes["prod-clustermaster-0"].Status)
}

func TestClusterState_PutAndGetCopy(t *testing.T) {
	t.Parallel()

	st := &ClusterState{ClusterName: "prod"}
	n := &Node{Name: "prod-indexer-0", Status: StatusPending}
	st.Put(n)
	n.Status = StatusFailed

	got, ok := st.Get("prod-indexer-0")
	assert.True(t, ok)
	assert.Equal(t, StatusPending, got.Status)

	_, ok = st.Get("prod-indexer-9")
	assert.False(t, ok)
}

func TestClusterState_NamesAndByRole(t *testing.T) {
	t.Parallel()

	st := New("prod")
	st.Put(&Node{Name: "prod-indexer-1", Role: config.RoleIndexer, Ordinal: 1})
	st.Put(&Node{Name: "prod-clustermaster-0", Role: config.RoleClusterMaster})
	st.Put(&Node{Name: "prod-indexer-0", Role: config.RoleIndexer, Ordinal: 0})

	assert.Equal(t, []string{"prod-clustermaster-0", "prod-indexer-0", "prod-indexer-1"}, st.Names())

	idx := st.ByRole(config.RoleIndexer)
	assert.Len(t, idx, 2)
	assert.Equal(t, "prod-indexer-0", idx[0].Name)
	assert.Equal(t, "prod-indexer-1", idx[1].Name)
	assert.Empty(t, st.ByRole(config.RoleSearchHead))
}

func TestStatus_Terminal(t *testing.T) {
	t.Parallel()

	for _, s := range Statuses() {
		assert.Equal(t, s == StatusReady || s == StatusFailed, s.Terminal(), s)
	}
}
