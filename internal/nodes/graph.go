package nodes

import (
	"fmt"
	"slices"

	"github.com/imamik/splunkctl/internal/config"
)

// Prerequisites maps each role to the roles whose nodes must be ready first.
// Every non-master role needs the master address; search heads also query
// the indexer tier.
var Prerequisites = map[config.Role][]config.Role{
	config.RoleClusterMaster: nil,
	config.RoleDeployer:      {config.RoleClusterMaster},
	config.RoleIndexer:       {config.RoleClusterMaster},
	config.RoleSearchHead:    {config.RoleClusterMaster, config.RoleIndexer},
}

// RoleOrder returns all roles topologically sorted over Prerequisites. Ties
// are broken by the canonical order of config.Roles.
func RoleOrder() []config.Role {
	order, err := topoSort(config.Roles(), Prerequisites)
	if err != nil {
		// Prerequisites is a static acyclic graph.
		panic(err)
	}
	return order
}

// topoSort is Kahn's algorithm picking the earliest ready role in canonical
// order at every step.
func topoSort(canonical []config.Role, prereqs map[config.Role][]config.Role) ([]config.Role, error) {
	placed := make(map[config.Role]bool, len(canonical))
	order := make([]config.Role, 0, len(canonical))

	for len(order) < len(canonical) {
		progressed := false
		for _, role := range canonical {
			if placed[role] {
				continue
			}
			ready := true
			for _, dep := range prereqs[role] {
				if !placed[dep] {
					ready = false
					break
				}
			}
			if ready {
				placed[role] = true
				order = append(order, role)
				progressed = true
				break
			}
		}
		if !progressed {
			var stuck []config.Role
			for _, role := range canonical {
				if !placed[role] {
					stuck = append(stuck, role)
				}
			}
			return nil, fmt.Errorf("role dependency cycle among %v", stuck)
		}
	}
	return order, nil
}

// DependsOn reports whether role needs dep, directly or transitively.
func DependsOn(role, dep config.Role) bool {
	seen := map[config.Role]bool{}
	stack := slices.Clone(Prerequisites[role])
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == dep {
			return true
		}
		if seen[cur] {
			continue
		}
		seen[cur] = true
		stack = append(stack, Prerequisites[cur]...)
	}
	return false
}
