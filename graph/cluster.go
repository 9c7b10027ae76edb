package graph

import "sort"

const bridgeWeight = 0.1

// Caps bounds the size of a rendered graph.
type Caps struct {
	MaxNodes        int
	MaxEdgesPerNode int
}

// DefaultCaps are the presentation limits used by the graph endpoint.
func DefaultCaps() Caps {
	return Caps{MaxNodes: 80, MaxEdgesPerNode: 6}
}

// Edge is one undirected edge of the visual graph. Bridge edges are synthetic
// connectors added between components; they keep a force layout cohesive but
// carry no semantic meaning and are excluded from neighbor queries and from
// rendered weight.
type Edge struct {
	Source uint64  `json:"source"`
	Target uint64  `json:"target"`
	Weight float64 `json:"weight"`
	Bridge bool    `json:"bridge,omitempty"`
}

// VisualGraph is the presentation-safe subset of a user's graph.
type VisualGraph struct {
	Nodes []KnowledgeNode `json:"nodes"`
	Edges []Edge          `json:"edges"`
}

// Neighbors returns the ids connected to the given node through real edges.
// Bridge edges never appear in the result.
func (g *VisualGraph) Neighbors(id uint64) []uint64 {
	if g == nil {
		return nil
	}
	var neighbors []uint64
	for _, edge := range g.Edges {
		if edge.Bridge {
			continue
		}
		switch id {
		case edge.Source:
			neighbors = append(neighbors, edge.Target)
		case edge.Target:
			neighbors = append(neighbors, edge.Source)
		}
	}
	sort.Slice(neighbors, func(i, j int) bool { return neighbors[i] < neighbors[j] })
	return neighbors
}

// ComputeVisualGraph reduces a full node and edge set to one that is safe to
// render: at most caps.MaxNodes nodes, at most caps.MaxEdgesPerNode real
// edges per node, and exactly one synthetic bridge edge per disconnected
// component beyond the largest so the layout stays in one piece.
func ComputeVisualGraph(nodes []KnowledgeNode, edges []Edge, caps Caps) VisualGraph {
	if caps.MaxNodes <= 0 {
		caps.MaxNodes = DefaultCaps().MaxNodes
	}
	if caps.MaxEdgesPerNode <= 0 {
		caps.MaxEdgesPerNode = DefaultCaps().MaxEdgesPerNode
	}

	kept := selectNodes(nodes, caps.MaxNodes)
	keptIDs := make(map[uint64]struct{}, len(kept))
	for _, node := range kept {
		keptIDs[node.ID] = struct{}{}
	}

	admitted := admitEdges(edges, keptIDs, caps.MaxEdgesPerNode)
	bridges := bridgeComponents(kept, admitted)

	return VisualGraph{Nodes: kept, Edges: append(admitted, bridges...)}
}

// selectNodes keeps every specifically typed node first, then fills the
// remaining capacity with the strongest generic entity nodes.
func selectNodes(nodes []KnowledgeNode, maxNodes int) []KnowledgeNode {
	specific := make([]KnowledgeNode, 0, len(nodes))
	generic := make([]KnowledgeNode, 0, len(nodes))
	for _, node := range nodes {
		if node.Type == NodeTypeEntity {
			generic = append(generic, node)
		} else {
			specific = append(specific, node)
		}
	}

	kept := specific
	if len(kept) > maxNodes {
		kept = kept[:maxNodes]
	}

	sort.SliceStable(generic, func(i, j int) bool {
		return generic[i].Strength > generic[j].Strength
	})
	for _, node := range generic {
		if len(kept) == maxNodes {
			break
		}
		kept = append(kept, node)
	}
	return kept
}

// admitEdges admits edges weight-descending while both endpoints are kept,
// the edge is not a self-loop, and neither endpoint is saturated.
func admitEdges(edges []Edge, keptIDs map[uint64]struct{}, maxPerNode int) []Edge {
	candidates := make([]Edge, len(edges))
	copy(candidates, edges)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Weight > candidates[j].Weight
	})

	counts := make(map[uint64]int)
	admitted := make([]Edge, 0, len(candidates))
	for _, edge := range candidates {
		if edge.Source == edge.Target {
			continue
		}
		if _, ok := keptIDs[edge.Source]; !ok {
			continue
		}
		if _, ok := keptIDs[edge.Target]; !ok {
			continue
		}
		if counts[edge.Source] >= maxPerNode || counts[edge.Target] >= maxPerNode {
			continue
		}
		edge.Bridge = false
		admitted = append(admitted, edge)
		counts[edge.Source]++
		counts[edge.Target]++
	}
	return admitted
}

// bridgeComponents partitions the kept nodes into connected components over
// the admitted edges and returns one low-weight bridge edge per component
// beyond the largest, anchored at a node of the largest component.
func bridgeComponents(kept []KnowledgeNode, admitted []Edge) []Edge {
	if len(kept) == 0 {
		return nil
	}

	adjacency := make(map[uint64][]uint64, len(kept))
	for _, edge := range admitted {
		adjacency[edge.Source] = append(adjacency[edge.Source], edge.Target)
		adjacency[edge.Target] = append(adjacency[edge.Target], edge.Source)
	}

	visited := make(map[uint64]struct{}, len(kept))
	var components [][]uint64
	for _, node := range kept {
		if _, done := visited[node.ID]; done {
			continue
		}
		component := []uint64{node.ID}
		visited[node.ID] = struct{}{}
		for queue := []uint64{node.ID}; len(queue) > 0; {
			current := queue[0]
			queue = queue[1:]
			for _, neighbor := range adjacency[current] {
				if _, done := visited[neighbor]; done {
					continue
				}
				visited[neighbor] = struct{}{}
				component = append(component, neighbor)
				queue = append(queue, neighbor)
			}
		}
		components = append(components, component)
	}

	sort.SliceStable(components, func(i, j int) bool {
		return len(components[i]) > len(components[j])
	})

	if len(components) < 2 {
		return nil
	}

	anchor := components[0][0]
	bridges := make([]Edge, 0, len(components)-1)
	for _, component := range components[1:] {
		bridges = append(bridges, Edge{
			Source: anchor,
			Target: component[0],
			Weight: bridgeWeight,
			Bridge: true,
		})
	}
	return bridges
}
