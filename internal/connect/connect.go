// Package connect builds the same-name road connectivity graph and its
// transitive closure. Roads that share a name and touch end-to-end are
// treated as one logical street by the nearest-crossing search.
package connect

import (
	"sort"

	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/safestreets/crossing-cli/internal/geomath"
	"github.com/safestreets/crossing-cli/internal/model"
	"github.com/safestreets/crossing-cli/internal/segment"
)

// Edge is a directed connection between two same-named roads whose
// endpoints coincide exactly.
type Edge struct {
	FromRoadID int64
	ToRoadID   int64
}

// Graph holds the connectivity edges and the closed component
// membership for every road.
type Graph struct {
	Edges []Edge
	// members maps a road to the sorted set of roads reachable from it,
	// itself included.
	members map[int64][]int64
}

// Members returns the connected-component membership for a road.
// Every road is reflexively a member of its own component, including
// roads that never entered the name graph.
func (g *Graph) Members(roadID int64) []int64 {
	if m, ok := g.members[roadID]; ok {
		return m
	}
	return []int64{roadID}
}

type endpoints struct {
	id         int64
	start, end geom.Coord
}

// Build constructs the same-name connectivity graph over roads. Only
// roads with a non-empty name and a geometry reducible to a single line
// participate; multi-part roads have no well-defined endpoints and are
// excluded. Closure is an iterative BFS with a visited set, so cyclic
// name graphs terminate and diamond shapes yield de-duplicated
// membership.
func Build(roads []model.Road) *Graph {
	byName := make(map[string][]endpoints)
	for _, road := range roads {
		if road.Name == "" {
			continue
		}
		parts := segment.LineParts(road.Geometry)
		if len(parts) != 1 {
			continue
		}
		start, end := geomath.Endpoints(parts[0])
		byName[road.Name] = append(byName[road.Name], endpoints{id: road.ID, start: start, end: end})
	}

	g := &Graph{members: make(map[int64][]int64)}
	successors := make(map[int64][]int64)
	for _, group := range byName {
		for _, a := range group {
			for _, b := range group {
				if a.id == b.id {
					continue
				}
				if geomath.EqualXY(a.end, b.start) || geomath.EqualXY(a.start, b.end) {
					g.Edges = append(g.Edges, Edge{FromRoadID: a.id, ToRoadID: b.id})
					successors[a.id] = append(successors[a.id], b.id)
				}
			}
		}
	}

	sort.Slice(g.Edges, func(i, j int) bool {
		if g.Edges[i].FromRoadID != g.Edges[j].FromRoadID {
			return g.Edges[i].FromRoadID < g.Edges[j].FromRoadID
		}
		return g.Edges[i].ToRoadID < g.Edges[j].ToRoadID
	})

	for start := range successors {
		visited := map[int64]bool{start: true}
		queue := []int64{start}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, next := range successors[cur] {
				if visited[next] {
					continue
				}
				visited[next] = true
				queue = append(queue, next)
			}
		}
		members := make([]int64, 0, len(visited))
		for id := range visited {
			members = append(members, id)
		}
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
		g.members[start] = members
	}

	zap.L().Debug("connectivity graph built",
		zap.Int("named_groups", len(byName)),
		zap.Int("edges", len(g.Edges)),
		zap.Int("components", len(g.members)),
	)
	return g
}
