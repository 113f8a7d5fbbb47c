package brackets

import (
	"fmt"
	"sort"

	"github.com/Dosada05/league-engine/models"
)

// Graph is an id-keyed arena over a category's matches and edges. It owns
// copies of the matches; slot writes stay local until the caller persists
// Changed().
type Graph struct {
	matches   map[int]*models.Match
	routes    map[int][]*models.Edge
	roundNext map[int][]int
	changed   map[int]bool
}

func NewGraph(matches []*models.Match, edges []*models.Edge) *Graph {
	g := &Graph{
		matches:   make(map[int]*models.Match, len(matches)),
		routes:    make(map[int][]*models.Edge),
		roundNext: make(map[int][]int),
		changed:   make(map[int]bool),
	}
	for _, m := range matches {
		g.matches[m.ID] = m.Clone()
	}
	sorted := make([]*models.Edge, len(edges))
	copy(sorted, edges)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	for _, e := range sorted {
		switch {
		case e.IsMatchRouting():
			g.routes[e.SourceID] = append(g.routes[e.SourceID], e)
		case e.SourceType == models.NodeRound && e.TargetType == models.NodeRound && e.SourceHandle == models.HandleRoundOut:
			g.roundNext[e.SourceID] = append(g.roundNext[e.SourceID], e.TargetID)
		}
	}
	return g
}

func (g *Graph) Match(id int) *models.Match {
	return g.matches[id]
}

// Outgoing returns the winner/loser edges leaving a match, in edge order.
func (g *Graph) Outgoing(matchID int) []*models.Edge {
	return g.routes[matchID]
}

// HasRoutingFrom reports whether any match of the round feeds another match
// through an edge.
func (g *Graph) HasRoutingFrom(roundID int) bool {
	for id, edges := range g.routes {
		if m, ok := g.matches[id]; ok && m.RoundID == roundID && len(edges) > 0 {
			return true
		}
	}
	return false
}

// NextRounds lists rounds linked from roundID by round-out edges.
func (g *Graph) NextRounds(roundID int) []int {
	return g.roundNext[roundID]
}

// RoundMatches returns the round's matches in creation order.
func (g *Graph) RoundMatches(roundID int) []*models.Match {
	out := make([]*models.Match, 0)
	for _, m := range g.matches {
		if m.RoundID == roundID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Changed returns the matches whose slots were written, in id order.
func (g *Graph) Changed() []*models.Match {
	ids := make([]int, 0, len(g.changed))
	for id := range g.changed {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]*models.Match, len(ids))
	for i, id := range ids {
		out[i] = g.matches[id]
	}
	return out
}

const (
	white = iota
	grey
	black
)

// DetectCycle runs a depth-first search over match routing edges starting at
// the given matches.
func (g *Graph) DetectCycle(from []int) error {
	color := make(map[int]int)
	var visit func(id int, path []int) error
	visit = func(id int, path []int) error {
		color[id] = grey
		path = append(path, id)
		for _, e := range g.routes[id] {
			switch color[e.TargetID] {
			case grey:
				return fmt.Errorf("%w: match %d routes back into %v", ErrCycleInGraph, id, append(path, e.TargetID))
			case white:
				if err := visit(e.TargetID, path); err != nil {
					return err
				}
			}
		}
		color[id] = black
		return nil
	}
	for _, id := range from {
		if color[id] == white {
			if err := visit(id, nil); err != nil {
				return err
			}
		}
	}
	return nil
}
