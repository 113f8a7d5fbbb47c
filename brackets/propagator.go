package brackets

import (
	"fmt"
	"sort"

	"github.com/Dosada05/league-engine/models"
)

type Slot string

const (
	SlotHome Slot = "home"
	SlotAway Slot = "away"
	SlotAny  Slot = ""
)

func slotForHandle(h models.Handle) Slot {
	switch h {
	case models.HandleSlotInHome:
		return SlotHome
	case models.HandleSlotInAway:
		return SlotAway
	}
	return SlotAny
}

// SlotAssignment records one team written into a match slot.
type SlotAssignment struct {
	SourceMatchID int    `json:"source_match_id,omitempty"`
	Handle        string `json:"handle,omitempty"`
	MatchID       int    `json:"match_id"`
	Slot          Slot   `json:"slot"`
	TeamID        int    `json:"team_id"`
}

// Propagate pushes the winner and loser of each resolved source match along
// its outgoing edges. Sources are processed in creation order. A slot that
// already holds the same team is left alone, so replaying is harmless.
func (g *Graph) Propagate(sources []int) ([]SlotAssignment, error) {
	if err := g.DetectCycle(sources); err != nil {
		return nil, err
	}
	ids := append([]int(nil), sources...)
	sort.Ints(ids)

	var assignments []SlotAssignment
	for _, id := range ids {
		src := g.matches[id]
		if src == nil || !src.IsResolved() {
			continue
		}
		for _, e := range g.routes[id] {
			team := *src.WinnerID
			if e.SourceHandle == models.HandleLoserOut {
				team = *src.LoserID
			}
			target := g.matches[e.TargetID]
			if target == nil {
				return nil, fmt.Errorf("%w: edge %d targets unknown match %d", ErrInternalInvariant, e.ID, e.TargetID)
			}
			slot, wrote, err := placeTeam(target, team, slotForHandle(e.TargetHandle))
			if err != nil {
				return nil, fmt.Errorf("match %d -> match %d: %w", id, target.ID, err)
			}
			if !wrote {
				continue
			}
			g.changed[target.ID] = true
			assignments = append(assignments, SlotAssignment{
				SourceMatchID: id,
				Handle:        string(e.SourceHandle),
				MatchID:       target.ID,
				Slot:          slot,
				TeamID:        team,
			})
		}
	}
	return assignments, nil
}

// FillInOrder places teams into the empty slots of the given matches, home
// before away, match by match. Teams already seated are skipped.
func (g *Graph) FillInOrder(matches []*models.Match, teams []int) ([]SlotAssignment, error) {
	type freeSlot struct {
		match *models.Match
		slot  Slot
	}
	seated := make(map[int]bool)
	var free []freeSlot
	for _, mm := range matches {
		m := g.matches[mm.ID]
		if m == nil {
			return nil, fmt.Errorf("%w: match %d is not in the graph", ErrInternalInvariant, mm.ID)
		}
		for _, id := range []*int{m.HomeTeamID, m.AwayTeamID} {
			if id != nil {
				seated[*id] = true
			}
		}
		if m.HomeTeamID == nil {
			free = append(free, freeSlot{m, SlotHome})
		}
		if m.AwayTeamID == nil {
			free = append(free, freeSlot{m, SlotAway})
		}
	}

	var assignments []SlotAssignment
	for _, team := range teams {
		if seated[team] {
			continue
		}
		if len(free) == 0 {
			return nil, fmt.Errorf("%w: no free slot for team %d", ErrSlotConflict, team)
		}
		f := free[0]
		free = free[1:]
		if f.slot == SlotHome {
			f.match.HomeTeamID = models.IntPtr(team)
		} else {
			f.match.AwayTeamID = models.IntPtr(team)
		}
		seated[team] = true
		g.changed[f.match.ID] = true
		assignments = append(assignments, SlotAssignment{MatchID: f.match.ID, Slot: f.slot, TeamID: team})
	}
	return assignments, nil
}

func placeTeam(m *models.Match, team int, slot Slot) (Slot, bool, error) {
	switch slot {
	case SlotHome:
		return writeSlot(m, &m.HomeTeamID, m.AwayTeamID, team, SlotHome)
	case SlotAway:
		return writeSlot(m, &m.AwayTeamID, m.HomeTeamID, team, SlotAway)
	}
	if m.HasTeam(team) {
		return SlotAny, false, nil
	}
	if m.HomeTeamID == nil {
		return writeSlot(m, &m.HomeTeamID, m.AwayTeamID, team, SlotHome)
	}
	if m.AwayTeamID == nil {
		return writeSlot(m, &m.AwayTeamID, m.HomeTeamID, team, SlotAway)
	}
	return SlotAny, false, fmt.Errorf("%w: match %d has no free slot for team %d", ErrSlotConflict, m.ID, team)
}

func writeSlot(m *models.Match, dst **int, other *int, team int, slot Slot) (Slot, bool, error) {
	if *dst != nil {
		if **dst == team {
			return slot, false, nil
		}
		return slot, false, fmt.Errorf("%w: match %d %s slot holds team %d, not %d", ErrSlotConflict, m.ID, slot, **dst, team)
	}
	if other != nil && *other == team {
		return slot, false, fmt.Errorf("%w: team %d cannot play itself in match %d", ErrSlotConflict, team, m.ID)
	}
	*dst = models.IntPtr(team)
	return slot, true, nil
}

// Clear empties the slot holding team in the given match. It reports the
// slot that was emptied, or SlotAny when the team was not seated there.
func (g *Graph) Clear(matchID, team int) (Slot, error) {
	m := g.matches[matchID]
	if m == nil {
		return SlotAny, fmt.Errorf("%w: match %d is not in the graph", ErrInternalInvariant, matchID)
	}
	switch {
	case m.HomeTeamID != nil && *m.HomeTeamID == team:
		m.HomeTeamID = nil
		g.changed[matchID] = true
		return SlotHome, nil
	case m.AwayTeamID != nil && *m.AwayTeamID == team:
		m.AwayTeamID = nil
		g.changed[matchID] = true
		return SlotAway, nil
	}
	return SlotAny, nil
}

// Put replaces the graph's copy of a match, e.g. after a new result.
func (g *Graph) Put(m *models.Match) {
	g.matches[m.ID] = m.Clone()
}
