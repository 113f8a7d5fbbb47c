package brackets

import "encoding/json"

// SeriesStatus is one of SeriesOpen, SeriesResolved or SeriesTied.
type SeriesStatus interface {
	seriesStatus()
	String() string
}

// SeriesOpen: games are still to be played.
type SeriesOpen struct{}

// SeriesResolved carries the series winner and loser.
type SeriesResolved struct {
	Winner int
	Loser  int
}

// SeriesTied: every scheduled game is played and nobody reached the threshold.
type SeriesTied struct{}

func (SeriesOpen) seriesStatus()     {}
func (SeriesResolved) seriesStatus() {}
func (SeriesTied) seriesStatus()     {}

func (SeriesOpen) String() string     { return "OPEN" }
func (SeriesResolved) String() string { return "RESOLVED" }
func (SeriesTied) String() string     { return "TIED" }

// SeriesResult is the evaluation of one pairing.
type SeriesResult struct {
	GroupLabel   string
	HomeTeamID   int
	AwayTeamID   int
	MatchIDs     []int
	Unplayed     []int
	Status       SeriesStatus
	IsFinal      bool
	IsThirdPlace bool
	Stage        int

	decidedBy *matchKey
}

type matchKey struct {
	completedAt int64
	id          int
}

func (s *SeriesResult) Resolved() (SeriesResolved, bool) {
	r, ok := s.Status.(SeriesResolved)
	return r, ok
}

func (s *SeriesResult) MarshalJSON() ([]byte, error) {
	out := struct {
		GroupLabel   string `json:"group_label,omitempty"`
		HomeTeamID   int    `json:"home_team_id"`
		AwayTeamID   int    `json:"away_team_id"`
		MatchIDs     []int  `json:"match_ids"`
		Status       string `json:"status"`
		WinnerID     *int   `json:"winner_id,omitempty"`
		LoserID      *int   `json:"loser_id,omitempty"`
		IsFinal      bool   `json:"is_final"`
		IsThirdPlace bool   `json:"is_third_place"`
	}{
		GroupLabel:   s.GroupLabel,
		HomeTeamID:   s.HomeTeamID,
		AwayTeamID:   s.AwayTeamID,
		MatchIDs:     s.MatchIDs,
		Status:       s.Status.String(),
		IsFinal:      s.IsFinal,
		IsThirdPlace: s.IsThirdPlace,
	}
	if r, ok := s.Resolved(); ok {
		out.WinnerID, out.LoserID = &r.Winner, &r.Loser
	}
	return json.Marshal(out)
}
