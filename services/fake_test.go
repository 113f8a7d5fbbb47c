package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/league-engine/events"
	"github.com/Dosada05/league-engine/models"
	"github.com/Dosada05/league-engine/repositories"
)

// memStore is an in-memory database behind every repository interface. It
// also acts as the TxManager: a failing callback restores the state taken
// before it ran.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	nextID     int
	categories map[int]*models.Category
	rounds     map[int]*models.Round
	groups     map[int]*models.Group
	matches    map[int]*models.Match
	teams      map[int]*models.Team
	edges      map[int]*models.Edge
	formats    map[int]*models.Format

	// fail makes the named operation ("teams.UpdateProgress", ...) return
	// the error once the given id is touched; id 0 matches any call.
	fail   map[string]failure
	locked []int
}

type failure struct {
	id  int
	err error
}

func newMemStore() *memStore {
	return &memStore{
		nextID:     1000,
		categories: make(map[int]*models.Category),
		rounds:     make(map[int]*models.Round),
		groups:     make(map[int]*models.Group),
		matches:    make(map[int]*models.Match),
		teams:      make(map[int]*models.Team),
		edges:      make(map[int]*models.Edge),
		formats:    make(map[int]*models.Format),
		fail:       make(map[string]failure),
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *memStore) id() int {
	s.nextID++
	return s.nextID
}

func (s *memStore) injected(op string, id int) error {
	f, ok := s.fail[op]
	if ok && (f.id == 0 || f.id == id) {
		return f.err
	}
	return nil
}

type memSnapshot struct {
	categories map[int]models.Category
	rounds     map[int]*models.Round
	groups     map[int]*models.Group
	matches    map[int]*models.Match
	teams      map[int]*models.Team
	edges      map[int]models.Edge
	formats    map[int]models.Format
	nextID     int
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := memSnapshot{
		categories: make(map[int]models.Category),
		rounds:     make(map[int]*models.Round),
		groups:     make(map[int]*models.Group),
		matches:    make(map[int]*models.Match),
		teams:      make(map[int]*models.Team),
		edges:      make(map[int]models.Edge),
		formats:    make(map[int]models.Format),
		nextID:     s.nextID,
	}
	for id, c := range s.categories {
		snap.categories[id] = *c
	}
	for id, r := range s.rounds {
		snap.rounds[id] = copyRound(r)
	}
	for id, g := range s.groups {
		snap.groups[id] = copyGroup(g)
	}
	for id, m := range s.matches {
		snap.matches[id] = m.Clone()
	}
	for id, t := range s.teams {
		snap.teams[id] = copyTeam(t)
	}
	for id, e := range s.edges {
		snap.edges[id] = *e
	}
	for id, f := range s.formats {
		snap.formats[id] = *f
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = make(map[int]*models.Category)
	for id, c := range snap.categories {
		c := c
		s.categories[id] = &c
	}
	s.rounds = snap.rounds
	s.groups = snap.groups
	s.matches = snap.matches
	s.teams = snap.teams
	s.edges = make(map[int]*models.Edge)
	for id, e := range snap.edges {
		e := e
		s.edges[id] = &e
	}
	s.formats = make(map[int]*models.Format)
	for id, f := range snap.formats {
		f := f
		s.formats[id] = &f
	}
	s.nextID = snap.nextID
}

func (s *memStore) WithCategoryLock(ctx context.Context, categoryID int, fn func(exec repositories.SQLExecutor) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLockTimeout, err)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	s.locked = append(s.locked, categoryID)
	s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(nil); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func copyRound(r *models.Round) *models.Round {
	c := *r
	c.FormatID = cloneIntPtr(r.FormatID)
	c.NextRoundID = cloneIntPtr(r.NextRoundID)
	if r.ByeTeamIDs != nil {
		c.ByeTeamIDs = append([]int(nil), r.ByeTeamIDs...)
	}
	c.Groups = nil
	c.Format = nil
	return &c
}

func copyGroup(g *models.Group) *models.Group {
	c := *g
	c.TeamIDs = append([]int(nil), g.TeamIDs...)
	return &c
}

func copyTeam(t *models.Team) *models.Team {
	c := *t
	c.FinalRank = cloneIntPtr(t.FinalRank)
	c.EliminatedInRound = cloneIntPtr(t.EliminatedInRound)
	return &c
}

func cloneIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Seeding helpers.

func (s *memStore) addCategory(id int) *models.Category {
	c := &models.Category{ID: id, LeagueID: 1, Name: fmt.Sprintf("Category %d", id), Status: models.CategoryStatusOngoing}
	s.categories[id] = c
	return c
}

func (s *memStore) addTeams(categoryID int, ids ...int) {
	for _, id := range ids {
		s.teams[id] = &models.Team{ID: id, CategoryID: categoryID, Name: fmt.Sprintf("Team %d", id), Status: models.TeamStatusAccepted}
	}
}

func (s *memStore) addFormat(id int, raw string) {
	s.formats[id] = &models.Format{ID: id, Name: fmt.Sprintf("format-%d", id), Config: []byte(raw)}
}

func (s *memStore) addRound(id, categoryID, order int, formatID *int) *models.Round {
	r := &models.Round{ID: id, CategoryID: categoryID, Name: fmt.Sprintf("Round %d", order), RoundOrder: order, FormatID: formatID, Status: models.RoundStatusUpcoming}
	s.rounds[id] = r
	return r
}

func (s *memStore) addMatch(m *models.Match) *models.Match {
	if m.Status == "" {
		m.Status = models.MatchStatusScheduled
	}
	if m.GeneratedBy == "" {
		m.GeneratedBy = models.GeneratedByManual
	}
	s.matches[m.ID] = m
	return m
}

func (s *memStore) addEdge(e *models.Edge) {
	if e.ID == 0 {
		e.ID = s.id()
	}
	s.edges[e.ID] = e
}

func (s *memStore) team(id int) *models.Team {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyTeam(s.teams[id])
}

func (s *memStore) round(id int) *models.Round {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyRound(s.rounds[id])
}

func (s *memStore) match(id int) *models.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matches[id].Clone()
}

func (s *memStore) roundMatches(roundID int) []*models.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Match
	for _, m := range s.matches {
		if m.RoundID == roundID {
			out = append(out, m.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Repositories.

type memCategories struct{ s *memStore }

func (r memCategories) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.categories[id]
	if !ok {
		return nil, repositories.ErrCategoryNotFound
	}
	cp := *c
	return &cp, nil
}

func (r memCategories) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, id int, status models.CategoryStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.categories[id]
	if !ok {
		return repositories.ErrCategoryNotFound
	}
	c.Status = status
	return nil
}

func (r memCategories) ListActiveIDs(_ context.Context, _ repositories.SQLExecutor) ([]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := make(map[int]bool)
	ids := make([]int, 0)
	for _, round := range r.s.rounds {
		if (round.Status == models.RoundStatusOngoing || round.Status == models.RoundStatusFinished) && !seen[round.CategoryID] {
			seen[round.CategoryID] = true
			ids = append(ids, round.CategoryID)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

type memRounds struct{ s *memStore }

func (r memRounds) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Round, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	round, ok := r.s.rounds[id]
	if !ok {
		return nil, repositories.ErrRoundNotFound
	}
	return copyRound(round), nil
}

func (r memRounds) ListByCategory(_ context.Context, _ repositories.SQLExecutor, categoryID int) ([]*models.Round, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.Round, 0)
	for _, round := range r.s.rounds {
		if round.CategoryID == categoryID {
			out = append(out, copyRound(round))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RoundOrder != out[j].RoundOrder {
			return out[i].RoundOrder < out[j].RoundOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r memRounds) UpdateProgress(_ context.Context, _ repositories.SQLExecutor, round *models.Round) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("rounds.UpdateProgress", round.ID); err != nil {
		return err
	}
	stored, ok := r.s.rounds[round.ID]
	if !ok {
		return repositories.ErrRoundNotFound
	}
	stored.Status = round.Status
	stored.MatchesGenerated = round.MatchesGenerated
	stored.CurrentStage = round.CurrentStage
	stored.TotalStages = round.TotalStages
	stored.ByeTeamIDs = append([]int(nil), round.ByeTeamIDs...)
	return nil
}

func (r memRounds) SetFormat(_ context.Context, _ repositories.SQLExecutor, roundID int, formatID *int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.rounds[roundID]
	if !ok {
		return repositories.ErrRoundNotFound
	}
	if formatID != nil {
		if _, ok := r.s.formats[*formatID]; !ok {
			return repositories.ErrRoundFormatInvalid
		}
	}
	stored.FormatID = cloneIntPtr(formatID)
	return nil
}

type memGroups struct{ s *memStore }

func (r memGroups) Create(_ context.Context, _ repositories.SQLExecutor, group *models.Group) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, g := range r.s.groups {
		if g.RoundID == group.RoundID && g.Label == group.Label {
			return repositories.ErrGroupLabelConflict
		}
	}
	group.ID = r.s.id()
	r.s.groups[group.ID] = copyGroup(group)
	return nil
}

func (r memGroups) ListByRound(_ context.Context, _ repositories.SQLExecutor, roundID int) ([]*models.Group, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.Group, 0)
	for _, g := range r.s.groups {
		if g.RoundID == roundID {
			out = append(out, copyGroup(g))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

func (r memGroups) DeleteByRound(_ context.Context, _ repositories.SQLExecutor, roundID int) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for id, g := range r.s.groups {
		if g.RoundID == roundID {
			delete(r.s.groups, id)
			n++
		}
	}
	return n, nil
}

type memMatches struct{ s *memStore }

func (r memMatches) Create(_ context.Context, _ repositories.SQLExecutor, m *models.Match) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("matches.Create", 0); err != nil {
		return err
	}
	if m.HomeTeamID != nil && m.AwayTeamID != nil && *m.HomeTeamID == *m.AwayTeamID {
		return repositories.ErrMatchSameTeams
	}
	m.ID = r.s.id()
	m.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.s.matches[m.ID] = m.Clone()
	return nil
}

func (r memMatches) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	return m.Clone(), nil
}

func (r memMatches) list(keep func(*models.Match) bool) []*models.Match {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.Match, 0)
	for _, m := range r.s.matches {
		if keep(m) {
			out = append(out, m.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r memMatches) ListByRound(_ context.Context, _ repositories.SQLExecutor, roundID int) ([]*models.Match, error) {
	return r.list(func(m *models.Match) bool { return m.RoundID == roundID }), nil
}

func (r memMatches) ListByCategory(_ context.Context, _ repositories.SQLExecutor, categoryID int) ([]*models.Match, error) {
	return r.list(func(m *models.Match) bool { return m.CategoryID == categoryID }), nil
}

func (r memMatches) Update(_ context.Context, _ repositories.SQLExecutor, m *models.Match) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("matches.Update", m.ID); err != nil {
		return err
	}
	stored, ok := r.s.matches[m.ID]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	if m.HomeTeamID != nil && m.AwayTeamID != nil && *m.HomeTeamID == *m.AwayTeamID {
		return repositories.ErrMatchSameTeams
	}
	c := m.Clone()
	c.DependsOn = stored.DependsOn
	r.s.matches[m.ID] = c
	return nil
}

func (r memMatches) UpdateDependsOn(_ context.Context, _ repositories.SQLExecutor, matchID int, dependsOn []int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.matches[matchID]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	stored.DependsOn = append([]int(nil), dependsOn...)
	return nil
}

func (r memMatches) DeleteByRound(_ context.Context, _ repositories.SQLExecutor, roundID int) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for id, m := range r.s.matches {
		if m.RoundID == roundID {
			delete(r.s.matches, id)
			n++
		}
	}
	return n, nil
}

type memTeams struct{ s *memStore }

func (r memTeams) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Team, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.teams[id]
	if !ok {
		return nil, repositories.ErrTeamNotFound
	}
	return copyTeam(t), nil
}

func (r memTeams) ListByCategory(_ context.Context, _ repositories.SQLExecutor, categoryID int, filter models.TeamFilter) ([]*models.Team, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.Team, 0)
	for _, t := range r.s.teams {
		if t.CategoryID != categoryID {
			continue
		}
		if filter.AcceptedOnly && t.Status != models.TeamStatusAccepted {
			continue
		}
		if filter.NotEliminated && t.IsEliminated {
			continue
		}
		out = append(out, copyTeam(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memTeams) UpdateCounters(_ context.Context, _ repositories.SQLExecutor, t *models.Team) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.teams[t.ID]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	stored.Wins, stored.Losses, stored.Draws, stored.Points = t.Wins, t.Losses, t.Draws, t.Points
	return nil
}

func (r memTeams) UpdateProgress(_ context.Context, _ repositories.SQLExecutor, t *models.Team) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("teams.UpdateProgress", t.ID); err != nil {
		return err
	}
	stored, ok := r.s.teams[t.ID]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	for _, other := range r.s.teams {
		if other.ID == t.ID || other.CategoryID != stored.CategoryID {
			continue
		}
		if t.FinalRank != nil && other.FinalRank != nil && *other.FinalRank == *t.FinalRank {
			return repositories.ErrTeamRankConflict
		}
		if t.IsChampion && other.IsChampion {
			return repositories.ErrTeamChampionTaken
		}
	}
	stored.IsEliminated = t.IsEliminated
	stored.IsChampion = t.IsChampion
	stored.FinalRank = cloneIntPtr(t.FinalRank)
	stored.EliminatedInRound = cloneIntPtr(t.EliminatedInRound)
	return nil
}

type memEdges struct{ s *memStore }

func (r memEdges) Create(_ context.Context, _ repositories.SQLExecutor, e *models.Edge) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, other := range r.s.edges {
		if other.SourceType == e.SourceType && other.SourceID == e.SourceID && other.SourceHandle == e.SourceHandle &&
			other.TargetType == e.TargetType && other.TargetID == e.TargetID && other.TargetHandle == e.TargetHandle {
			return repositories.ErrEdgeDuplicate
		}
	}
	e.ID = r.s.id()
	cp := *e
	r.s.edges[e.ID] = &cp
	return nil
}

func (r memEdges) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Edge, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.edges[id]
	if !ok {
		return nil, repositories.ErrEdgeNotFound
	}
	cp := *e
	return &cp, nil
}

func (r memEdges) ListByCategory(_ context.Context, _ repositories.SQLExecutor, categoryID int) ([]*models.Edge, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.Edge, 0)
	for _, e := range r.s.edges {
		if e.CategoryID == categoryID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memEdges) Delete(_ context.Context, _ repositories.SQLExecutor, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.edges[id]; !ok {
		return repositories.ErrEdgeNotFound
	}
	delete(r.s.edges, id)
	return nil
}

func (r memEdges) DeleteForMatches(_ context.Context, _ repositories.SQLExecutor, matchIDs []int) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := make(map[int]bool, len(matchIDs))
	for _, id := range matchIDs {
		ids[id] = true
	}
	n := 0
	for id, e := range r.s.edges {
		if (e.SourceType == models.NodeMatch && ids[e.SourceID]) || (e.TargetType == models.NodeMatch && ids[e.TargetID]) {
			delete(r.s.edges, id)
			n++
		}
	}
	return n, nil
}

type memFormats struct{ s *memStore }

func (r memFormats) Create(_ context.Context, f *models.Format) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, other := range r.s.formats {
		if other.Name == f.Name {
			return repositories.ErrFormatNameConflict
		}
	}
	f.ID = r.s.id()
	cp := *f
	r.s.formats[f.ID] = &cp
	return nil
}

func (r memFormats) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Format, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.formats[id]
	if !ok {
		return nil, repositories.ErrFormatNotFound
	}
	cp := *f
	return &cp, nil
}

func (r memFormats) GetAll(_ context.Context) ([]models.Format, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.Format, 0, len(r.s.formats))
	for _, f := range r.s.formats {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r memFormats) Update(_ context.Context, f *models.Format) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.formats[f.ID]; !ok {
		return repositories.ErrFormatNotFound
	}
	for _, other := range r.s.formats {
		if other.ID != f.ID && other.Name == f.Name {
			return repositories.ErrFormatNameConflict
		}
	}
	cp := *f
	r.s.formats[f.ID] = &cp
	return nil
}

func (r memFormats) Delete(_ context.Context, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.formats[id]; !ok {
		return repositories.ErrFormatNotFound
	}
	for _, round := range r.s.rounds {
		if round.FormatID != nil && *round.FormatID == id {
			return repositories.ErrFormatInUse
		}
	}
	delete(r.s.formats, id)
	return nil
}

// recordingPublisher keeps published events for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(_ context.Context, evt events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, string(evt.Type))
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}
