package repositories

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

type fakeResult struct {
	n   int64
	err error
}

func (r fakeResult) LastInsertId() (int64, error) { return 0, errors.New("not supported") }
func (r fakeResult) RowsAffected() (int64, error) { return r.n, r.err }

func TestIntArrayRoundTrip(t *testing.T) {
	assert.Equal(t, []int{3, 1, 2}, intsFromArray(intArray([]int{3, 1, 2})))
	assert.Empty(t, intsFromArray(intArray(nil)))
}

func TestCheckAffectedRows(t *testing.T) {
	assert.NoError(t, checkAffectedRows(fakeResult{n: 1}, ErrRoundNotFound))
	assert.ErrorIs(t, checkAffectedRows(fakeResult{}, ErrRoundNotFound), ErrRoundNotFound)
	assert.Error(t, checkAffectedRows(fakeResult{err: errors.New("driver")}, ErrRoundNotFound))

	n, err := affectedRows(fakeResult{n: 4})
	assert.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestMatchErrorMapping(t *testing.T) {
	r := &postgresMatchRepository{}
	tests := []struct {
		err  error
		want error
	}{
		{&pq.Error{Code: "23503", Constraint: "matches_round_id_fkey"}, ErrMatchRoundInvalid},
		{&pq.Error{Code: "23503", Constraint: "matches_winner_id_fkey"}, ErrMatchTeamInvalid},
		{&pq.Error{Code: "23514", Constraint: "chk_match_distinct_teams"}, ErrMatchSameTeams},
		{&pq.Error{Code: "23514", Constraint: "matches_home_score_check"}, ErrMatchScoreNegative},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.want), func(t *testing.T) {
			assert.ErrorIs(t, r.handleMatchError(tt.err), tt.want)
		})
	}

	other := &pq.Error{Code: "40001"}
	assert.Equal(t, error(other), r.handleMatchError(other))
	assert.NoError(t, r.handleMatchError(nil))
}

func TestFormatErrorMapping(t *testing.T) {
	r := &postgresFormatRepository{}
	assert.ErrorIs(t, r.handleFormatError(&pq.Error{Code: "23505", Constraint: "formats_name_key"}), ErrFormatNameConflict)
	assert.ErrorIs(t, r.handleFormatError(&pq.Error{Code: "23503", Constraint: "rounds_format_id_fkey"}), ErrFormatInUse)

	plain := errors.New("boom")
	assert.Equal(t, plain, r.handleFormatError(plain))
}
