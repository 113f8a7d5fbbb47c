package handlers

import (
	"net/http"

	"github.com/Dosada05/league-engine/services"
)

type ProgressionHandler struct {
	progressionService services.ProgressionService
}

func NewProgressionHandler(ps services.ProgressionService) *ProgressionHandler {
	return &ProgressionHandler{
		progressionService: ps,
	}
}

// GenerateRound godoc
// @Summary Generate the fixtures of a round
// @Tags progression
// @Description Builds groups and matches from the round's format and the category's remaining teams.
// @Produce json
// @Param roundID path int true "Round ID"
// @Success 201 {object} services.GenerateResult
// @Failure 404 {object} map[string]string "Round not found"
// @Failure 409 {object} map[string]string "Already generated, closed, no format or too few teams"
// @Failure 503 {object} map[string]string "Category is busy"
// @Security BearerAuth
// @Router /rounds/{roundID}/generate [post]
func (h *ProgressionHandler) GenerateRound(w http.ResponseWriter, r *http.Request) {
	roundID, err := getIDFromURL(r, "roundID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	res, err := h.progressionService.Generate(r.Context(), roundID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, res, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ProgressRound godoc
// @Summary Progress a round
// @Tags progression
// @Description Evaluates the round. Either schedules its next stage or closes it, routing advancing teams on and ranking eliminated ones.
// @Produce json
// @Param roundID path int true "Round ID"
// @Param auto_proceed query bool false "Generate the next round right away"
// @Success 200 {object} services.ProgressResult
// @Failure 404 {object} map[string]string "Round not found"
// @Failure 409 {object} map[string]string "Matches unfinished, not generated or slot conflict"
// @Failure 503 {object} map[string]string "Category is busy"
// @Security BearerAuth
// @Router /rounds/{roundID}/progress [post]
func (h *ProgressionHandler) ProgressRound(w http.ResponseWriter, r *http.Request) {
	roundID, err := getIDFromURL(r, "roundID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	autoProceed, err := boolQuery(r, "auto_proceed")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	res, err := h.progressionService.Progress(r.Context(), roundID, autoProceed)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, res, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ResetRound godoc
// @Summary Reset a round
// @Tags progression
// @Description Deletes the round's fixtures and undoes what they fed downstream.
// @Produce json
// @Param roundID path int true "Round ID"
// @Success 200 {object} services.ResetResult
// @Failure 404 {object} map[string]string "Round not found"
// @Failure 409 {object} map[string]string "A downstream match is already played"
// @Security BearerAuth
// @Router /rounds/{roundID}/reset [post]
func (h *ProgressionHandler) ResetRound(w http.ResponseWriter, r *http.Request) {
	roundID, err := getIDFromURL(r, "roundID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	res, err := h.progressionService.Reset(r.Context(), roundID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, res, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// SynchronizeCategory godoc
// @Summary Synchronize a category
// @Tags progression
// @Description Replays routing and ranking over the whole category. Safe to call repeatedly.
// @Produce json
// @Param categoryID path int true "Category ID"
// @Success 200 {object} services.SynchronizeResult
// @Failure 404 {object} map[string]string "Category not found"
// @Security BearerAuth
// @Router /categories/{categoryID}/synchronize [post]
func (h *ProgressionHandler) SynchronizeCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, err := getIDFromURL(r, "categoryID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	res, err := h.progressionService.Synchronize(r.Context(), categoryID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, res, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
