package handlers

import (
	"fmt"
	"net/http"

	"github.com/Dosada05/league-engine/services"
)

type BracketHandler struct {
	bracketService services.BracketService
}

func NewBracketHandler(bs services.BracketService) *BracketHandler {
	return &BracketHandler{
		bracketService: bs,
	}
}

// GetBracket godoc
// @Summary Get the bracket of a category
// @Tags bracket
// @Produce json
// @Param categoryID path int true "Category ID"
// @Success 200 {object} services.BracketView
// @Failure 404 {object} map[string]string "Category not found"
// @Router /categories/{categoryID}/bracket [get]
func (h *BracketHandler) GetBracket(w http.ResponseWriter, r *http.Request) {
	categoryID, err := getIDFromURL(r, "categoryID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	view, err := h.bracketService.GetBracket(r.Context(), categoryID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, view, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// CreateEdge godoc
// @Summary Connect two bracket nodes
// @Tags bracket
// @Accept json
// @Produce json
// @Param categoryID path int true "Category ID"
// @Param body body services.CreateEdgeInput true "Edge endpoints and handles"
// @Success 201 {object} map[string]interface{} "Edge created"
// @Failure 400 {object} map[string]string "Invalid edge"
// @Failure 409 {object} map[string]string "Edge already exists"
// @Security BearerAuth
// @Router /categories/{categoryID}/edges [post]
func (h *BracketHandler) CreateEdge(w http.ResponseWriter, r *http.Request) {
	categoryID, err := getIDFromURL(r, "categoryID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.CreateEdgeInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.CategoryID == 0 {
		input.CategoryID = categoryID
	}
	if input.CategoryID != categoryID {
		badRequestResponse(w, r, fmt.Errorf("category_id %d does not match the URL", input.CategoryID))
		return
	}

	edge, err := h.bracketService.CreateEdge(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"edge": edge}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// DeleteEdge godoc
// @Summary Remove an edge
// @Tags bracket
// @Param categoryID path int true "Category ID"
// @Param edgeID path int true "Edge ID"
// @Success 204 "Edge deleted"
// @Failure 404 {object} map[string]string "Edge not found"
// @Security BearerAuth
// @Router /categories/{categoryID}/edges/{edgeID} [delete]
func (h *BracketHandler) DeleteEdge(w http.ResponseWriter, r *http.Request) {
	edgeID, err := getIDFromURL(r, "edgeID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.bracketService.DeleteEdge(r.Context(), edgeID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
