package handlers

import (
	"errors"
	"net/http"

	"github.com/Dosada05/league-engine/services"
)

type FormatHandler struct {
	formatService services.FormatService
}

func NewFormatHandler(fs services.FormatService) *FormatHandler {
	return &FormatHandler{
		formatService: fs,
	}
}

// CreateFormat godoc
// @Summary Create a round format
// @Tags formats
// @Description Stores a named format. The config is validated and saved with every default filled in.
// @Accept json
// @Produce json
// @Param body body services.CreateFormatInput true "Format name and config"
// @Success 201 {object} map[string]interface{} "Format created"
// @Failure 400 {object} map[string]string "Invalid config"
// @Failure 401 {object} map[string]string "Unauthenticated"
// @Failure 403 {object} map[string]string "Not an organizer"
// @Failure 409 {object} map[string]string "Name already taken"
// @Security BearerAuth
// @Router /formats [post]
func (h *FormatHandler) CreateFormat(w http.ResponseWriter, r *http.Request) {
	var input services.CreateFormatInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	format, err := h.formatService.CreateFormat(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"format": format}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetFormatByID godoc
// @Summary Get a format
// @Tags formats
// @Produce json
// @Param formatID path int true "Format ID"
// @Success 200 {object} map[string]interface{} "Format"
// @Failure 400 {object} map[string]string "Invalid ID"
// @Failure 404 {object} map[string]string "Format not found"
// @Router /formats/{formatID} [get]
func (h *FormatHandler) GetFormatByID(w http.ResponseWriter, r *http.Request) {
	formatID, err := getIDFromURL(r, "formatID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	format, err := h.formatService.GetFormatByID(r.Context(), formatID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"format": format}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetAllFormats godoc
// @Summary List formats
// @Tags formats
// @Produce json
// @Success 200 {object} map[string]interface{} "Formats ordered by name"
// @Router /formats [get]
func (h *FormatHandler) GetAllFormats(w http.ResponseWriter, r *http.Request) {
	formats, err := h.formatService.GetAllFormats(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"formats": formats}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UpdateFormat godoc
// @Summary Update a format
// @Tags formats
// @Accept json
// @Produce json
// @Param formatID path int true "Format ID"
// @Param body body services.UpdateFormatInput true "Fields to change"
// @Success 200 {object} map[string]interface{} "Format updated"
// @Failure 400 {object} map[string]string "Invalid ID or config"
// @Failure 404 {object} map[string]string "Format not found"
// @Failure 409 {object} map[string]string "Name already taken"
// @Security BearerAuth
// @Router /formats/{formatID} [put]
func (h *FormatHandler) UpdateFormat(w http.ResponseWriter, r *http.Request) {
	formatID, err := getIDFromURL(r, "formatID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.UpdateFormatInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.Name == nil && input.Config == nil {
		badRequestResponse(w, r, errors.New("at least one field must be provided for update"))
		return
	}

	format, err := h.formatService.UpdateFormat(r.Context(), formatID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"format": format}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// DeleteFormat godoc
// @Summary Delete a format
// @Tags formats
// @Param formatID path int true "Format ID"
// @Success 204 "Format deleted"
// @Failure 404 {object} map[string]string "Format not found"
// @Failure 409 {object} map[string]string "Format is attached to a round"
// @Security BearerAuth
// @Router /formats/{formatID} [delete]
func (h *FormatHandler) DeleteFormat(w http.ResponseWriter, r *http.Request) {
	formatID, err := getIDFromURL(r, "formatID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.formatService.DeleteFormat(r.Context(), formatID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
