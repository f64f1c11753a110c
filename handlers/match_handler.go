package handlers

import (
	"errors"
	"net/http"

	"github.com/leaguecraft/tournament-engine/services"
)

type MatchHandler struct {
	advancerService services.AdvancerService
}

func NewMatchHandler(as services.AdvancerService) *MatchHandler {
	return &MatchHandler{advancerService: as}
}

// ResolveHandler handles POST /tournaments/{tournamentID}/matches/{matchID}/result
//
// The caller is the external match source reporting a finished game. A match
// can only be resolved once; a repeat report gets 409.
func (h *MatchHandler) ResolveHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var result services.MatchResult
	if err := readJSON(w, r, &result); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if result.WinnerID <= 0 {
		badRequestResponse(w, r, errors.New("winner_id must be a positive integer"))
		return
	}

	match, err := h.advancerService.ResolveMatch(r.Context(), tournamentID, matchID, result)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
