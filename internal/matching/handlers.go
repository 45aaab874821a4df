package matching

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/harmonyloop/sparkd-backend/internal/common/utils"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) FindNextMatch(w http.ResponseWriter, r *http.Request) {
	var dto FindNextRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := utils.ValidateStruct(dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	cand, err := h.service.FindNextMatch(r.Context(), dto.RequesterID)
	if err != nil {
		respondServiceError(w, err, "Failed to find next match")
		return
	}

	if cand == nil {
		// No match right now is a normal outcome, not an error.
		utils.RespondWithData(w, http.StatusOK, map[string]interface{}{
			"candidate": nil,
			"message":   "no match available right now",
		})
		return
	}

	utils.RespondWithData(w, http.StatusOK, map[string]interface{}{
		"candidate": toCandidateDTO(cand),
	})
}

func (h *Handler) AcceptMatch(w http.ResponseWriter, r *http.Request) {
	var dto MatchActionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := utils.ValidateStruct(dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.AcceptMatch(r.Context(), dto.RequesterID, dto.CandidateID)
	if err != nil {
		respondServiceError(w, err, "Failed to accept match")
		return
	}

	utils.RespondWithData(w, http.StatusOK, result)
}

func (h *Handler) PassMatch(w http.ResponseWriter, r *http.Request) {
	var dto MatchActionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := utils.ValidateStruct(dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	state, err := h.service.PassMatch(r.Context(), dto.RequesterID, dto.CandidateID)
	if err != nil {
		respondServiceError(w, err, "Failed to pass match")
		return
	}

	utils.RespondWithData(w, http.StatusOK, map[string]string{"state": string(state)})
}

func (h *Handler) ScoreBatch(w http.ResponseWriter, r *http.Request) {
	var dto ScoreBatchDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := utils.ValidateStruct(dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.service.ScoreBatch(r.Context(), dto.RequesterID, dto.CandidateIDs)
	if err != nil {
		respondServiceError(w, err, "Failed to score batch")
		return
	}

	utils.RespondWithData(w, http.StatusOK, map[string]interface{}{"scores": entries})
}

func respondServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrProfileNotFound):
		utils.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidState):
		utils.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidCursor):
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
	default:
		utils.RespondWithError(w, http.StatusInternalServerError, fallback)
	}
}
