package matching

import (
	"github.com/gorilla/mux"
)

func RegisterRoutes(router *mux.Router, handler *Handler) {
	api := router.PathPrefix("/api/v1/matching").Subrouter()

	api.HandleFunc("/next", handler.FindNextMatch).Methods("POST")
	api.HandleFunc("/accept", handler.AcceptMatch).Methods("POST")
	api.HandleFunc("/pass", handler.PassMatch).Methods("POST")
	api.HandleFunc("/score-batch", handler.ScoreBatch).Methods("POST")
}
