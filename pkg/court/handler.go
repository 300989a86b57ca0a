package court

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/courtly/courtly/internal/rest"
	"github.com/courtly/courtly/pkg/org"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	service Service
}

type CourtDTO struct {
	Id        int64  `json:"id"`
	Name      string `json:"name"`
	Surface   string `json:"surface,omitempty"`
	BasePrice string `json:"basePrice"`
}

func NewHandler(service Service) *Handler {
	return &Handler{service}
}

func (h *Handler) ListCourts(w http.ResponseWriter, r *http.Request) {
	log.Debug("Listing courts")
	w.Header().Set("Content-Type", "application/json")

	courts, err := h.service.ListCourts(r.Context())
	if errors.Is(err, org.ErrNoOrg) {
		http.Error(w, "no organization in request", http.StatusForbidden)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	dtos := make([]CourtDTO, 0, len(courts))
	for _, c := range courts {
		dtos = append(dtos, courtToDTO(c))
	}
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(dtos); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func (h *Handler) GetCourt(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	vars := mux.Vars(r)
	courtId, err := strconv.ParseInt(vars["courtId"], 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(rest.ErrorResponse{
			Error:   "Invalid court id",
			Details: "courtId must be an integer",
		})
		return
	}

	c, err := h.service.GetCourt(r.Context(), courtId)
	if errors.Is(err, ErrCourtNotFound) {
		http.Error(w, "court not found", http.StatusNotFound)
		return
	} else if errors.Is(err, org.ErrNoOrg) {
		http.Error(w, "no organization in request", http.StatusForbidden)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(courtToDTO(c)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func courtToDTO(c Court) CourtDTO {
	return CourtDTO{
		Id:        c.Id,
		Name:      c.Name,
		Surface:   c.Surface,
		BasePrice: c.BasePrice.String(),
	}
}
