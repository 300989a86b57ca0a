package member

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/courtly/courtly/internal/rest"
	"github.com/courtly/courtly/pkg/org"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	service Service
}

type MemberDTO struct {
	Id                int64     `json:"id"`
	UserId            *int64    `json:"userId,omitempty"`
	FullName          string    `json:"fullName"`
	Phone             string    `json:"phone,omitempty"`
	Email             string    `json:"email,omitempty"`
	Status            string    `json:"status"`
	LastInteractionAt time.Time `json:"lastInteractionAt"`
}

func NewHandler(service Service) *Handler {
	return &Handler{service}
}

func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	log.Debug("Listing members")
	w.Header().Set("Content-Type", "application/json")

	members, err := h.service.ListMembers(r.Context())
	if errors.Is(err, org.ErrNoOrg) {
		http.Error(w, "no organization in request", http.StatusForbidden)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	dtos := make([]MemberDTO, 0, len(members))
	for _, m := range members {
		dtos = append(dtos, memberToDTO(m))
	}
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(dtos); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func (h *Handler) GetMember(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	memberId, ok := pathId(w, r, "memberId")
	if !ok {
		return
	}

	m, err := h.service.GetMember(r.Context(), memberId)
	if errors.Is(err, ErrMemberNotFound) {
		http.Error(w, "member not found", http.StatusNotFound)
		return
	} else if errors.Is(err, org.ErrNoOrg) {
		http.Error(w, "no organization in request", http.StatusForbidden)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(memberToDTO(m)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func (h *Handler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	log.Debug("Updating member")
	w.Header().Set("Content-Type", "application/json")

	memberId, ok := pathId(w, r, "memberId")
	if !ok {
		return
	}

	var dto MemberDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	dto.Id = memberId

	updated, err := h.service.UpdateMember(r.Context(), dtoToMember(dto))
	if errors.Is(err, ErrMemberNotFound) {
		http.Error(w, "member not found", http.StatusNotFound)
		return
	} else if errors.Is(err, ErrProtectedProfile) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(rest.ErrorResponse{
			Error:   "Member profile is protected",
			Details: "contact fields of app-linked members cannot be overwritten",
		})
		return
	} else if errors.Is(err, org.ErrNoOrg) {
		http.Error(w, "no organization in request", http.StatusForbidden)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(memberToDTO(updated)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func pathId(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	vars := mux.Vars(r)
	id, err := strconv.ParseInt(vars[name], 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(rest.ErrorResponse{
			Error:   "Invalid id",
			Details: name + " must be an integer",
		})
		return 0, false
	}
	return id, true
}

func memberToDTO(m Member) MemberDTO {
	return MemberDTO{
		Id:                m.Id,
		UserId:            m.UserId,
		FullName:          m.FullName,
		Phone:             m.Phone,
		Email:             m.Email,
		Status:            string(m.Status),
		LastInteractionAt: m.LastInteractionAt,
	}
}

func dtoToMember(dto MemberDTO) Member {
	status := Status(dto.Status)
	if status == "" {
		status = StatusActive
	}
	return Member{
		Id:       dto.Id,
		FullName: dto.FullName,
		Phone:    dto.Phone,
		Email:    dto.Email,
		Status:   status,
	}
}
