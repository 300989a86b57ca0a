package booking

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/courtly/courtly/internal/rest"
	"github.com/courtly/courtly/pkg/member"
	"github.com/courtly/courtly/pkg/org"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	service  Service
	validate *validator.Validate
}

type CreateBookingDTO struct {
	CourtId     int64   `json:"courtId" validate:"required"`
	UserId      *int64  `json:"userId,omitempty"`
	Phone       string  `json:"phone,omitempty" validate:"omitempty,e164"`
	Email       string  `json:"email,omitempty" validate:"omitempty,email"`
	Name        string  `json:"name,omitempty"`
	StartTime   string  `json:"start" validate:"required"`
	EndTime     string  `json:"end" validate:"required"`
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	Price       *string `json:"price,omitempty"`
}

type BookingDTO struct {
	Id            int64             `json:"id"`
	Uid           string            `json:"uid"`
	CourtId       int64             `json:"courtId"`
	UserId        *int64            `json:"userId,omitempty"`
	MemberId      *int64            `json:"memberId,omitempty"`
	StartTime     time.Time         `json:"start"`
	EndTime       time.Time         `json:"end"`
	Title         string            `json:"title"`
	Description   string            `json:"description,omitempty"`
	PaymentStatus string            `json:"paymentStatus"`
	Price         string            `json:"price"`
	PlanId        *int64            `json:"planId,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating booking")
	w.Header().Set("Content-Type", "application/json")

	var dto CreateBookingDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(rest.ErrorResponse{Error: "Invalid booking request", Details: err.Error()})
		return
	}

	input, err := dtoToCreateInput(dto)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(rest.ErrorResponse{Error: "Invalid booking request", Details: err.Error()})
		return
	}

	created, err := h.service.CreateBooking(r.Context(), input)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(bookingToDTO(created)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	courtId, err := strconv.ParseInt(r.URL.Query().Get("courtId"), 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(rest.ErrorResponse{Error: "Invalid courtId", Details: "courtId must be an integer"})
		return
	}
	from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(rest.ErrorResponse{Error: "Invalid from (date) format", Details: "'from' must be in RFC3339 format"})
		return
	}
	to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(rest.ErrorResponse{Error: "Invalid to (date) format", Details: "'to' must be in RFC3339 format"})
		return
	}

	bookings, err := h.service.ListBookings(r.Context(), courtId, from, to)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	dtos := make([]BookingDTO, 0, len(bookings))
	for _, b := range bookings {
		dtos = append(dtos, bookingToDTO(b))
	}
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(dtos); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func (h *Handler) UpdateBooking(w http.ResponseWriter, r *http.Request) {
	log.Debug("Updating booking")
	w.Header().Set("Content-Type", "application/json")

	bookingId, ok := pathBookingId(w, r)
	if !ok {
		return
	}

	var dto BookingDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	price, err := decimal.NewFromString(dto.Price)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(rest.ErrorResponse{Error: "Invalid price", Details: err.Error()})
		return
	}

	updated, err := h.service.UpdateBooking(r.Context(), Booking{
		Id:            bookingId,
		StartTime:     dto.StartTime,
		EndTime:       dto.EndTime,
		Title:         dto.Title,
		Description:   dto.Description,
		PaymentStatus: PaymentStatus(dto.PaymentStatus),
		Price:         price,
		Metadata:      dto.Metadata,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(bookingToDTO(updated)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	bookingId, ok := pathBookingId(w, r)
	if !ok {
		return
	}

	reason := r.URL.Query().Get("reason")
	if err := h.service.CancelBooking(r.Context(), bookingId, reason); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SettleBooking(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	bookingId, ok := pathBookingId(w, r)
	if !ok {
		return
	}

	settled, err := h.service.SettleBooking(r.Context(), bookingId)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(bookingToDTO(settled)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func pathBookingId(w http.ResponseWriter, r *http.Request) (int64, bool) {
	vars := mux.Vars(r)
	id, err := strconv.ParseInt(vars["bookingId"], 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(rest.ErrorResponse{
			Error:   "Invalid booking id",
			Details: "bookingId must be an integer",
		})
		return 0, false
	}
	return id, true
}

func writeServiceError(w http.ResponseWriter, err error) {
	var conflict *ConflictError
	switch {
	case errors.As(err, &conflict):
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(rest.ErrorResponse{Error: conflict.Error()})
	case errors.Is(err, ErrBookingNotFound):
		http.Error(w, "booking not found", http.StatusNotFound)
	case errors.Is(err, ErrInvalidInterval), errors.Is(err, member.ErrNoIdentity):
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(rest.ErrorResponse{Error: err.Error()})
	case errors.Is(err, org.ErrNoOrg):
		http.Error(w, "no organization in request", http.StatusForbidden)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func dtoToCreateInput(dto CreateBookingDTO) (CreateBookingInput, error) {
	start, err := time.Parse(time.RFC3339, dto.StartTime)
	if err != nil {
		return CreateBookingInput{}, errors.New("'start' must be in RFC3339 format")
	}
	end, err := time.Parse(time.RFC3339, dto.EndTime)
	if err != nil {
		return CreateBookingInput{}, errors.New("'end' must be in RFC3339 format")
	}
	var price *decimal.Decimal
	if dto.Price != nil {
		p, err := decimal.NewFromString(*dto.Price)
		if err != nil {
			return CreateBookingInput{}, errors.New("'price' must be a decimal number")
		}
		price = &p
	}
	return CreateBookingInput{
		CourtId:     dto.CourtId,
		UserId:      dto.UserId,
		Phone:       dto.Phone,
		Email:       dto.Email,
		Name:        dto.Name,
		StartTime:   start,
		EndTime:     end,
		Title:       dto.Title,
		Description: dto.Description,
		Price:       price,
	}, nil
}

func bookingToDTO(b Booking) BookingDTO {
	return BookingDTO{
		Id:            b.Id,
		Uid:           b.Uid.String(),
		CourtId:       b.CourtId,
		UserId:        b.UserId,
		MemberId:      b.MemberId,
		StartTime:     b.StartTime,
		EndTime:       b.EndTime,
		Title:         b.Title,
		Description:   b.Description,
		PaymentStatus: string(b.PaymentStatus),
		Price:         b.Price.String(),
		PlanId:        b.RecurringPlanId,
		Metadata:      b.Metadata,
	}
}
