package plan

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/courtly/courtly/internal/rest"
	"github.com/courtly/courtly/pkg/booking"
	"github.com/courtly/courtly/pkg/org"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const dateFormat = "2006-01-02"

type Handler struct {
	service  Service
	validate *validator.Validate
}

type CreatePlanDTO struct {
	CourtId      int64   `json:"courtId" validate:"required"`
	UserId       *int64  `json:"userId,omitempty"`
	MemberId     *int64  `json:"memberId,omitempty"`
	DayOfWeek    int     `json:"dayOfWeek" validate:"min=0,max=6"`
	StartTime    string  `json:"startTime" validate:"required"`
	StartDate    string  `json:"startDate" validate:"required"`
	EndDate      string  `json:"endDate" validate:"required"`
	Price        *string `json:"price,omitempty"`
	PayInAdvance bool    `json:"payInAdvance"`
}

type UpdatePlanDTO struct {
	CourtId      int64  `json:"courtId" validate:"required"`
	DayOfWeek    int    `json:"dayOfWeek" validate:"min=0,max=6"`
	StartTime    string `json:"startTime" validate:"required"`
	Price        string `json:"price" validate:"required"`
	PayInAdvance bool   `json:"payInAdvance"`
}

type ExtendPlanDTO struct {
	BookingId int64  `json:"bookingId" validate:"required"`
	Reason    string `json:"reason,omitempty"`
}

type SettlePlanDTO struct {
	BookingIds []int64 `json:"bookingIds,omitempty"`
	Month      string  `json:"month,omitempty"` // "2006-01"
}

type PlanDTO struct {
	Id           int64  `json:"id"`
	CourtId      int64  `json:"courtId"`
	UserId       *int64 `json:"userId,omitempty"`
	MemberId     *int64 `json:"memberId,omitempty"`
	DayOfWeek    int    `json:"dayOfWeek"`
	StartTime    string `json:"startTime"`
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
	TotalPrice   string `json:"totalPrice"`
	Active       bool   `json:"active"`
	PayInAdvance bool   `json:"payInAdvance"`
}

type PlanOverviewDTO struct {
	PlanDTO
	RemainingSessions int    `json:"remainingSessions"`
	TotalSessions     int    `json:"totalSessions"`
	PendingDebt       string `json:"pendingDebt"`
}

type CreatePlanResponseDTO struct {
	Plan     PlanDTO `json:"plan"`
	Sessions int     `json:"sessions"`
	Warning  string  `json:"warning,omitempty"`
}

type UpdatePlanResponseDTO struct {
	Plan        PlanDTO `json:"plan"`
	Structural  bool    `json:"structural"`
	Relocated   int     `json:"relocated"`
	Regenerated int     `json:"regenerated"`
	Repriced    int64   `json:"repriced"`
}

type SettleResponseDTO struct {
	Count       int    `json:"count"`
	TotalAmount string `json:"totalAmount"`
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating recurring plan")
	w.Header().Set("Content-Type", "application/json")

	var dto CreatePlanDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(rest.ErrorResponse{Error: "Invalid plan request", Details: err.Error()})
		return
	}

	input, err := dtoToCreateInput(dto)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(rest.ErrorResponse{Error: "Invalid plan request", Details: err.Error()})
		return
	}

	result, err := h.service.Create(r.Context(), input)
	if err != nil {
		writePlanError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(CreatePlanResponseDTO{
		Plan:     planToDTO(result.Plan),
		Sessions: result.Sessions,
		Warning:  result.Warning,
	}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	overviews, err := h.service.ListPlans(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	dtos := make([]PlanOverviewDTO, 0, len(overviews))
	for _, o := range overviews {
		dtos = append(dtos, PlanOverviewDTO{
			PlanDTO:           planToDTO(o.RecurringPlan),
			RemainingSessions: o.RemainingSessions,
			TotalSessions:     o.TotalSessions,
			PendingDebt:       o.PendingDebt.String(),
		})
	}
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(dtos); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	planId, ok := pathPlanId(w, r)
	if !ok {
		return
	}

	p, err := h.service.GetPlan(r.Context(), planId)
	if err != nil {
		writePlanError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(planToDTO(p)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func (h *Handler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	log.Debug("Updating recurring plan")
	w.Header().Set("Content-Type", "application/json")

	planId, ok := pathPlanId(w, r)
	if !ok {
		return
	}

	var dto UpdatePlanDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(rest.ErrorResponse{Error: "Invalid plan request", Details: err.Error()})
		return
	}

	price, err := decimal.NewFromString(dto.Price)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(rest.ErrorResponse{Error: "Invalid price", Details: err.Error()})
		return
	}

	result, err := h.service.Update(r.Context(), UpdatePlanInput{
		PlanId:       planId,
		CourtId:      dto.CourtId,
		DayOfWeek:    time.Weekday(dto.DayOfWeek),
		StartTime:    dto.StartTime,
		Price:        price,
		PayInAdvance: dto.PayInAdvance,
	})
	if err != nil {
		writePlanError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(UpdatePlanResponseDTO{
		Plan:        planToDTO(result.Plan),
		Structural:  result.Structural,
		Relocated:   result.Relocated,
		Regenerated: result.Regenerated,
		Repriced:    result.Repriced,
	}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func (h *Handler) ExtendPlan(w http.ResponseWriter, r *http.Request) {
	log.Debug("Extending recurring plan")
	w.Header().Set("Content-Type", "application/json")

	planId, ok := pathPlanId(w, r)
	if !ok {
		return
	}

	var dto ExtendPlanDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(rest.ErrorResponse{Error: "Invalid extension request", Details: err.Error()})
		return
	}

	replacement, err := h.service.Extend(r.Context(), planId, dto.BookingId, dto.Reason)
	if err != nil {
		writePlanError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(replacementToDTO(replacement)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func replacementToDTO(b booking.Booking) booking.BookingDTO {
	return booking.BookingDTO{
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

func (h *Handler) SettlePlan(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	planId, ok := pathPlanId(w, r)
	if !ok {
		return
	}

	var dto SettlePlanDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	req := SettleRequest{BookingIds: dto.BookingIds}
	if dto.Month != "" {
		month, err := time.Parse("2006-01", dto.Month)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(rest.ErrorResponse{Error: "Invalid month", Details: "'month' must be in YYYY-MM format"})
			return
		}
		req.Month = &month
	}

	result, err := h.service.Settle(r.Context(), planId, req)
	if err != nil {
		writePlanError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(SettleResponseDTO{
		Count:       result.Count,
		TotalAmount: result.TotalAmount.String(),
	}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func (h *Handler) DeactivatePlan(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	planId, ok := pathPlanId(w, r)
	if !ok {
		return
	}

	if err := h.service.Deactivate(r.Context(), planId); err != nil {
		writePlanError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathPlanId(w http.ResponseWriter, r *http.Request) (int64, bool) {
	vars := mux.Vars(r)
	id, err := strconv.ParseInt(vars["planId"], 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(rest.ErrorResponse{
			Error:   "Invalid plan id",
			Details: "planId must be an integer",
		})
		return 0, false
	}
	return id, true
}

func writePlanError(w http.ResponseWriter, err error) {
	var conflict *booking.ConflictError
	switch {
	case errors.As(err, &conflict):
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(rest.ErrorResponse{Error: conflict.Error()})
	case errors.Is(err, ErrPlanNotFound), errors.Is(err, booking.ErrBookingNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrNoOccurrences),
		errors.Is(err, ErrMissingIdentity),
		errors.Is(err, ErrNoExtensionDate),
		errors.Is(err, ErrBookingNotInPlan),
		errors.Is(err, ErrSettleScope),
		errors.Is(err, ErrInvalidStartTime):
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(rest.ErrorResponse{Error: err.Error()})
	case errors.Is(err, org.ErrNoOrg):
		http.Error(w, "no organization in request", http.StatusForbidden)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func dtoToCreateInput(dto CreatePlanDTO) (CreatePlanInput, error) {
	startDate, err := time.ParseInLocation(dateFormat, dto.StartDate, time.Local)
	if err != nil {
		return CreatePlanInput{}, errors.New("'startDate' must be in YYYY-MM-DD format")
	}
	endDate, err := time.ParseInLocation(dateFormat, dto.EndDate, time.Local)
	if err != nil {
		return CreatePlanInput{}, errors.New("'endDate' must be in YYYY-MM-DD format")
	}
	var price *decimal.Decimal
	if dto.Price != nil {
		p, err := decimal.NewFromString(*dto.Price)
		if err != nil {
			return CreatePlanInput{}, errors.New("'price' must be a decimal number")
		}
		price = &p
	}
	return CreatePlanInput{
		CourtId:       dto.CourtId,
		UserId:        dto.UserId,
		MemberId:      dto.MemberId,
		DayOfWeek:     time.Weekday(dto.DayOfWeek),
		StartTime:     dto.StartTime,
		StartDate:     startDate,
		EndDate:       endDate,
		PriceOverride: price,
		PayInAdvance:  dto.PayInAdvance,
	}, nil
}

func planToDTO(p RecurringPlan) PlanDTO {
	return PlanDTO{
		Id:           p.Id,
		CourtId:      p.CourtId,
		UserId:       p.UserId,
		MemberId:     p.MemberId,
		DayOfWeek:    int(p.DayOfWeek),
		StartTime:    p.StartTime,
		StartDate:    p.StartDate.Format(dateFormat),
		EndDate:      p.EndDate.Format(dateFormat),
		TotalPrice:   p.TotalPrice.String(),
		Active:       p.Active,
		PayInAdvance: p.PaymentAdvance,
	}
}
