package app

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies) {

	// Courts
	r.HandleFunc("/api/court", deps.CourtHandler.ListCourts).Methods("GET")
	r.HandleFunc("/api/court/{courtId}", deps.CourtHandler.GetCourt).Methods("GET")

	// Members
	r.HandleFunc("/api/member", deps.MemberHandler.ListMembers).Methods("GET")
	r.HandleFunc("/api/member/{memberId}", deps.MemberHandler.GetMember).Methods("GET")
	r.HandleFunc("/api/member/{memberId}", deps.MemberHandler.UpdateMember).Methods("PUT")

	// Bookings
	r.HandleFunc("/api/booking", deps.BookingHandler.CreateBooking).Methods("POST")
	r.HandleFunc("/api/booking", deps.BookingHandler.ListBookings).
		Queries("courtId", "{courtId}", "from", "{from}", "to", "{to}").Methods("GET")
	r.HandleFunc("/api/booking/{bookingId}", deps.BookingHandler.UpdateBooking).Methods("PUT")
	r.HandleFunc("/api/booking/{bookingId}", deps.BookingHandler.CancelBooking).Methods("DELETE")
	r.HandleFunc("/api/booking/{bookingId}/settle", deps.BookingHandler.SettleBooking).Methods("POST")

	// Recurring plans
	r.HandleFunc("/api/plan", deps.PlanHandler.ListPlans).Methods("GET")
	r.HandleFunc("/api/plan", deps.PlanHandler.CreatePlan).Methods("POST")
	r.HandleFunc("/api/plan/{planId}", deps.PlanHandler.GetPlan).Methods("GET")
	r.HandleFunc("/api/plan/{planId}", deps.PlanHandler.UpdatePlan).Methods("PUT")
	r.HandleFunc("/api/plan/{planId}", deps.PlanHandler.DeactivatePlan).Methods("DELETE")
	r.HandleFunc("/api/plan/{planId}/extend", deps.PlanHandler.ExtendPlan).Methods("POST")
	r.HandleFunc("/api/plan/{planId}/settle", deps.PlanHandler.SettlePlan).Methods("POST")
}
