package models

import "time"

// ReservationStatus represents the lifecycle state of a reservation.
type ReservationStatus string

const (
	StatusBooked    ReservationStatus = "booked"
	StatusArrived   ReservationStatus = "arrived"
	StatusDeparted  ReservationStatus = "departed"
	StatusCancelled ReservationStatus = "cancelled"
)

// ReservationSource tags where a reservation came from.
type ReservationSource string

const (
	SourceManual  ReservationSource = "manual"
	SourceAI      ReservationSource = "ai"
	SourcePhone   ReservationSource = "phone"
	SourceWeb     ReservationSource = "web"
	SourceChannel ReservationSource = "channel"
)

// DefaultDurationMinutes is used when a reservation carries no duration.
const DefaultDurationMinutes = 60

// Reservation references its restaurant, table and waiter by id.
type Reservation struct {
	ID               string            `json:"id" bson:"_id"`
	RestaurantID     string            `json:"restaurantId" bson:"restaurantId"`
	CustomerName     string            `json:"customerName" bson:"customerName"`
	Phone            string            `json:"phone" bson:"phone"`
	Email            string            `json:"email,omitempty" bson:"email,omitempty"`
	PartySize        int               `json:"partySize" bson:"partySize"`
	Time             time.Time         `json:"time" bson:"time"`
	DurationMinutes  int               `json:"durationMinutes,omitempty" bson:"durationMinutes,omitempty"`
	TableID          string            `json:"tableId,omitempty" bson:"tableId,omitempty"`
	AssignedWaiterID string            `json:"assignedWaiterId,omitempty" bson:"assignedWaiterId,omitempty"`
	Status           ReservationStatus `json:"status" bson:"status"`
	ArrivedAt        *time.Time        `json:"arrivedAt,omitempty" bson:"arrivedAt,omitempty"`
	DepartedAt       *time.Time        `json:"departedAt,omitempty" bson:"departedAt,omitempty"`
	BillAmount       float64           `json:"billAmount" bson:"billAmount"`
	SpecialRequests  string            `json:"specialRequests,omitempty" bson:"specialRequests,omitempty"`
	Source           ReservationSource `json:"source" bson:"source"`
	Archived         bool              `json:"archived" bson:"archived"`
	ArchivedAt       *time.Time        `json:"archivedAt,omitempty" bson:"archivedAt,omitempty"`
	Version          int               `json:"version" bson:"version"`
	CreatedAt        time.Time         `json:"createdAt" bson:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt" bson:"updatedAt"`
}

// Duration returns the reservation length, defaulting to one hour.
func (r *Reservation) Duration() time.Duration {
	if r.DurationMinutes <= 0 {
		return DefaultDurationMinutes * time.Minute
	}
	return time.Duration(r.DurationMinutes) * time.Minute
}

// End is the end of the unbuffered reservation window.
func (r *Reservation) End() time.Time {
	return r.Time.Add(r.Duration())
}

// IsTerminal reports whether the reservation no longer takes part in conflict checks or load counts.
func (r *Reservation) IsTerminal() bool {
	return r.Archived || r.Status == StatusDeparted || r.Status == StatusCancelled
}

// IsActive is the inverse of IsTerminal.
func (r *Reservation) IsActive() bool {
	return !r.IsTerminal()
}

// CountsTowards reports whether the reservation is part of the waiter's active load.
func (r *Reservation) CountsTowards(waiterID string) bool {
	return waiterID != "" && r.AssignedWaiterID == waiterID && r.IsActive()
}

// ReservationDraft is the input to reservation creation.
type ReservationDraft struct {
	RestaurantID     string            `json:"restaurantId" validate:"required"`
	CustomerName     string            `json:"customerName" validate:"required"`
	Phone            string            `json:"phone" validate:"required"`
	Email            string            `json:"email,omitempty" validate:"omitempty,email"`
	PartySize        int               `json:"partySize" validate:"min=1"`
	Time             time.Time         `json:"time" validate:"required"`
	DurationMinutes  int               `json:"durationMinutes,omitempty" validate:"min=0"`
	TableID          string            `json:"tableId,omitempty"`
	AssignedWaiterID string            `json:"assignedWaiterId,omitempty"`
	SpecialRequests  string            `json:"specialRequests,omitempty"`
	Source           ReservationSource `json:"source,omitempty" validate:"omitempty,oneof=manual ai phone web channel"`
}
