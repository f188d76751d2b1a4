package models

import "time"

// Severity tags an alert for the notification sink.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// AlertKind identifies which monitor sweep produced an alert.
type AlertKind string

const (
	AlertUpcoming AlertKind = "upcoming"
	AlertCleaning AlertKind = "cleaning"
	AlertStaffing AlertKind = "staffing"
)

// Alert is an advisory notification. Key is stable for the condition it describes.
type Alert struct {
	Key           string    `json:"key"`
	Kind          AlertKind `json:"kind"`
	Severity      Severity  `json:"severity"`
	Text          string    `json:"text"`
	RestaurantID  string    `json:"restaurantId"`
	ReservationID string    `json:"reservationId,omitempty"`
	TableID       string    `json:"tableId,omitempty"`
	WaiterID      string    `json:"waiterId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}
