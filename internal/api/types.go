package api

import "encoding/json"

// Page is the backend's pagination envelope.
type Page[T any] struct {
	Content       []T `json:"content"`
	TotalElements int `json:"totalElements"`
	TotalPages    int `json:"totalPages"`
	Number        int `json:"number"`
	Size          int `json:"size"`
}

type HealthEvent struct {
	ID            int64  `json:"id"`
	GoatID        string `json:"goatId"`
	Type          string `json:"type"`
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	ScheduledDate string `json:"scheduledDate"`
	Status        string `json:"status"`
}

// HealthAlerts summarises the health agenda around today.
type HealthAlerts struct {
	DueTodayCount int           `json:"dueTodayCount"`
	UpcomingCount int           `json:"upcomingCount"`
	OverdueCount  int           `json:"overdueCount"`
	DueTodayTop   []HealthEvent `json:"dueTodayTop"`
	UpcomingTop   []HealthEvent `json:"upcomingTop"`
	OverdueTop    []HealthEvent `json:"overdueTop"`
	WindowDays    int           `json:"windowDays"`
}

type CalendarQuery struct {
	From   string
	To     string
	Status string
	Page   int
	Size   int
}

type PregnancyDiagnosisAlert struct {
	GoatID           string `json:"goatId"`
	EligibleDate     string `json:"eligibleDate"`
	DaysOverdue      int    `json:"daysOverdue"`
	LastCoverageDate string `json:"lastCoverageDate,omitempty"`
	LastCheckDate    string `json:"lastCheckDate,omitempty"`
}

type PregnancyDiagnosisAlerts struct {
	TotalPending int                       `json:"totalPending"`
	Alerts       []PregnancyDiagnosisAlert `json:"alerts"`
}

type DryOffAlert struct {
	GoatID             string `json:"goatId"`
	LactationID        int64  `json:"lactationId"`
	StartDatePregnancy string `json:"startDatePregnancy,omitempty"`
	BreedingDate       string `json:"breedingDate,omitempty"`
	ConfirmDate        string `json:"confirmDate,omitempty"`
	DryOffDate         string `json:"dryOffDate,omitempty"`
	GestationDays      int    `json:"gestationDays"`
	DaysOverdue        int    `json:"daysOverdue"`
	DryAtPregnancyDays int    `json:"dryAtPregnancyDays"`
}

type DryOffAlerts struct {
	TotalPending int           `json:"totalPending"`
	Alerts       []DryOffAlert `json:"alerts"`
}

// AlertQuery pages the reproduction and lactation alert endpoints.
// ReferenceDate is YYYY-MM-DD; empty lets the backend use today.
type AlertQuery struct {
	ReferenceDate string
	Page          int
	Size          int
}

type InventoryMovement struct {
	ID               int64       `json:"movementId"`
	Type             string      `json:"type"`
	ItemID           string      `json:"itemId"`
	LotID            string      `json:"lotId,omitempty"`
	Quantity         json.Number `json:"quantity"`
	MovementDate     string      `json:"movementDate,omitempty"`
	ResultingBalance json.Number `json:"resultingBalance,omitempty"`
}

// MovementResult reports whether the backend created the movement (201) or
// recognised the idempotency key and replayed the earlier result (200).
type MovementResult struct {
	Movement   InventoryMovement
	StatusCode int
	Replayed   bool
	// DecodeErr is set when the status was a success but the body did not
	// decode; Movement is then zero.
	DecodeErr error
}

type errorBody struct {
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors"`
}
