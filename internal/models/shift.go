package models

import "time"

// Shift records one employee's cash-register activity for one work period.
// TotalRevenue and CashEnd are derived server-side on submission; values
// supplied by the client for those fields are ignored.
type Shift struct {
	ID           int64     `json:"id,omitempty"`
	UserID       string    `json:"user_id"`
	Clinic       string    `json:"clinic"`
	Date         Date      `json:"date"`
	ShiftNumber  int       `json:"shift_number"`
	CounterStart float64   `json:"counter_start"`
	CounterEnd   float64   `json:"counter_end"`
	CashIn       float64   `json:"cash_in"`
	CardIn       float64   `json:"card_in"`
	QRIn         float64   `json:"qr_in"`
	CashReturn   float64   `json:"cash_return"`
	CardReturn   float64   `json:"card_return"`
	CashStart    float64   `json:"cash_start"`
	CashEnd      float64   `json:"cash_end"`
	Incassation  float64   `json:"incassation"`
	Salary       float64   `json:"salary"`
	Exchange     float64   `json:"exchange"`
	PKO          float64   `json:"pko"`
	RKO          float64   `json:"rko"`
	TotalRevenue float64   `json:"total_revenue"`
	ReceiptNum   string    `json:"receipt_number,omitempty"`
	SubmittedBy  string    `json:"submitted_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
