// Package accounting provides the cash-register arithmetic for shift reports.
//
// All functions are pure. Inputs are not validated; negative values are
// accepted and the caller is responsible for their meaning.
package accounting

import "math"

// CounterTolerance absorbs rounding to the smallest currency unit when
// comparing cash-register counters against computed revenue.
const CounterTolerance = 0.01

// TotalRevenue computes the shift revenue across all payment channels,
// net of returns.
func TotalRevenue(cashIn, cardIn, qrIn, cashReturn, cardReturn float64) float64 {
	return cashIn + cardIn + qrIn - cashReturn - cardReturn
}

// ClosingCash computes the cash drawer balance at the end of a shift.
func ClosingCash(cashStart, cashIn, incassation, salary, rko, pko, exchange float64) float64 {
	return cashStart + cashIn - incassation - salary - rko + pko + exchange
}

// CounterMatchesRevenue reports whether the register counter delta agrees
// with the computed total revenue within CounterTolerance. It is an advisory
// consistency check; callers decide whether to act on a mismatch.
func CounterMatchesRevenue(counterStart, counterEnd, totalRevenue float64) bool {
	return math.Abs((counterEnd-counterStart)-totalRevenue) < CounterTolerance
}
