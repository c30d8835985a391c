package approval

import (
	"fmt"

	"github.com/robertarktes/corporate-rail-bookings/internal/domain"
)

// FormatTravelData renders a travel snapshot on one line for approvers.
func FormatTravelData(td domain.TravelData) string {
	if td.Train == nil {
		return "Travel booking"
	}
	origin, destination := td.Origin, td.Destination
	if origin == "" {
		origin = "Unknown"
	}
	if destination == "" {
		destination = "Unknown"
	}
	currency := td.Train.Currency
	if currency == "" {
		currency = "EUR"
	}
	class := td.Train.Class
	if class == "" {
		class = "Standard"
	}
	date := ""
	if !td.Train.DepartureDate.IsZero() {
		date = td.Train.DepartureDate.Format("2006-01-02")
	}
	return fmt.Sprintf("%s → %s | %s %s | %s | %s", origin, destination, currency, td.Train.Price.StringFixed(2), class, date)
}

// ViolationSummary is the headline shown for a verdict.
func ViolationSummary(v domain.PolicyVerdict) string {
	switch {
	case len(v.Messages) > 0:
		return v.Messages[0]
	case v.Result == domain.VerdictApprovalRequired:
		return "Requires manager approval"
	case v.Result == domain.VerdictOutOfPolicy:
		return "Out of company policy"
	default:
		return "Policy violation"
	}
}
