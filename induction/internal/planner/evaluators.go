package planner

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/metro-depot/fleet/induction/internal/models"
)

const dateLayout = "2006-01-02"

// planDay is the calendar day of the planning date in its own zone.
func planDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// recordDay is the calendar day of a stored record date. Date-only values are
// persisted as UTC midnight.
func recordDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func checkFitnessCertificates(s Snapshot, env Env) Finding {
	f := Finding{Key: MetaFitnessCertificate}
	if len(s.Certificates) == 0 {
		f.Severity = Blocking
		f.Reasons = []string{"No fitness certificates found"}
		f.Alerts = []string{"Missing fitness certificates"}
		f.Summary = "No fitness certificates on file"
		return f
	}

	today := planDay(env.Date)
	warnUntil := today.Add(env.Thresholds.ExpiryWarning)
	var expired, expiring []string
	for _, c := range s.Certificates {
		expiry := recordDay(c.ExpiryDate)
		switch {
		case !expiry.After(today):
			expired = append(expired, fmt.Sprintf("%s (expired %s)", c.CertificateType, expiry.Format(dateLayout)))
			f.Alerts = append(f.Alerts, fmt.Sprintf("Expired %s Certificate", c.CertificateType))
		case !expiry.After(warnUntil):
			expiring = append(expiring, fmt.Sprintf("%s (expires %s)", c.CertificateType, expiry.Format(dateLayout)))
		}
	}

	switch {
	case len(expired) > 0:
		f.Severity = Blocking
		f.Reasons = []string{"Fitness certificates expired: " + strings.Join(expired, ", ")}
		f.Summary = "Expired certificates: " + strings.Join(expired, ", ")
	case len(expiring) > 0:
		f.Reasons = []string{"Fitness certificates expiring soon: " + strings.Join(expiring, ", ")}
		f.Summary = "Expiring soon: " + strings.Join(expiring, ", ")
	default:
		f.Summary = "All certificates valid"
	}
	return f
}

func checkJobCards(s Snapshot, _ Env) Finding {
	f := Finding{Key: MetaJobCards, Summary: "No pending maintenance"}
	var critical, regular []string
	for _, jc := range s.JobCards {
		if jc.Status != models.JobCardOpen {
			continue
		}
		desc := fmt.Sprintf("%s (%s)", jc.JobCardNumber, jc.Description)
		if jc.Priority == models.PriorityHigh {
			critical = append(critical, desc)
			f.Alerts = append(f.Alerts, "Critical maintenance: "+jc.JobCardNumber)
		} else {
			regular = append(regular, desc)
		}
	}
	if len(critical) == 0 && len(regular) == 0 {
		return f
	}

	// Any open card keeps the trainset in the inspection bay line, critical or not.
	f.Severity = Blocking
	if len(critical) > 0 {
		f.Reasons = append(f.Reasons, "Critical maintenance pending: "+strings.Join(critical, ", "))
	}
	if len(regular) > 0 {
		f.Reasons = append(f.Reasons, "Regular maintenance pending: "+strings.Join(regular, ", "))
	}
	f.Summary = "Open jobs: " + strings.Join(append(critical, regular...), ", ")
	return f
}

func priorityRank(p models.Priority) int {
	switch p {
	case models.PriorityHigh:
		return 3
	case models.PriorityMedium:
		return 2
	case models.PriorityLow:
		return 1
	}
	return 0
}

func checkBrandingPriority(s Snapshot, env Env) Finding {
	f := Finding{Key: MetaBrandingPriority, Summary: "Low"}
	today := planDay(env.Date)
	var best *models.BrandingContract
	for i := range s.Branding {
		bc := &s.Branding[i]
		if recordDay(bc.ContractStart).After(today) || today.After(recordDay(bc.ContractEnd)) {
			continue
		}
		// strict comparison keeps the first contract among equal levels
		if best == nil || priorityRank(bc.PriorityLevel) > priorityRank(best.PriorityLevel) {
			best = bc
		}
	}
	if best == nil {
		return f
	}

	switch best.PriorityLevel {
	case models.PriorityHigh:
		f.Severity = Preferred
		f.Reasons = []string{"High priority branding commitment: " + best.BrandName}
		f.Summary = fmt.Sprintf("High (%s)", best.BrandName)
	case models.PriorityMedium:
		f.Reasons = []string{"Medium priority branding: " + best.BrandName}
		f.Summary = fmt.Sprintf("Medium (%s)", best.BrandName)
	default:
		f.Summary = fmt.Sprintf("Low (%s)", best.BrandName)
	}
	return f
}

func formatKm(km float64) string {
	return message.NewPrinter(language.English).Sprintf("%.0f km", km)
}

func formatKmDelta(diff float64) string {
	return fmt.Sprintf("%+.0f km", diff)
}

// checkMileageBalance never changes status; mileage only shapes the reasoning.
func checkMileageBalance(s Snapshot, env Env) Finding {
	f := Finding{Key: MetaMileage, Summary: formatKm(s.Mileage)}
	diff := s.Mileage - env.FleetAverage
	switch {
	case diff > env.Thresholds.MileageDeviation:
		f.Reasons = []string{fmt.Sprintf("High mileage trainset (%s, %s from average)", formatKm(s.Mileage), formatKmDelta(diff))}
	case diff < -env.Thresholds.MileageDeviation:
		f.Reasons = []string{fmt.Sprintf("Low mileage trainset preferred for service (%s, %s from average)", formatKm(s.Mileage), formatKmDelta(diff))}
	}
	return f
}

// sameDay reports whether the record date falls on the planning day.
func sameDay(record, date time.Time) bool {
	return recordDay(record).Equal(planDay(date))
}

func checkCleaningSlot(s Snapshot, env Env) Finding {
	f := Finding{Key: MetaCleaningSlot, Summary: "Available"}
	for _, slot := range s.CleaningSlots {
		if slot.Status != models.CleaningScheduled || !sameDay(slot.SlotDate, env.Date) {
			continue
		}
		f.Reasons = []string{fmt.Sprintf("Scheduled for cleaning: %s in %s", slot.CleaningType, slot.BayNumber)}
		f.Summary = fmt.Sprintf("Scheduled (%s, %s)", slot.CleaningType, slot.BayNumber)
		return f
	}
	return f
}

func checkStablingBay(s Snapshot, _ Env) Finding {
	f := Finding{Key: MetaStablingBay}
	bay := s.StablingBay
	switch {
	case bay == "":
		f.Reasons = []string{"No stabling bay assigned"}
		f.Summary = "Not assigned"
	case s.Bay == nil:
		f.Reasons = []string{fmt.Sprintf("Assigned bay %s not found", bay)}
		f.Summary = bay + " (not found)"
	case !s.Bay.IsAvailable:
		f.Reasons = []string{fmt.Sprintf("Assigned bay %s unavailable", bay)}
		f.Summary = bay + " (unavailable)"
	case s.Bay.MaintenanceRequired:
		f.Reasons = []string{fmt.Sprintf("Assigned bay %s requires maintenance", bay)}
		f.Summary = bay + " (maintenance required)"
	default:
		f.Summary = bay + " (available)"
	}
	return f
}
