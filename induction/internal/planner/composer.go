package planner

import (
	"strings"
)

// Compose renders the one-sentence explanation attached to a verdict.
func Compose(number string, status Status, reasons, alerts []string) string {
	var b strings.Builder
	b.WriteString("Trainset ")
	b.WriteString(number)
	b.WriteString(" marked ")
	b.WriteString(string(status))

	switch {
	case len(alerts) > 0:
		b.WriteString(" because ")
		b.WriteString(strings.Join(alerts, " and "))
	case len(reasons) > 0:
		b.WriteString(" because ")
		b.WriteString(strings.ToLower(reasons[0]))
	default:
		b.WriteString(" based on standard operating parameters")
	}

	if len(reasons) > 1 {
		b.WriteString(". Additional considerations: ")
		b.WriteString(strings.Join(reasons[1:], "; "))
	}
	return b.String()
}
