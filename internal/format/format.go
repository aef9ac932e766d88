// Package format renders caption templates with contact-specific placeholders.
package format

import (
	"strings"
	"time"

	"github.com/wadesk/wadesk/internal/models"
)

// Apply substitutes the supported placeholders in template for values taken
// from the contact. Unknown placeholders pass through untouched. A nil
// contact substitutes empty values. Pure, no I/O.
//
// Supported placeholders: {{name}}, {{firstName}}, {{number}}, {{greeting}}.
func Apply(template string, contact *models.Contact) string {
	return applyAt(template, contact, time.Now())
}

// applyAt is Apply with an injectable clock for the greeting placeholder.
func applyAt(template string, contact *models.Contact, now time.Time) string {
	var name, number string
	if contact != nil {
		name = contact.Name
		number = contact.Number
	}

	r := strings.NewReplacer(
		"{{name}}", name,
		"{{firstName}}", firstName(name),
		"{{number}}", number,
		"{{greeting}}", greeting(now.Hour()),
	)
	return r.Replace(template)
}

func firstName(name string) string {
	if i := strings.IndexByte(name, ' '); i > 0 {
		return name[:i]
	}
	return name
}

// greeting maps an hour of day to a salutation.
func greeting(hour int) string {
	switch {
	case hour >= 5 && hour < 12:
		return "Good morning"
	case hour >= 12 && hour < 18:
		return "Good afternoon"
	default:
		return "Good evening"
	}
}
