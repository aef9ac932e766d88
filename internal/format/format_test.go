package format

import (
	"testing"
	"time"

	"github.com/wadesk/wadesk/internal/models"
)

func TestApply_NamePlaceholders(t *testing.T) {
	contact := &models.Contact{Name: "Alice Santos", Number: "5511999990000"}

	got := Apply("Hi {{firstName}}, ticket for {{name}} ({{number}})", contact)
	want := "Hi Alice, ticket for Alice Santos (5511999990000)"
	if got != want {
		t.Errorf("Apply = %q, want %q", got, want)
	}
}

func TestApply_NilContact(t *testing.T) {
	got := Apply("Hello {{name}}!", nil)
	if got != "Hello !" {
		t.Errorf("Apply = %q", got)
	}
}

func TestApply_NoPlaceholders(t *testing.T) {
	got := Apply("plain text", &models.Contact{Name: "Bob"})
	if got != "plain text" {
		t.Errorf("Apply = %q", got)
	}
}

func TestApply_UnknownPlaceholderPassesThrough(t *testing.T) {
	got := Apply("{{protocol}}", &models.Contact{Name: "Bob"})
	if got != "{{protocol}}" {
		t.Errorf("Apply = %q", got)
	}
}

func TestGreetingByHour(t *testing.T) {
	tests := []struct {
		hour int
		want string
	}{
		{6, "Good morning"},
		{11, "Good morning"},
		{12, "Good afternoon"},
		{17, "Good afternoon"},
		{18, "Good evening"},
		{23, "Good evening"},
		{3, "Good evening"},
	}
	for _, tt := range tests {
		now := time.Date(2025, 6, 1, tt.hour, 0, 0, 0, time.UTC)
		got := applyAt("{{greeting}}", nil, now)
		if got != tt.want {
			t.Errorf("hour %d: greeting = %q, want %q", tt.hour, got, tt.want)
		}
	}
}
