package mailer

import (
	"errors"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		want     string
		wantKind ValidationKind
	}{
		{name: "normalizes case and whitespace", input: "  Test@Example.COM  ", want: "test@example.com"},
		{name: "plain address", input: "a@b.com", want: "a@b.com"},
		{name: "subdomain", input: "jane.doe@mail.example.co.uk", want: "jane.doe@mail.example.co.uk"},
		{name: "empty", input: "", wantKind: EmailRequired},
		{name: "whitespace only", input: " \t\n ", wantKind: EmailRequired},
		{name: "missing domain", input: "test@", wantKind: InvalidFormat},
		{name: "missing at", input: "testexample.com", wantKind: InvalidFormat},
		{name: "missing dot in domain", input: "test@localhost", wantKind: InvalidFormat},
		{name: "inner space", input: "te st@example.com", wantKind: InvalidFormat},
		{name: "two at signs", input: "a@b@example.com", wantKind: InvalidFormat},
		{name: "too long", input: strings.Repeat("a", 250) + "@example.com", wantKind: TooLong},
		{name: "exactly 254", input: strings.Repeat("a", 242) + "@example.com", want: strings.Repeat("a", 242) + "@example.com"},
		{name: "script tag", input: "test<script>@example.com", wantKind: InvalidCharacters},
		{name: "plus sign", input: "jane+cv@example.com", wantKind: InvalidCharacters},
		{name: "quote", input: "o'brien@example.com", wantKind: InvalidCharacters},
		{name: "semicolon", input: "a;b@example.com", wantKind: InvalidCharacters},
		{name: "percent", input: "a%b@example.com", wantKind: InvalidCharacters},
		{name: "ampersand", input: "a&b@example.com", wantKind: InvalidCharacters},
		{name: "parenthesis", input: "a(b)@example.com", wantKind: InvalidCharacters},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Validate(tt.input)
			if tt.wantKind == 0 {
				if err != nil {
					t.Fatalf("Validate(%q) error = %v", tt.input, err)
				}
				if got != tt.want {
					t.Errorf("Validate(%q) = %q, want %q", tt.input, got, tt.want)
				}
				return
			}

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate(%q) error = %v, want *ValidationError", tt.input, err)
			}
			if verr.Kind != tt.wantKind {
				t.Errorf("Validate(%q) kind = %v, want %v", tt.input, verr.Kind, tt.wantKind)
			}
			if got != "" {
				t.Errorf("Validate(%q) returned %q alongside an error", tt.input, got)
			}
		})
	}
}

func TestValidationError_Is(t *testing.T) {
	_, err := Validate("test@")
	if !errors.Is(err, &ValidationError{Kind: InvalidFormat}) {
		t.Error("expected errors.Is to match on kind")
	}
	if errors.Is(err, &ValidationError{Kind: TooLong}) {
		t.Error("errors.Is matched a different kind")
	}
}

func TestMask(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"jane@example.com", "j***@example.com"},
		{"a@b.com", "a***@b.com"},
		{"not-an-address", "***"},
		{"@example.com", "***"},
	}
	for _, tt := range tests {
		if got := Mask(tt.in); got != tt.want {
			t.Errorf("Mask(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
