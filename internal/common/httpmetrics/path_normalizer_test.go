package httpmetrics

import "testing"

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "/"},
		{"/", "/"},
		{"/api/tasks", "/api/tasks"},
		{"/api/tasks/3f1c2a9e-5d8b-4c7a-9e21-0b6f4d2a1c88", "/api/tasks/{id}"},
		{"/api/tasks/42", "/api/tasks/{id}"},
		{"/api/auth/me", "/api/auth/me"},
	}

	for _, tt := range tests {
		if got := NormalizePath(tt.in); got != tt.want {
			t.Errorf("NormalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
