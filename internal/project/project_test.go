// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package project

import (
	"strings"
	"testing"

	"github.com/northbound/kbengine/internal/apperrors"
	"github.com/northbound/kbengine/internal/models"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid name", "Research Notes", false},
		{"empty", "", true},
		{"whitespace only", "   ", true},
		{"exactly max length", strings.Repeat("a", models.MaxProjectNameLen), false},
		{"over max length", strings.Repeat("a", models.MaxProjectNameLen+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateName(tt.input)
			if tt.wantErr && err == nil {
				t.Fatalf("expected an error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr {
				if kind, ok := apperrors.KindOf(err); !ok || kind != apperrors.KindValidation {
					t.Fatalf("expected a validation error, got %v", err)
				}
			}
		})
	}
}

func TestValidateDescription(t *testing.T) {
	if err := validateDescription(""); err != nil {
		t.Fatalf("empty description should be valid: %v", err)
	}
	if err := validateDescription(strings.Repeat("a", models.MaxProjectDescLen)); err != nil {
		t.Fatalf("description at max length should be valid: %v", err)
	}
	if err := validateDescription(strings.Repeat("a", models.MaxProjectDescLen+1)); err == nil {
		t.Fatalf("expected an error for an over-length description")
	}
}
