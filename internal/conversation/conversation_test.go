// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package conversation

import (
	"strings"
	"testing"

	"github.com/northbound/kbengine/internal/apperrors"
	"github.com/northbound/kbengine/internal/models"
)

func TestValidateTitle(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid title", "Onboarding questions", false},
		{"empty", "", true},
		{"exactly max length", strings.Repeat("a", models.MaxConversationTitleLen), false},
		{"over max length", strings.Repeat("a", models.MaxConversationTitleLen+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateTitle(tt.input)
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
