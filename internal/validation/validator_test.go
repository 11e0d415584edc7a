// StudySync - Live Course Progress Leaderboards
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/studysync

package validation

import (
	"strings"
	"testing"

	"github.com/tomtom215/studysync/internal/models"
)

func TestGetValidator_Singleton(t *testing.T) {
	v1 := GetValidator()
	v2 := GetValidator()

	if v1 == nil {
		t.Fatal("GetValidator() should not return nil")
	}
	if v1 != v2 {
		t.Error("GetValidator() should return the same instance")
	}
}

func boolPtr(b bool) *bool { return &b }

func TestValidateStruct_ProgressUpdate(t *testing.T) {
	tests := []struct {
		name      string
		input     models.ProgressUpdateMessage
		wantField string
		wantTag   string
	}{
		{
			name:  "valid",
			input: models.NewProgressUpdate("C1", "1-10", true, "QuietOtter417", 10),
		},
		{
			name:  "valid without username or total",
			input: models.ProgressUpdateMessage{CourseID: "C1", FileKey: "1-10", IsComplete: boolPtr(false)},
		},
		{
			name:      "missing isComplete",
			input:     models.ProgressUpdateMessage{CourseID: "C1", FileKey: "1-10"},
			wantField: "isComplete",
			wantTag:   "required",
		},
		{
			name:      "missing courseId",
			input:     models.ProgressUpdateMessage{FileKey: "1-10", IsComplete: boolPtr(true)},
			wantField: "courseId",
			wantTag:   "required",
		},
		{
			name:      "fileKey with whitespace",
			input:     models.ProgressUpdateMessage{CourseID: "C1", FileKey: "1 10", IsComplete: boolPtr(true)},
			wantField: "fileKey",
			wantTag:   "wirekey",
		},
		{
			name:      "negative total",
			input:     models.ProgressUpdateMessage{CourseID: "C1", FileKey: "1-10", IsComplete: boolPtr(true), Total: -1},
			wantField: "total",
			wantTag:   "gte",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr := ValidateStruct(&tt.input)
			if tt.wantField == "" {
				if verr != nil {
					t.Fatalf("unexpected error: %v", verr)
				}
				return
			}
			if verr == nil {
				t.Fatal("expected validation error")
			}

			found := false
			for _, e := range verr.Errors() {
				if e.Field() == tt.wantField && e.Tag() == tt.wantTag {
					found = true
				}
			}
			if !found {
				t.Errorf("expected %s/%s, got %v", tt.wantField, tt.wantTag, verr)
			}
		})
	}
}

func TestValidateStruct_SetUsernameBlank(t *testing.T) {
	for _, name := range []string{"", "   ", "\t\n"} {
		msg := models.SetUsernameMessage{Username: name}
		if ValidateStruct(&msg) == nil {
			t.Errorf("username %q should fail validation", name)
		}
	}

	msg := models.SetUsernameMessage{Username: "  Bob  "}
	if verr := ValidateStruct(&msg); verr != nil {
		t.Errorf("padded username should validate, got %v", verr)
	}

	msg = models.SetUsernameMessage{Username: strings.Repeat("x", 65)}
	verr := ValidateStruct(&msg)
	if verr == nil {
		t.Fatal("65-character username should fail")
	}
	if !strings.Contains(verr.Error(), "at most 64 characters") {
		t.Errorf("unexpected message: %s", verr.Error())
	}
}

func TestValidateStruct_SyncStudyItems(t *testing.T) {
	ok := models.SyncStudyItemsMessage{CourseID: "C1", FileKeys: []string{}}
	if verr := ValidateStruct(&ok); verr != nil {
		t.Errorf("empty list should be valid, got %v", verr)
	}

	bad := models.SyncStudyItemsMessage{CourseID: "C1", FileKeys: []string{"1-1", ""}}
	if ValidateStruct(&bad) == nil {
		t.Error("empty fileKey element should fail")
	}
}

func TestValidateVar(t *testing.T) {
	if verr := ValidateVar("courseId", "12345", "required,wirekey,max=128"); verr != nil {
		t.Errorf("unexpected error: %v", verr)
	}

	verr := ValidateVar("courseId", "", "required,wirekey,max=128")
	if verr == nil {
		t.Fatal("empty courseId should fail")
	}
	if got := verr.Errors()[0].Field(); got != "courseId" {
		t.Errorf("Field() = %q, want courseId", got)
	}
}

func TestToAPIError(t *testing.T) {
	single := ValidateStruct(&models.RequestLeaderboardMessage{})
	if single == nil {
		t.Fatal("expected error")
	}
	apiErr := single.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("Code = %q", apiErr.Code)
	}
	if apiErr.Details["field"] != "courseId" {
		t.Errorf("Details[field] = %v", apiErr.Details["field"])
	}

	multi := ValidateStruct(&models.ProgressUpdateMessage{})
	if multi == nil {
		t.Fatal("expected error")
	}
	apiErr = multi.ToAPIError()
	fields, ok := apiErr.Details["fields"].([]map[string]interface{})
	if !ok || len(fields) < 3 {
		t.Errorf("expected at least 3 field errors, got %v", apiErr.Details)
	}
}
