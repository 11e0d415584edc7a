// StudySync - Live Course Progress Leaderboards
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/studysync

package catalog

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/tomtom215/studysync/internal/logging"
)

func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

const sampleSummary = `{
  "course_id": 20871,
  "course_name": "UE23CS352A - Machine Learning",
  "download_date": "2026-01-10 09:12:44",
  "total_units": 2,
  "units": [
    {
      "unit_number": 1,
      "unit_id": "u-11",
      "unit_name": "Unit 1: Introduction",
      "classes": [
        {"class_number": 1, "class_id": 4412, "class_name": "Overview", "filename": "01_Overview.pdf", "status": "success"},
        {"class_number": 2, "class_id": "4413", "class_name": "Linear Models", "filename": null, "status": "failed"},
        {"class_number": 3, "class_id": 4414, "class_name": "Regularization", "filename": "03_Regularization.pdf", "status": "success"}
      ],
      "total_files": 2
    },
    {
      "unit_number": 2,
      "unit_id": "u-12",
      "unit_name": "Unit 2: Trees",
      "classes": [],
      "total_files": 0
    }
  ]
}`

func TestParseSummary(t *testing.T) {
	course, err := ParseSummary([]byte(sampleSummary))
	if err != nil {
		t.Fatalf("ParseSummary: %v", err)
	}

	if course.ID != "20871" {
		t.Errorf("ID = %q, want 20871", course.ID)
	}
	if got := course.Total(); got != 2 {
		t.Errorf("Total = %d, want 2", got)
	}
	if got, want := course.FileKeys(), []string{"1-4412", "1-4414"}; !reflect.DeepEqual(got, want) {
		t.Errorf("FileKeys = %v, want %v", got, want)
	}
}

func TestParseSummary_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{`},
		{"missing course id", `{"course_name": "x", "units": []}`},
		{"class without id", `{"course_id": "1", "units": [{"unit_number": 1, "classes": [{"status": "success"}]}]}`},
		{"bool id", `{"course_id": true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseSummary([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestCatalog_Load(t *testing.T) {
	root := t.TempDir()
	courseDir := filepath.Join(root, "ML")
	if err := os.MkdirAll(courseDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(courseDir, "ml_course_summary.json"), []byte(sampleSummary), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "broken_course_summary.json"), []byte(`{`), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "notes.json"), []byte(`{}`), 0o600); err != nil {
		t.Fatal(err)
	}

	cat := New()
	n, err := cat.Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n != 1 {
		t.Fatalf("loaded %d courses, want 1", n)
	}

	if got := cat.Total("20871"); got != 2 {
		t.Errorf("Total(20871) = %d, want 2", got)
	}
	if got := cat.Total("unknown"); got != 0 {
		t.Errorf("Total(unknown) = %d, want 0", got)
	}
	if _, err := cat.Lookup("unknown"); !errors.Is(err, ErrCourseNotFound) {
		t.Errorf("Lookup(unknown) err = %v", err)
	}
	if courses := cat.Courses(); len(courses) != 1 || courses[0].Source == "" {
		t.Errorf("Courses() = %+v", courses)
	}
}
