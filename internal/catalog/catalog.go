// StudySync - Live Course Progress Leaderboards
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/studysync

// Package catalog reads the course summaries written by the material scraper
// (<prefix>_course_summary.json, one per course directory) and answers "how many
// files does this course have" for progress percentages.
//
// A class counts toward the course total only if it downloaded successfully.
// Its fileKey is "<unitNumber>-<classId>".
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/studysync/internal/logging"
	"github.com/tomtom215/studysync/internal/validation"
)

// SummarySuffix identifies scraper summary files.
const SummarySuffix = "_course_summary.json"

// StatusSuccess marks a class whose file exists on disk.
const StatusSuccess = "success"

// ErrCourseNotFound is returned by Lookup for an unknown course id.
var ErrCourseNotFound = errors.New("catalog: course not found")

// FlexString decodes a JSON string or number into a string. The scraper emits
// ids as whatever type the upstream API returned.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(strings.TrimSpace(s))
		return nil
	}
	if _, err := strconv.ParseFloat(string(data), 64); err != nil {
		return fmt.Errorf("id must be a string or number, got %s", data)
	}
	*f = FlexString(data)
	return nil
}

// Class is one downloadable material.
type Class struct {
	Number   int        `json:"class_number"`
	ID       FlexString `json:"class_id" validate:"required"`
	Name     string     `json:"class_name"`
	Filename string     `json:"filename"`
	Status   string     `json:"status"`
}

// Unit groups classes.
type Unit struct {
	Number  int        `json:"unit_number" validate:"gte=0"`
	ID      FlexString `json:"unit_id"`
	Name    string     `json:"unit_name"`
	Classes []Class    `json:"classes" validate:"dive"`
}

// Course is a parsed summary file.
type Course struct {
	ID     FlexString `json:"course_id" validate:"required"`
	Name   string     `json:"course_name"`
	Units  []Unit     `json:"units" validate:"dive"`
	Source string     `json:"-"`
}

// FileKey builds the progress key of a class within a unit.
func FileKey(unitNumber int, classID string) string {
	return strconv.Itoa(unitNumber) + "-" + classID
}

// FileKeys returns the keys of every successfully downloaded class, unit order
// then class order.
func (c *Course) FileKeys() []string {
	var keys []string
	for _, u := range c.Units {
		for _, cl := range u.Classes {
			if cl.Status == StatusSuccess {
				keys = append(keys, FileKey(u.Number, string(cl.ID)))
			}
		}
	}
	return keys
}

// Total is the number of successfully downloaded classes.
func (c *Course) Total() int {
	n := 0
	for _, u := range c.Units {
		for _, cl := range u.Classes {
			if cl.Status == StatusSuccess {
				n++
			}
		}
	}
	return n
}

// Catalog indexes courses by id.
type Catalog struct {
	mu      sync.RWMutex
	courses map[string]*Course
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{courses: make(map[string]*Course)}
}

// ParseSummary decodes and validates one summary document.
func ParseSummary(data []byte) (*Course, error) {
	var c Course
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	if verr := validation.ValidateStruct(&c); verr != nil {
		return nil, fmt.Errorf("invalid summary: %w", verr)
	}
	return &c, nil
}

// Add inserts or replaces a course.
func (c *Catalog) Add(course *Course) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.courses[string(course.ID)] = course
}

// Load walks root and adds every summary file found. Unreadable or invalid
// summaries are logged and skipped; the count of loaded courses is returned.
func (c *Catalog) Load(root string) (int, error) {
	loaded := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), SummarySuffix) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("Skipping unreadable course summary")
			return nil
		}
		course, err := ParseSummary(data)
		if err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("Skipping invalid course summary")
			return nil
		}
		course.Source = path
		c.Add(course)
		loaded++
		return nil
	})
	if err != nil {
		return loaded, fmt.Errorf("scan %s: %w", root, err)
	}
	return loaded, nil
}

// Lookup returns the course with the given id.
func (c *Catalog) Lookup(courseID string) (*Course, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	course, ok := c.courses[courseID]
	if !ok {
		return nil, ErrCourseNotFound
	}
	return course, nil
}

// Total returns the file count of courseID, or 0 if unknown. It satisfies the
// Sync Channel's TotalFunc.
func (c *Catalog) Total(courseID string) int {
	course, err := c.Lookup(courseID)
	if err != nil {
		return 0
	}
	return course.Total()
}

// Courses returns all courses ordered by id.
func (c *Catalog) Courses() []*Course {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Course, 0, len(c.courses))
	for _, course := range c.courses {
		out = append(out, course)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
