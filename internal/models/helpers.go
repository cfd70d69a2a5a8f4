package models

import (
	"fmt"
	"regexp"
	"strings"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

var slugStrip = regexp.MustCompile(`[^a-z0-9\-]`)

// Slugify normalizes a title or file name for use as a certificate ID.
// The same source always yields the same ID, so re-running the pipeline
// replaces the stored certificate instead of duplicating it.
func Slugify(name string) string {
	s := strings.ToLower(name)
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "_", "-")
	return slugStrip.ReplaceAllString(s, "")
}

// RecordIDString safely extracts the string ID from a SurrealDB RecordID.
// Returns an error if the ID is not a string type.
func RecordIDString(id surrealmodels.RecordID) (string, error) {
	s, ok := id.ID.(string)
	if !ok {
		return "", fmt.Errorf("unexpected ID type: %T (expected string)", id.ID)
	}
	return s, nil
}

// MustRecordIDString extracts the string ID, panicking if not a string.
// Use only when you're certain the ID is a string (e.g., after DB operations that return strings).
func MustRecordIDString(id surrealmodels.RecordID) string {
	s, err := RecordIDString(id)
	if err != nil {
		panic(err)
	}
	return s
}
