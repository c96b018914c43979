// Package export renders a consolidated claim structure as a flat table for
// the human-review stage, as CSV or as an xlsx workbook.
package export

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"claimflow/internal/jsonpath"
)

// columns defines the header row.
var columns = []string{"Document Type", "Field", "Value"}

// Row is one leaf of the consolidated structure.
type Row struct {
	DocumentType string
	Field        string
	Value        string
}

func (r Row) cells() []string { return []string{r.DocumentType, r.Field, r.Value} }

// Flatten walks structure (document type -> nested fields) and returns one row
// per leaf, sorted by document type and field path. Array elements are
// addressed by index, e.g. "lineItems.0.amount".
func Flatten(structure map[string]any) []Row {
	var rows []Row
	for _, docType := range sortedKeys(structure) {
		fields, ok := structure[docType].(map[string]any)
		if !ok {
			rows = append(rows, Row{DocumentType: docType, Value: formatValue(structure[docType])})
			continue
		}
		rows = appendLeaves(rows, docType, "", fields)
	}
	return rows
}

func appendLeaves(rows []Row, docType, prefix string, v any) []Row {
	switch t := v.(type) {
	case map[string]any:
		for _, k := range sortedKeys(t) {
			rows = appendLeaves(rows, docType, joinField(prefix, k), t[k])
		}
	case []any:
		for i, child := range t {
			rows = appendLeaves(rows, docType, joinField(prefix, strconv.Itoa(i)), child)
		}
	default:
		rows = append(rows, Row{DocumentType: docType, Field: prefix, Value: formatValue(t)})
	}
	return rows
}

func joinField(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func formatValue(v any) string {
	if v == nil {
		return ""
	}
	return jsonpath.Stringify(v)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename cleans a ticket id for use in Content-Disposition.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// BuildFilename returns {ticket}_consolidated_{YYYY-MM-DD}.{ext}.
func BuildFilename(ticketID, ext string, now time.Time) string {
	return fmt.Sprintf("%s_consolidated_%s.%s", SanitizeFilename(ticketID), now.Format("2006-01-02"), ext)
}
