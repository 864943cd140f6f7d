package api

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/salamenterprise/claims-askes/internal/pricing"
)

// memberImportColumns is the required header row for a bulk member import
// (§4.4.7). relationship is accepted but not yet consulted by the pricing
// engine; class_code is optional.
var memberImportColumns = []string{"full_name", "date_of_birth", "gender", "member_type"}

// parseMemberImportCSV reads a header-first CSV into MemberImportRows,
// grounded on the pack's encoding/csv reader pattern (actuworry's
// backend/actuarial/core.go). A malformed field (such as an unparseable
// date_of_birth) does not abort the file: the row is passed on with that
// field empty and per-row validation happens downstream in
// pricing.Engine.ImportMembers. A row the CSV reader itself rejects (wrong
// field count, bad quoting) aborts the whole file with an error.
func parseMemberImportCSV(r io.Reader) ([]pricing.MemberImportRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range memberImportColumns {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}

	var rows []pricing.MemberImportRow
	rowIndex := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", rowIndex+1, err)
		}
		rowIndex++

		dob, _ := parseDate(field(record, col, "date_of_birth"))
		rows = append(rows, pricing.MemberImportRow{
			RowIndex:     rowIndex,
			FullName:     field(record, col, "full_name"),
			DateOfBirth:  dob,
			Gender:       genderFromString(field(record, col, "gender")),
			MemberType:   memberTypeFromString(field(record, col, "member_type")),
			Relationship: field(record, col, "relationship"),
			ClassCode:    field(record, col, "class_code"),
		})
	}
	return rows, nil
}

func field(record []string, col map[string]int, name string) string {
	i, ok := col[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
