package api

import (
	"bytes"
	"io"
	"mime/multipart"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// newMultipartCSV writes a single-file multipart body into buf and returns
// the Content-Type header value the caller must set on the request.
func newMultipartCSV(buf *bytes.Buffer, field, filename, csvBody string) string {
	mw := multipart.NewWriter(buf)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		panic(err)
	}
	if _, err := io.Copy(part, strings.NewReader(csvBody)); err != nil {
		panic(err)
	}
	if err := mw.Close(); err != nil {
		panic(err)
	}
	return mw.FormDataContentType()
}

func TestParseMemberImportCSV(t *testing.T) {
	csvBody := "full_name,date_of_birth,gender,member_type,class_code\n" +
		"Jane Doe,1990-06-15,FEMALE,EMPLOYEE,CLASS_A\n" +
		"John Smith,1985-03-10,MALE,DEPENDENT,\n"

	rows, err := parseMemberImportCSV(strings.NewReader(csvBody))
	require.NoError(t, err)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}

	if rows[0].RowIndex != 1 || rows[0].FullName != "Jane Doe" || rows[0].ClassCode != "CLASS_A" {
		t.Errorf("row 0 = %+v, unexpected", rows[0])
	}
	if rows[1].RowIndex != 2 || rows[1].FullName != "John Smith" {
		t.Errorf("row 1 = %+v, unexpected", rows[1])
	}
}

func TestParseMemberImportCSV_MissingColumn(t *testing.T) {
	csvBody := "full_name,gender,member_type\nJane Doe,FEMALE,EMPLOYEE\n"

	if _, err := parseMemberImportCSV(strings.NewReader(csvBody)); err == nil {
		t.Error("expected an error for a missing required column")
	}
}
