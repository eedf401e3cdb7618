package types

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	var err error = &FormatError{Source: "a.xlsx", Reason: "sheet \"BASE GENERAL\" not found"}
	assert.ErrorIs(t, err, ErrFormat)
	assert.Contains(t, err.Error(), "BASE GENERAL")

	err = &DecryptionError{Source: "a.xlsx", PasswordSet: true, Err: io.ErrUnexpectedEOF}
	assert.ErrorIs(t, err, ErrDecryption)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Contains(t, err.Error(), "wrong password")

	err = &RenderError{Stage: "write", Err: io.ErrShortWrite}
	assert.ErrorIs(t, err, ErrRender)

	var re *RenderError
	assert.True(t, errors.As(err, &re))
	assert.Equal(t, "write", re.Stage)
}

func TestParseReportType(t *testing.T) {
	tests := []struct {
		in   string
		want ReportType
		ok   bool
	}{
		{"", ReportConsolidated, true},
		{"PROMEDIO", ReportMean, true},
		{"median", ReportMedian, true},
		{"COMPLEMENTOS", ReportComplements, true},
		{"pie", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseReportType(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	assert.True(t, ReportConsolidated.ShowsComplements())
	assert.False(t, ReportMean.ShowsMedian())
	assert.True(t, ReportMedian.ShowsMedian())
}
