package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks at the adapter boundary.
var (
	ErrFormat     = errors.New("unexpected file format")
	ErrDecryption = errors.New("cannot decrypt workbook")
	ErrRender     = errors.New("report rendering failed")
)

// FormatError reports an unexpected sheet layout or file type.
type FormatError struct {
	Source string
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Source, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrFormat}
	}
	return []error{ErrFormat, e.Err}
}

// DecryptionError reports a missing or wrong password for a protected workbook.
type DecryptionError struct {
	Source      string
	PasswordSet bool
	Err         error
}

func (e *DecryptionError) Error() string {
	if !e.PasswordSet {
		return fmt.Sprintf("%s: workbook is password protected and no password was given", e.Source)
	}
	return fmt.Sprintf("%s: wrong password for protected workbook", e.Source)
}

func (e *DecryptionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDecryption}
	}
	return []error{ErrDecryption, e.Err}
}

// RenderError reports a template or document write failure.
type RenderError struct {
	Stage string
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("failed to render report (%s): %v", e.Stage, e.Err)
}

func (e *RenderError) Unwrap() []error {
	return []error{ErrRender, e.Err}
}
