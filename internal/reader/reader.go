// =============================================================================
// Pay Equity Processor - Reader
// =============================================================================
//
// The reader is the first pipeline stage. It picks the parser for the input
// format and returns an untyped RawTable:
//
//   .xlsx / .xlsm  -> xlsxparser (password-protected workbooks supported)
//   .csv / .txt    -> csvparser
//
// Everything else is a FormatError.
//
// =============================================================================

package reader

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ginjaninja78/payequity/internal/config"
	"github.com/ginjaninja78/payequity/internal/csvparser"
	"github.com/ginjaninja78/payequity/internal/types"
	"github.com/ginjaninja78/payequity/internal/xlsxparser"
)

// Source is one input file. Data wins over Path when both are set. Name
// labels in-memory Data; a file read from Path is named after its base name.
type Source struct {
	Name string
	Path string
	Data []byte
}

// Options carries the layout-dependent read settings.
type Options struct {
	Password string
	Sheet    string
	CSV      config.CSVSettings
}

// OptionsFor derives read options from a layout profile. password is used
// as given; when it is empty and the profile requires one, fallback is tried.
func OptionsFor(profile *config.LayoutProfile, password, fallback string) Options {
	opts := Options{Password: password}
	if profile != nil {
		opts.Sheet = profile.Sheet
		opts.CSV = profile.CSV
		if password == "" && profile.PasswordRequired {
			opts.Password = fallback
		}
	}
	return opts
}

// Supported reports whether the file extension has a parser.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm", ".csv", ".txt":
		return true
	}
	return false
}

// Read parses src into a RawTable.
//
// PARAMETERS:
//   - ctx: Checked before the file is opened; parsing itself is not interruptible.
//   - src: The input file.
//   - opts: Password, sheet and CSV settings.
//
// RETURNS:
//   - The raw table.
//   - A *types.FormatError or *types.DecryptionError on unreadable input.
func Read(ctx context.Context, src Source, opts Options) (*types.RawTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fromDisk := src.Data == nil
	if fromDisk && src.Path == "" {
		return nil, &types.FormatError{Source: src.Name, Reason: "no input data"}
	}

	name := src.Name
	if fromDisk || name == "" {
		name = filepath.Base(src.Path)
	}

	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".xlsx", ".xlsm":
		xopts := xlsxparser.Options{Password: opts.Password, Sheet: opts.Sheet}
		if fromDisk {
			return xlsxparser.ParseFile(src.Path, xopts)
		}
		return xlsxparser.Parse(name, src.Data, xopts)
	case ".csv", ".txt":
		if fromDisk {
			return csvparser.ParseFile(src.Path, opts.CSV)
		}
		return csvparser.ParseBytes(name, src.Data, opts.CSV)
	case ".xls":
		return nil, &types.FormatError{Source: name, Reason: "legacy .xls workbooks are not supported, save as .xlsx"}
	default:
		return nil, &types.FormatError{Source: name, Reason: fmt.Sprintf("unsupported file type %q", ext)}
	}
}
