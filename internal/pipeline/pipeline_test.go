package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/payequity/internal/config"
	"github.com/ginjaninja78/payequity/internal/testutil"
	"github.com/ginjaninja78/payequity/internal/types"
	"github.com/ginjaninja78/payequity/internal/xlsxwriter"
)

func newPipeline(t *testing.T) (*Pipeline, *config.MainConfig) {
	t.Helper()
	profiles, err := config.LoadLayoutProfiles("")
	require.NoError(t, err)

	cfg := &config.MainConfig{
		InputDir:         t.TempDir(),
		OutputDir:        t.TempDir(),
		OutputNameFormat: "{name}_{kind}.{ext}",
		DefaultFormat:    "general",
		DefaultReport:    "consolidated",
		MinGroupSize:     2,
	}
	return New(cfg, profiles, nil), cfg
}

func TestRunWritesArtifacts(t *testing.T) {
	p, cfg := newPipeline(t)
	path := testutil.SampleRegister().Save(t, t.TempDir(), "registro.xlsx", "")

	result, err := p.Run(context.Background(), Input{Path: path})
	require.NoError(t, err)

	assert.Equal(t, 8, result.Stats.RowsRead)
	assert.Equal(t, 7, result.Stats.Records)
	assert.Equal(t, 1, result.Stats.Dropped)
	assert.Equal(t, 1, result.Stats.Excluded)
	assert.Equal(t, types.ReportConsolidated, result.Report)
	assert.Equal(t, 1, result.Model.Totals.ValidationErrors)

	assert.Equal(t, filepath.Join(cfg.OutputDir, "registro_datos.xlsx"), result.SpreadsheetPath)
	assert.Equal(t, filepath.Join(cfg.OutputDir, "registro_informe.pdf"), result.ReportPath)
	assert.Equal(t, filepath.Join(cfg.OutputDir, "registro_datos_errors.log"), result.ErrorLogPath)

	pdf, err := os.ReadFile(result.ReportPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
	assert.FileExists(t, result.SpreadsheetPath)
	assert.FileExists(t, result.ErrorLogPath)
	assert.Contains(t, result.Summary(), "7 records")
}

func TestRunFromBytesDryRun(t *testing.T) {
	p, cfg := newPipeline(t)
	data := testutil.SampleRegister().Bytes(t, "")

	result, err := p.Run(context.Background(), Input{Name: "upload.xlsx", Data: data, Report: "mean", DryRun: true})
	require.NoError(t, err)

	assert.Empty(t, result.ReportPath)
	assert.Empty(t, result.SpreadsheetPath)
	assert.Nil(t, result.Model.Complements)

	entries, err := os.ReadDir(cfg.OutputDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunOutputDirOverride(t *testing.T) {
	p, _ := newPipeline(t)
	out := t.TempDir()

	result, err := p.Run(context.Background(), Input{
		Name:      "upload.xlsx",
		Data:      testutil.SampleRegister().Bytes(t, ""),
		OutputDir: out,
	})
	require.NoError(t, err)
	assert.Equal(t, out, filepath.Dir(result.ReportPath))
}

func TestRunWrongPassword(t *testing.T) {
	p, cfg := newPipeline(t)
	path := testutil.SampleRegister().Save(t, t.TempDir(), "secreto.xlsx", "correcta")

	result, err := p.Run(context.Background(), Input{Path: path, Password: "mala"})
	assert.Nil(t, result)
	var de *types.DecryptionError
	require.True(t, errors.As(err, &de))

	entries, err := os.ReadDir(cfg.OutputDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no partial output")
}

func TestRunInvalidOptions(t *testing.T) {
	p, _ := newPipeline(t)
	data := testutil.SampleRegister().Bytes(t, "")

	_, err := p.Run(context.Background(), Input{Name: "r.xlsx", Data: data, Format: "unknown"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = p.Run(context.Background(), Input{Name: "r.xlsx", Data: data, Report: "average"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRunMissingSheet(t *testing.T) {
	p, _ := newPipeline(t)
	wb := testutil.SampleRegister()
	wb.Sheet = "OTRA"

	_, err := p.Run(context.Background(), Input{Name: "r.xlsx", Data: wb.Bytes(t, "")})
	assert.ErrorIs(t, err, types.ErrFormat)
}

func TestRunWritesSkippedRecords(t *testing.T) {
	p, _ := newPipeline(t)
	wb := testutil.SampleRegister()
	wb.Rows[0][5] = 0 // % de jornada of Orden 1

	result, err := p.Run(context.Background(), Input{Name: "r.xlsx", Data: wb.Bytes(t, "")})
	require.NoError(t, err)

	assert.Equal(t, 7, result.Stats.Records)
	assert.Equal(t, 1, result.Stats.Skipped)
	assert.Equal(t, 1, result.Model.Totals.Skipped)
	assert.Equal(t, 1, result.Stats.Warnings)

	f, err := excelize.OpenFile(result.SpreadsheetPath)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(xlsxwriter.SheetData)
	require.NoError(t, err)
	assert.Len(t, rows, 1+result.Stats.Records, "every normalized record is written")
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "Sí", rows[1][5])

	errRows, err := f.GetRows(xlsxwriter.SheetErrors)
	require.NoError(t, err)
	var rules []string
	for _, r := range errRows[1:] {
		rules = append(rules, r[4])
	}
	assert.Contains(t, rules, "work_fraction")
}

func TestRunRenderFailureLeavesNoWorkspace(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("TMPDIR", tmp)

	p, cfg := newPipeline(t)
	cfg.TemplatePath = filepath.Join(t.TempDir(), "report.yaml")
	require.NoError(t, os.WriteFile(cfg.TemplatePath, []byte("title: [unclosed\n"), 0o644))
	p = New(cfg, p.profiles, nil)

	_, err := p.Run(context.Background(), Input{Name: "r.xlsx", Data: testutil.SampleRegister().Bytes(t, "")})
	var re *types.RenderError
	require.True(t, errors.As(err, &re), "got %v", err)
	assert.Equal(t, "template", re.Stage)

	leftovers, err := filepath.Glob(filepath.Join(tmp, "payequity-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers, "workspace removed on failure")

	entries, err := os.ReadDir(cfg.OutputDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunPublishFailureRemovesSpreadsheet(t *testing.T) {
	p, cfg := newPipeline(t)
	require.NoError(t, os.Mkdir(filepath.Join(cfg.OutputDir, "r_informe.pdf"), 0o755))

	_, err := p.Run(context.Background(), Input{Name: "r.xlsx", Data: testutil.SampleRegister().Bytes(t, "")})
	require.Error(t, err)

	assert.NoFileExists(t, filepath.Join(cfg.OutputDir, "r_datos.xlsx"))
}

func TestRunCancelled(t *testing.T) {
	p, _ := newPipeline(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, Input{Name: "r.xlsx", Data: testutil.SampleRegister().Bytes(t, "")})
	assert.ErrorIs(t, err, context.Canceled)
}
