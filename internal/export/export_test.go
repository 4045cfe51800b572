package export

import (
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/trade-engine/internal/position"
)

func sampleRecords(t0 time.Time) []position.TransactionRecord {
	return []position.TransactionRecord{
		{
			Timestamp:        t0,
			Mint:             "MintA",
			PreSOLBalance:    10,
			PostSOLBalance:   9,
			PreTokenBalance:  0,
			PostTokenBalance: 100,
			SOLUSDRate:       150,
		},
		{
			Timestamp:        t0.Add(time.Hour),
			Mint:             "MintB",
			PreSOLBalance:    9,
			PostSOLBalance:   9.5,
			PreTokenBalance:  50,
			PostTokenBalance: 0,
			SOLUSDRate:       151,
		},
	}
}

func TestExportCSV(t *testing.T) {
	e := NewExporter(zap.NewNop())
	dir := t.TempDir()

	path, err := e.Export(sampleRecords(time.Now()), Options{
		Format:    FormatCSV,
		OutputDir: dir,
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(raw)

	lines := strings.Split(strings.TrimSpace(content), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "sol_usd_rate")
	assert.Contains(t, lines[1], "MintA")
	assert.Contains(t, lines[1], "buy")
	assert.Contains(t, lines[2], "MintB")
	assert.Contains(t, lines[2], "sell")
}

func TestExportJSON(t *testing.T) {
	e := NewExporter(zap.NewNop())
	dir := t.TempDir()

	path, err := e.Export(sampleRecords(time.Now()), Options{
		Format:    FormatJSON,
		OutputDir: dir,
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded []position.TransactionRecord
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Len(t, decoded, 2)
}

func TestExportMintFilter(t *testing.T) {
	e := NewExporter(zap.NewNop())
	dir := t.TempDir()

	path, err := e.Export(sampleRecords(time.Now()), Options{
		Format:     FormatCSV,
		OutputDir:  dir,
		MintFilter: "MintA",
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "MintB")
}

func TestExportTimeWindow(t *testing.T) {
	e := NewExporter(zap.NewNop())
	dir := t.TempDir()
	t0 := time.Now()

	path, err := e.Export(sampleRecords(t0), Options{
		Format:    FormatCSV,
		OutputDir: dir,
		EndTime:   t0.Add(time.Minute),
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "MintB")
}

func TestExportUnsupportedFormat(t *testing.T) {
	e := NewExporter(zap.NewNop())

	_, err := e.Export(nil, Options{Format: "xml", OutputDir: t.TempDir()})
	assert.Error(t, err)
}
