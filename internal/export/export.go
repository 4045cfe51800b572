// Package export writes confirmed trade records to disk for offline
// analysis.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/trade-engine/internal/position"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Options narrows which records are written and where.
type Options struct {
	Format     Format
	StartTime  time.Time
	EndTime    time.Time
	MintFilter string
	OutputDir  string
}

// Exporter writes trade records in a stable column order so downstream
// spreadsheets keep working across versions.
type Exporter struct {
	logger *zap.Logger
}

func NewExporter(logger *zap.Logger) *Exporter {
	return &Exporter{logger: logger.Named("export")}
}

// Export filters, orders, and writes the records, returning the path of
// the written file.
func (e *Exporter) Export(records []position.TransactionRecord, opts Options) (string, error) {
	if opts.Format == "" {
		opts.Format = FormatCSV
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "exports"
	}
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	filtered := filter(records, opts)
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Timestamp.Before(filtered[j].Timestamp)
	})

	name := fmt.Sprintf("trades_%s.%s", time.Now().Format("20060102_150405"), opts.Format)
	path := filepath.Join(opts.OutputDir, name)

	var err error
	switch opts.Format {
	case FormatCSV:
		err = writeCSV(path, filtered)
	case FormatJSON:
		err = writeJSON(path, filtered)
	default:
		return "", fmt.Errorf("unsupported format %q", opts.Format)
	}
	if err != nil {
		return "", err
	}

	e.logger.Info("trades exported",
		zap.String("path", path),
		zap.Int("records", len(filtered)))
	return path, nil
}

func filter(records []position.TransactionRecord, opts Options) []position.TransactionRecord {
	out := make([]position.TransactionRecord, 0, len(records))
	for _, rec := range records {
		if opts.MintFilter != "" && rec.Mint != opts.MintFilter {
			continue
		}
		if !opts.StartTime.IsZero() && rec.Timestamp.Before(opts.StartTime) {
			continue
		}
		if !opts.EndTime.IsZero() && rec.Timestamp.After(opts.EndTime) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func writeCSV(path string, records []position.TransactionRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"timestamp", "mint", "side",
		"pre_sol_balance", "post_sol_balance",
		"pre_token_balance", "post_token_balance",
		"sol_usd_rate", "platform_fee_sol",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, rec := range records {
		side := "buy"
		if rec.TokenDelta() < 0 {
			side = "sell"
		}
		row := []string{
			rec.Timestamp.UTC().Format(time.RFC3339),
			rec.Mint,
			side,
			formatFloat(rec.PreSOLBalance),
			formatFloat(rec.PostSOLBalance),
			formatFloat(rec.PreTokenBalance),
			formatFloat(rec.PostTokenBalance),
			formatFloat(rec.SOLUSDRate),
			formatFloat(rec.PlatformFeeSOL),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func writeJSON(path string, records []position.TransactionRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
