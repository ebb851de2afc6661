package docai

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-pkgz/lgr"
)

// BatchReport summarizes a batch run
type BatchReport struct {
	Processed int
	Failed    int
	Skipped   int // already in the ledger
	Results   []Result
}

// ProcessBatch processes files of dir not recorded in the ledger. A file is recorded right after upload,
// so it is not uploaded again even if later steps failed. Per-file failures are logged and counted.
func (c *Client) ProcessBatch(ctx context.Context, dir, query string, ledger *Ledger) (BatchReport, error) {
	var report BatchReport
	uploaded, err := ledger.Uploaded()
	if err != nil {
		return report, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return report, fmt.Errorf("read %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if _, ok := uploaded[name]; ok {
			report.Skipped++
			continue
		}

		docID, err := c.Upload(ctx, filepath.Join(dir, name))
		if err != nil {
			lgr.Printf("[WARN] %v", err)
			report.Failed++
			continue
		}
		if err := ledger.Record(name, docID); err != nil {
			lgr.Printf("[WARN] can't record %s: %v", name, err)
		}

		res, err := c.finish(ctx, Result{File: name, DocID: docID}, query)
		if err != nil {
			lgr.Printf("[WARN] processing %s failed: %v", name, err)
			report.Failed++
			continue
		}
		lgr.Printf("[INFO] processed %s, doc_id %s", name, docID)
		report.Processed++
		report.Results = append(report.Results, res)
	}
	return report, nil
}
