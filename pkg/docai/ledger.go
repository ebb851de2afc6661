package docai

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// Ledger records uploaded files as csv rows of file name and document id
type Ledger struct {
	path string
	mu   sync.Mutex
}

// NewLedger makes a ledger stored at path
func NewLedger(path string) *Ledger {
	return &Ledger{path: path}
}

// Uploaded returns file name to document id map, missing ledger is empty. Malformed rows are skipped.
func (l *Ledger) Uploaded() (map[string]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	res := map[string]string{}
	fh, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return res, nil
		}
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer fh.Close()

	r := csv.NewReader(fh)
	r.FieldsPerRecord = -1
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read ledger: %w", err)
		}
		if len(rec) == 2 {
			res[rec[0]] = rec[1]
		}
	}
	return res, nil
}

// Record appends a row
func (l *Ledger) Record(filename, docID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	fh, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	w := csv.NewWriter(fh)
	if err := w.Write([]string{filename, docID}); err != nil {
		_ = fh.Close()
		return fmt.Errorf("write ledger: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = fh.Close()
		return fmt.Errorf("flush ledger: %w", err)
	}
	return fh.Close()
}
