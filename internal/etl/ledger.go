package etl

import (
	"encoding/csv"
	"os"

	"github.com/rotisserie/eris"

	"github.com/metrolab/tripline/internal/model"
)

// Ledger is the audit file of rejected records. It is truncated and recreated
// once per pipeline run; within a run it is append-only. Each entry is the
// untouched raw row plus its single rejection reason.
type Ledger struct {
	f         *os.File
	w         *csv.Writer
	count     int64
	breakdown map[model.RejectionReason]int64
}

// NewLedger truncates (or creates) the ledger file and writes the header.
func NewLedger(path string) (*Ledger, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, eris.Wrapf(err, "etl: create ledger %s", path)
	}

	w := csv.NewWriter(f)
	header := append(model.Columns(), "rejection_reason")
	if err := w.Write(header); err != nil {
		f.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "etl: write ledger header")
	}

	return &Ledger{
		f:         f,
		w:         w,
		breakdown: make(map[model.RejectionReason]int64),
	}, nil
}

// Append records one rejection.
func (l *Ledger) Append(rec model.RejectionRecord) error {
	row := append(rec.Raw.Values(), string(rec.Reason))
	if err := l.w.Write(row); err != nil {
		return eris.Wrap(err, "etl: append ledger entry")
	}
	l.count++
	l.breakdown[rec.Reason]++
	return nil
}

// Count returns the number of entries appended so far.
func (l *Ledger) Count() int64 { return l.count }

// Breakdown returns per-reason rejection counts.
func (l *Ledger) Breakdown() map[model.RejectionReason]int64 {
	out := make(map[model.RejectionReason]int64, len(l.breakdown))
	for k, v := range l.breakdown {
		out[k] = v
	}
	return out
}

// Close flushes and closes the ledger file.
func (l *Ledger) Close() error {
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		l.f.Close() //nolint:errcheck
		return eris.Wrap(err, "etl: flush ledger")
	}
	return eris.Wrap(l.f.Close(), "etl: close ledger")
}
