package etl

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/metrolab/tripline/internal/model"
)

// StreamTrips reads a header-named trip CSV and sends one RawTrip per row.
// The caller must consume the row channel; both channels are closed when
// processing completes. Column order in the file does not matter — columns
// are resolved by header name. The congestion_surcharge column is optional
// and defaults to "0.00" when absent.
func StreamTrips(ctx context.Context, r io.Reader) (<-chan model.RawTrip, <-chan error) {
	rowCh := make(chan model.RawTrip, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		reader.FieldsPerRecord = -1 // allow ragged rows; classification decides

		header, err := reader.Read()
		if err == io.EOF {
			errCh <- eris.New("etl: trip file is empty")
			return
		}
		if err != nil {
			errCh <- eris.Wrap(err, "etl: read trip header")
			return
		}

		idx, err := headerIndex(header)
		if err != nil {
			errCh <- err
			return
		}

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "etl: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "etl: read trip row")
				return
			}

			select {
			case rowCh <- idx.rawTrip(record):
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "etl: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// columnIndex maps each known column to its position in the header, or -1
// when the column is missing.
type columnIndex map[string]int

func headerIndex(header []string) (columnIndex, error) {
	pos := make(map[string]int, len(header))
	for i, name := range header {
		pos[strings.TrimSpace(name)] = i
	}

	idx := make(columnIndex, len(model.Columns()))
	for _, col := range model.Columns() {
		p, ok := pos[col]
		if !ok {
			if col == "congestion_surcharge" {
				idx[col] = -1
				continue
			}
			return nil, eris.Errorf("etl: trip file missing column %q", col)
		}
		idx[col] = p
	}
	return idx, nil
}

func (idx columnIndex) field(record []string, col string) string {
	p := idx[col]
	if p < 0 || p >= len(record) {
		if col == "congestion_surcharge" {
			return "0.00"
		}
		return ""
	}
	return record[p]
}

func (idx columnIndex) rawTrip(record []string) model.RawTrip {
	return model.RawTrip{
		VendorID:             idx.field(record, "VendorID"),
		PickupTime:           idx.field(record, "tpep_pickup_datetime"),
		DropoffTime:          idx.field(record, "tpep_dropoff_datetime"),
		PassengerCount:       idx.field(record, "passenger_count"),
		TripDistance:         idx.field(record, "trip_distance"),
		RatecodeID:           idx.field(record, "RatecodeID"),
		StoreAndFwdFlag:      idx.field(record, "store_and_fwd_flag"),
		PULocationID:         idx.field(record, "PULocationID"),
		DOLocationID:         idx.field(record, "DOLocationID"),
		PaymentType:          idx.field(record, "payment_type"),
		FareAmount:           idx.field(record, "fare_amount"),
		Extra:                idx.field(record, "extra"),
		MTATax:               idx.field(record, "mta_tax"),
		TipAmount:            idx.field(record, "tip_amount"),
		TollsAmount:          idx.field(record, "tolls_amount"),
		ImprovementSurcharge: idx.field(record, "improvement_surcharge"),
		TotalAmount:          idx.field(record, "total_amount"),
		CongestionSurcharge:  idx.field(record, "congestion_surcharge"),
	}
}
