package etl

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/metrolab/tripline/internal/model"
)

// LoadZones reads the zone lookup table from a .csv or .xlsx file and returns
// the rows plus the set of valid location ids. The table is small enough to
// load wholesale.
func LoadZones(path string) ([]model.Zone, model.ZoneSet, error) {
	var rows [][]string
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = zoneRowsXLSX(path)
	default:
		rows, err = zoneRowsCSV(path)
	}
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, eris.Errorf("etl: zone file %s is empty", path)
	}

	idx := make(map[string]int, 4)
	for i, name := range rows[0] {
		idx[strings.TrimSpace(name)] = i
	}
	for _, col := range []string{"LocationID", "Borough", "Zone", "service_zone"} {
		if _, ok := idx[col]; !ok {
			return nil, nil, eris.Errorf("etl: zone file missing column %q", col)
		}
	}

	zones := make([]model.Zone, 0, len(rows)-1)
	set := make(model.ZoneSet, len(rows)-1)
	for _, row := range rows[1:] {
		id, err := strconv.ParseInt(strings.TrimSpace(cell(row, idx["LocationID"])), 10, 64)
		if err != nil {
			return nil, nil, eris.Wrapf(err, "etl: zone file has non-numeric LocationID %q", cell(row, idx["LocationID"]))
		}
		zones = append(zones, model.Zone{
			LocationID:  id,
			Borough:     cell(row, idx["Borough"]),
			Zone:        cell(row, idx["Zone"]),
			ServiceZone: cell(row, idx["service_zone"]),
		})
		set[id] = struct{}{}
	}

	return zones, set, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func zoneRowsCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "etl: open zone file %s", path)
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "etl: read zone csv")
	}
	return rows, nil
}

func zoneRowsXLSX(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "etl: open zone xlsx %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("etl: zone xlsx %s has no sheets", path)
	}

	var rows [][]string
	for _, row := range f.Sheets[0].Rows {
		cells := make([]string, 0, len(row.Cells))
		for _, c := range row.Cells {
			cells = append(cells, c.String())
		}
		rows = append(rows, cells)
	}
	return rows, nil
}
