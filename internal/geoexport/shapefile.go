// Package geoexport converts the taxi zone shapefile into a GeoJSON feature
// collection for map rendering. It is a one-shot conversion utility and does
// not touch the store.
package geoexport

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
)

// ExportGeoJSON reads a polygon shapefile and writes a GeoJSON
// FeatureCollection. Each feature carries the LocationID, zone, and borough
// attributes; records with unsupported or malformed geometry are skipped.
func ExportGeoJSON(shpPath, outPath string) (int, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return 0, eris.Wrapf(err, "geoexport: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}

	attr := func(name string) string {
		idx, ok := fieldIdx[name]
		if !ok {
			return ""
		}
		return strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
	}

	fc := &geojson.FeatureCollection{}
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()

		poly, ok := shape.(*shp.Polygon)
		if !ok {
			skipped++
			continue
		}
		mp := polygonToMultiPolygon(poly)
		if mp == nil {
			skipped++
			continue
		}

		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       attr("locationid"),
			Geometry: mp,
			Properties: map[string]any{
				"LocationID": attr("locationid"),
				"zone":       attr("zone"),
				"borough":    attr("borough"),
			},
		})
	}

	if skipped > 0 {
		zap.L().Debug("geoexport: skipped shapefile records", zap.Int("skipped", skipped))
	}

	data, err := json.Marshal(fc)
	if err != nil {
		return 0, eris.Wrap(err, "geoexport: marshal feature collection")
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return 0, eris.Wrapf(err, "geoexport: write %s", outPath)
	}

	return len(fc.Features), nil
}

// polygonToMultiPolygon converts a shapefile polygon to a geom.MultiPolygon.
// Shapefile polygons list rings flat with part offsets; each ring becomes a
// single-ring polygon, which is sufficient for rendering zone outlines.
func polygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		if len(flat) < 8 { // a closed ring needs at least 4 points
			continue
		}

		ring := geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)})
		if err := mp.Push(ring); err != nil {
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}
