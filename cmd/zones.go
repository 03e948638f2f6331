package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/metrolab/tripline/internal/geoexport"
)

var (
	zonesShpPath string
	zonesOutPath string
)

var zonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "Zone reference utilities",
}

var zonesGeoJSONCmd = &cobra.Command{
	Use:   "geojson",
	Short: "Convert the zone shapefile to GeoJSON",
	RunE: func(_ *cobra.Command, _ []string) error {
		n, err := geoexport.ExportGeoJSON(zonesShpPath, zonesOutPath)
		if err != nil {
			return eris.Wrap(err, "zones geojson")
		}
		fmt.Printf("Wrote %d zone features to %s\n", n, zonesOutPath)
		return nil
	},
}

func init() {
	zonesGeoJSONCmd.Flags().StringVar(&zonesShpPath, "shapefile", "data/taxi_zones.shp", "zone shapefile path")
	zonesGeoJSONCmd.Flags().StringVar(&zonesOutPath, "out", "output/taxi_zones.geojson", "GeoJSON output path")
	zonesCmd.AddCommand(zonesGeoJSONCmd)
	rootCmd.AddCommand(zonesCmd)
}
