// Package topotools samples terrain features from a DEM raster at stake
// locations: elevation around the stake, and slope and aspect by Horn's
// method.
package topotools

import (
	"errors"
	"math"
	"os"

	"github.com/airbusgeo/godal"
	"github.com/sirupsen/logrus"

	"glacier-tools/climatetools"
)

// Columns appended by AttachFeatures.
const (
	ColDEMElevation = "DEM_ELEVATION"
	ColSlope        = "SLOPE"
	ColAspect       = "ASPECT"
)

type Point struct {
	Lat float64
	Lng float64
}

type bandContainer struct {
	band      *godal.Band
	origin    Point
	xRes      float64
	yRes      float64
	sizeX     int
	sizeY     int
	noData    float64
	hasNoData bool
}

// AttachFeatures samples the DEM at every record of an enriched table and
// appends DEM_ELEVATION, SLOPE and ASPECT columns. Stakes outside the
// raster or on nodata terrain get NaN features; rows are never dropped
// here.
func AttachFeatures(table *climatetools.EnrichedTable, demPath string) (err error) {
	if _, statErr := os.Stat(demPath); statErr != nil {
		return &climatetools.DatasetNotFoundError{Path: demPath}
	}
	godal.RegisterAll()

	ds, err := godal.Open(demPath)
	if err != nil {
		logrus.Error(err)
		return err
	}
	defer func() {
		err = errors.Join(err, ds.Close())
	}()

	bc, err := newBandContainer(ds)
	if err != nil {
		return err
	}

	elevation := make([]float64, len(table.Rows))
	slope := make([]float64, len(table.Rows))
	aspect := make([]float64, len(table.Rows))
	missing := 0
	for i, row := range table.Rows {
		window, ok := bc.readWindow(row.Record.Lat, row.Record.Lon)
		if !ok {
			elevation[i], slope[i], aspect[i] = math.NaN(), math.NaN(), math.NaN()
			missing++
			continue
		}
		elevation[i] = climatetools.NanMean(window[:]...)
		slope[i], aspect[i] = hornSlopeAspect(window, row.Record.Lat, bc.xRes, bc.yRes)
	}
	if missing > 0 {
		logrus.Infof("No DEM coverage for %d of %d stakes", missing, len(table.Rows))
	}

	table.AppendFeature(ColDEMElevation, elevation)
	table.AppendFeature(ColSlope, slope)
	table.AppendFeature(ColAspect, aspect)
	return nil
}

func newBandContainer(ds *godal.Dataset) (*bandContainer, error) {
	gt, err := ds.GeoTransform()
	if err != nil {
		logrus.Error(err)
		return nil, err
	}
	band := &ds.Bands()[0]
	struc := band.Structure()
	noData, hasNoData := band.NoData()
	if !hasNoData {
		logrus.Warn("NoData not set")
	}
	return &bandContainer{
		band:      band,
		origin:    Point{gt[3], gt[0]},
		xRes:      gt[1],
		yRes:      gt[5],
		sizeX:     struc.SizeX,
		sizeY:     struc.SizeY,
		noData:    noData,
		hasNoData: hasNoData,
	}, nil
}

// readWindow reads the 3x3 pixel window centered on the stake, row-major
// north to south. Windows that fall off the raster, or whose center pixel
// is nodata, are reported as unavailable.
func (bc *bandContainer) readWindow(lat, lon float64) ([9]float64, bool) {
	var window [9]float64
	col := int(math.Floor((lon - bc.origin.Lng) / bc.xRes))
	row := int(math.Floor((lat - bc.origin.Lat) / bc.yRes))
	if col < 1 || col > bc.sizeX-2 || row < 1 || row > bc.sizeY-2 {
		return window, false
	}

	buf := make([]float64, 9)
	if err := bc.band.Read(col-1, row-1, buf, 3, 3); err != nil {
		logrus.Error(err)
		return window, false
	}
	for i, v := range buf {
		if bc.hasNoData && v == bc.noData {
			buf[i] = math.NaN()
		}
	}
	if math.IsNaN(buf[4]) {
		return window, false
	}
	copy(window[:], buf)
	return window, true
}

// hornSlopeAspect derives slope and aspect in degrees from a 3x3 window.
// Aspect is clockwise from north in [0, 360); flat cells have no aspect.
// Pixel sizes are taken metric at the stake's latitude.
func hornSlopeAspect(z [9]float64, lat, xRes, yRes float64) (float64, float64) {
	for _, v := range z {
		if math.IsNaN(v) {
			return math.NaN(), math.NaN()
		}
	}
	xm := haversinePixelWidth(lat, math.Abs(xRes))
	ym := (math.Pi / 180) * math.Abs(yRes) * climatetools.EarthRadius

	// Window rows run north to south, columns west to east.
	dzdx := ((z[2] + 2*z[5] + z[8]) - (z[0] + 2*z[3] + z[6])) / (8 * xm)
	dzdy := ((z[0] + 2*z[1] + z[2]) - (z[6] + 2*z[7] + z[8])) / (8 * ym)

	slope := math.Atan(math.Hypot(dzdx, dzdy)) * 180 / math.Pi
	if slope == 0 {
		return 0, math.NaN()
	}
	aspect := 90 - math.Atan2(dzdy, -dzdx)*180/math.Pi
	aspect = math.Mod(aspect, 360)
	if aspect < 0 {
		aspect += 360
	}
	return slope, aspect
}

// haversinePixelWidth is the east-west metric width of a pixel at the
// given latitude.
func haversinePixelWidth(latitude float64, resolution float64) float64 {
	latRad := latitude * math.Pi / 180
	resRad := resolution * math.Pi / 180
	a := math.Pow(math.Cos(latRad), 2) * math.Pow(math.Sin(resRad/2), 2)
	return 2 * climatetools.EarthRadius * math.Asin(math.Sqrt(a))
}
