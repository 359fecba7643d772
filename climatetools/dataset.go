package climatetools

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/fhs/go-netcdf/netcdf"
	"github.com/sirupsen/logrus"
)

// Default ERA5-Land monthly variable names: 2m temperature and total
// precipitation.
var DefaultVariables = []string{"t2m", "tp"}

const defaultTimeUnits = "hours since 1900-01-01 00:00:00.0"

// ClimateDataset is a gridded monthly climate dataset held fully in memory:
// one or more named variables on a latitude x longitude x time grid, with an
// optional experiment-version axis per variable.
type ClimateDataset struct {
	Lats  []float64
	Lons  []float64
	Times []time.Time
	// VarNames preserves the order variables were requested in; feature
	// column ordering follows it.
	VarNames []string

	vars map[string]*gridVar
}

// gridVar stores one variable flattened [time][expver][lat][lon], with
// expver == 1 when the variable has no version axis (or after collapse).
type gridVar struct {
	expver int
	values []float64
}

// OpenClimate loads a NetCDF climate dataset wholesale. The requested
// variables must be present with dimensions (time, lat, lon) or
// (time, expver, lat, lon). Fill values are mapped to NaN and packed
// variables are unpacked via scale_factor/add_offset.
func OpenClimate(path string, variables []string) (*ClimateDataset, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &DatasetNotFoundError{Path: path}
	}
	nc, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("failed to open climate dataset: %w", err)
	}
	defer func() { _ = nc.Close() }()

	lats, err := readCoord(nc, "latitude", "lat", "y")
	if err != nil {
		return nil, err
	}
	lons, err := readCoord(nc, "longitude", "lon", "x")
	if err != nil {
		return nil, err
	}
	times, err := readTimes(nc)
	if err != nil {
		return nil, err
	}

	if len(variables) == 0 {
		variables = DefaultVariables
	}
	ds := &ClimateDataset{
		Lats:  lats,
		Lons:  lons,
		Times: times,
		vars:  make(map[string]*gridVar, len(variables)),
	}
	for _, name := range variables {
		v, err := nc.Var(name)
		if err != nil {
			return nil, fmt.Errorf("climate variable %q not found: %w", name, err)
		}
		flat, shape, err := readVarData(v)
		if err != nil {
			return nil, fmt.Errorf("failed to read climate variable %q: %w", name, err)
		}
		gv, err := shapeClimateVar(flat, shape, len(times), len(lats), len(lons))
		if err != nil {
			return nil, fmt.Errorf("climate variable %q: %w", name, err)
		}
		ds.VarNames = append(ds.VarNames, name)
		ds.vars[name] = gv
	}
	logrus.Debugf("Loaded climate dataset: %d vars, %d times, %dx%d grid",
		len(ds.VarNames), len(times), len(lats), len(lons))
	return ds, nil
}

// shapeClimateVar validates a variable's shape against the coordinate axes.
// ERA5 ordering is assumed: (time, lat, lon) or (time, expver, lat, lon).
func shapeClimateVar(flat []float64, shape []int, nTime, nLat, nLon int) (*gridVar, error) {
	switch len(shape) {
	case 3:
		if shape[0] != nTime || shape[1] != nLat || shape[2] != nLon {
			return nil, fmt.Errorf("dimension mismatch: data is %v, expected [%d %d %d]", shape, nTime, nLat, nLon)
		}
		return &gridVar{expver: 1, values: flat}, nil
	case 4:
		if shape[0] != nTime || shape[2] != nLat || shape[3] != nLon {
			return nil, fmt.Errorf("dimension mismatch: data is %v, expected [%d expver %d %d]", shape, nTime, nLat, nLon)
		}
		return &gridVar{expver: shape[1], values: flat}, nil
	default:
		return nil, fmt.Errorf("expected 3D or 4D data, got %dD", len(shape))
	}
}

// At returns the value of a variable at grid indices (time, lat, lon).
// Variables carrying a version axis must be collapsed first.
func (d *ClimateDataset) At(name string, t, lat, lon int) float64 {
	v := d.vars[name]
	return v.values[((t*v.expver)*len(d.Lats)+lat)*len(d.Lons)+lon]
}

// Shift adds delta to every defined value of a variable. Used for the
// Kelvin to Celsius conversion.
func (d *ClimateDataset) Shift(name string, delta float64) {
	v, ok := d.vars[name]
	if !ok {
		return
	}
	for i, val := range v.values {
		if !math.IsNaN(val) {
			v.values[i] = val + delta
		}
	}
}

// CollapseExpver merges the experiment-version axis of every variable by
// summing over it while ignoring missing values. ERA5 populates at most one
// version per grid cell, so the sum selects the populated one.
func (d *ClimateDataset) CollapseExpver() {
	nTime, nLat, nLon := len(d.Times), len(d.Lats), len(d.Lons)
	for _, name := range d.VarNames {
		v := d.vars[name]
		if v.expver <= 1 {
			continue
		}
		out := make([]float64, nTime*nLat*nLon)
		samples := make([]float64, v.expver)
		for t := 0; t < nTime; t++ {
			for i := 0; i < nLat; i++ {
				for j := 0; j < nLon; j++ {
					for e := 0; e < v.expver; e++ {
						samples[e] = v.values[((t*v.expver+e)*nLat+i)*nLon+j]
					}
					out[(t*nLat+i)*nLon+j] = NanSum(samples...)
				}
			}
		}
		v.values = out
		v.expver = 1
	}
}

// NearestTime returns the index of the timestamp closest to q. Ties break
// toward the earlier index.
func (d *ClimateDataset) NearestTime(q time.Time) int {
	best := 0
	bestDist := absDuration(d.Times[0].Sub(q))
	for i := 1; i < len(d.Times); i++ {
		dist := absDuration(d.Times[i].Sub(q))
		if dist < bestDist {
			best = i
			bestDist = dist
		}
	}
	return best
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// OpenTerrain loads a NetCDF geopotential dataset as a 2D grid. A leading
// time axis of length one is squeezed away.
func OpenTerrain(path string) (*TerrainGrid, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &DatasetNotFoundError{Path: path}
	}
	nc, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("failed to open terrain dataset: %w", err)
	}
	defer func() { _ = nc.Close() }()

	lats, err := readCoord(nc, "latitude", "lat", "y")
	if err != nil {
		return nil, err
	}
	lons, err := readCoord(nc, "longitude", "lon", "x")
	if err != nil {
		return nil, err
	}

	var flat []float64
	var shape []int
	found := false
	for _, name := range []string{"z", "Z", "geopotential"} {
		v, err := nc.Var(name)
		if err != nil {
			continue
		}
		flat, shape, err = readVarData(v)
		if err != nil {
			return nil, fmt.Errorf("failed to read geopotential variable %q: %w", name, err)
		}
		found = true
		break
	}
	if !found {
		return nil, fmt.Errorf("geopotential variable not found (tried: z, Z, geopotential)")
	}

	if len(shape) == 3 && shape[0] == 1 {
		shape = shape[1:]
	}
	if len(shape) != 2 {
		return nil, fmt.Errorf("expected 2D geopotential data, got shape %v", shape)
	}

	nLat, nLon := len(lats), len(lons)
	values := make([][]float64, nLat)
	switch {
	case shape[0] == nLat && shape[1] == nLon:
		for i := 0; i < nLat; i++ {
			values[i] = flat[i*nLon : (i+1)*nLon]
		}
	case shape[0] == nLon && shape[1] == nLat:
		// Data is [lon, lat], transpose.
		for i := 0; i < nLat; i++ {
			row := make([]float64, nLon)
			for j := 0; j < nLon; j++ {
				row[j] = flat[j*nLat+i]
			}
			values[i] = row
		}
	default:
		return nil, fmt.Errorf("dimension mismatch: data is %v, expected [%d %d] or [%d %d]",
			shape, nLat, nLon, nLon, nLat)
	}
	return &TerrainGrid{Lats: lats, Lons: lons, Values: values}, nil
}

// readCoord reads a 1D coordinate variable, trying several common names.
func readCoord(nc netcdf.Dataset, names ...string) ([]float64, error) {
	for _, name := range names {
		v, err := nc.Var(name)
		if err != nil {
			continue
		}
		flat, shape, err := readVarData(v)
		if err != nil || len(shape) != 1 {
			continue
		}
		return flat, nil
	}
	return nil, fmt.Errorf("coordinate variable not found (tried: %v)", names)
}

// readTimes reads and decodes the time axis per its CF units attribute,
// falling back to the ERA5 epoch convention when the attribute is missing.
func readTimes(nc netcdf.Dataset) ([]time.Time, error) {
	v, err := nc.Var("time")
	if err != nil {
		return nil, fmt.Errorf("time variable not found: %w", err)
	}
	vals, shape, err := readVarData(v)
	if err != nil {
		return nil, fmt.Errorf("failed to read time variable: %w", err)
	}
	if len(shape) != 1 {
		return nil, fmt.Errorf("expected 1D time variable, got %dD", len(shape))
	}
	units, ok := attrText(v, "units")
	if !ok {
		logrus.Warnf("time variable has no units attribute, assuming %q", defaultTimeUnits)
		units = defaultTimeUnits
	}
	return decodeTimes(vals, units)
}

// decodeTimes converts CF-style numeric times ("<unit> since <epoch>") to
// timestamps.
func decodeTimes(vals []float64, units string) ([]time.Time, error) {
	parts := strings.SplitN(units, " since ", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("unsupported time units %q", units)
	}
	var unit time.Duration
	switch strings.ToLower(strings.TrimSpace(parts[0])) {
	case "seconds", "second":
		unit = time.Second
	case "minutes", "minute":
		unit = time.Minute
	case "hours", "hour":
		unit = time.Hour
	case "days", "day":
		unit = 24 * time.Hour
	default:
		return nil, fmt.Errorf("unsupported time unit %q", parts[0])
	}

	epochStr := strings.TrimSpace(parts[1])
	var epoch time.Time
	var err error
	for _, layout := range []string{"2006-01-02 15:04:05.0", "2006-01-02 15:04:05", "2006-01-02T15:04:05Z", "2006-01-02"} {
		epoch, err = time.Parse(layout, epochStr)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("unsupported time epoch %q", epochStr)
	}

	times := make([]time.Time, len(vals))
	for i, val := range vals {
		times[i] = epoch.Add(time.Duration(val * float64(unit)))
	}
	return times, nil
}

// readVarData reads a variable of any rank as a flat float64 slice plus its
// shape, mapping fill values to NaN and unpacking scale_factor/add_offset.
func readVarData(v netcdf.Var) ([]float64, []int, error) {
	dims, err := v.Dims()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get dimensions: %w", err)
	}
	shape := make([]int, len(dims))
	total := 1
	for i, d := range dims {
		n, err := d.Len()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get dimension length: %w", err)
		}
		shape[i] = int(n)
		total *= int(n)
	}

	t, err := v.Type()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get var type: %w", err)
	}
	var flat []float64
	switch t {
	case netcdf.DOUBLE:
		flat = make([]float64, total)
		if err := v.ReadFloat64s(flat); err != nil {
			return nil, nil, err
		}
	case netcdf.FLOAT:
		tmp := make([]float32, total)
		if err := v.ReadFloat32s(tmp); err != nil {
			return nil, nil, err
		}
		flat = make([]float64, total)
		for i, val := range tmp {
			flat[i] = float64(val)
		}
	case netcdf.INT:
		tmp := make([]int32, total)
		if err := v.ReadInt32s(tmp); err != nil {
			return nil, nil, err
		}
		flat = make([]float64, total)
		for i, val := range tmp {
			flat[i] = float64(val)
		}
	case netcdf.SHORT:
		tmp := make([]int16, total)
		if err := v.ReadInt16s(tmp); err != nil {
			return nil, nil, err
		}
		flat = make([]float64, total)
		for i, val := range tmp {
			flat[i] = float64(val)
		}
	default:
		return nil, nil, fmt.Errorf("unsupported var type: %v", t)
	}

	// Fill comparison happens on packed values, before unpacking.
	if fv, ok := attrNumber(v, "_FillValue", "missing_value"); ok {
		for i, val := range flat {
			if val == fv {
				flat[i] = math.NaN()
			}
		}
	}
	scale, hasScale := attrNumber(v, "scale_factor")
	offset, hasOffset := attrNumber(v, "add_offset")
	if hasScale || hasOffset {
		if !hasScale {
			scale = 1
		}
		if !hasOffset {
			offset = 0
		}
		for i, val := range flat {
			if !math.IsNaN(val) {
				flat[i] = val*scale + offset
			}
		}
	}
	return flat, shape, nil
}

// attrNumber returns the first of the named attributes present as a number.
func attrNumber(v netcdf.Var, names ...string) (float64, bool) {
	for _, name := range names {
		a := v.Attr(name)
		n, err := a.Len()
		if err != nil || n == 0 {
			continue
		}
		buf64 := make([]float64, n)
		if err := a.ReadFloat64s(buf64); err == nil {
			return buf64[0], true
		}
		buf32 := make([]float32, n)
		if err := a.ReadFloat32s(buf32); err == nil {
			return float64(buf32[0]), true
		}
		bufi := make([]int32, n)
		if err := a.ReadInt32s(bufi); err == nil {
			return float64(bufi[0]), true
		}
	}
	return 0, false
}

// attrText reads a character attribute as a string.
func attrText(v netcdf.Var, name string) (string, bool) {
	a := v.Attr(name)
	n, err := a.Len()
	if err != nil || n == 0 {
		return "", false
	}
	buf := make([]byte, n)
	if err := a.ReadBytes(buf); err != nil {
		return "", false
	}
	return strings.TrimRight(string(buf), "\x00"), true
}
