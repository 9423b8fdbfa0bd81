package grid

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/fhs/go-netcdf/netcdf"
)

const fillValue = 1.0e20

var (
	timeDimNames = map[string]bool{"time": true, "t": true}
	yDimNames    = map[string]bool{"y": true, "lat": true, "latitude": true}
	xDimNames    = map[string]bool{"x": true, "lon": true, "longitude": true}
)

// carriedAttrs are the descriptive variable attributes kept on read so
// provenance survives a write/read round trip.
var carriedAttrs = []string{
	"history", "long_name", "standard_name", "cell_methods",
	"qqmap_run_id", "qqmap_version", "qqmap_job",
}

// dataVarNames are probed in order when no variable name is configured:
// the common CMIP short names plus generic fallbacks.
var dataVarNames = []string{
	"pr", "tas", "tasmax", "tasmin", "precip", "precipitation",
	"temp", "temperature", "data",
}

// ReadFile loads one variable from a NetCDF file into a Grid. An empty
// varName probes the common climate variable names. The file's dimension
// order may be any permutation of (time, y, x); data is rearranged into the
// in-memory (x, y, time) layout and fill values become NaN.
func ReadFile(path, varName string) (*Grid, error) {
	nc, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer nc.Close()

	v, name, err := findDataVar(nc, varName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	dims, err := v.Dims()
	if err != nil {
		return nil, fmt.Errorf("%s: dims of %s: %w", path, name, err)
	}
	if len(dims) != 3 {
		return nil, fmt.Errorf("%s: variable %s is %d-dimensional, want 3", path, name, len(dims))
	}

	var axisOf [3]int // 0=time 1=y 2=x per file dim position
	var lens [3]int
	seen := map[int]bool{}
	for i, d := range dims {
		dn, err := d.Name()
		if err != nil {
			return nil, fmt.Errorf("%s: dim name: %w", path, err)
		}
		n, err := d.Len()
		if err != nil {
			return nil, fmt.Errorf("%s: dim %s length: %w", path, dn, err)
		}
		lens[i] = int(n)
		switch low := strings.ToLower(dn); {
		case timeDimNames[low]:
			axisOf[i] = 0
		case yDimNames[low]:
			axisOf[i] = 1
		case xDimNames[low]:
			axisOf[i] = 2
		default:
			return nil, fmt.Errorf("%s: unrecognized dimension %q on %s", path, dn, name)
		}
		if seen[axisOf[i]] {
			return nil, fmt.Errorf("%s: duplicate axis role for dimension %q", path, dn)
		}
		seen[axisOf[i]] = true
	}

	var nt, ny, nx int
	for i := range dims {
		switch axisOf[i] {
		case 0:
			nt = lens[i]
		case 1:
			ny = lens[i]
		case 2:
			nx = lens[i]
		}
	}

	times, err := readTimeAxis(nc, dims, axisOf, nt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	ys := readCoordAxis(nc, dims, axisOf, 1, ny)
	xs := readCoordAxis(nc, dims, axisOf, 2, nx)

	flat, err := readNumeric(v, lens[0]*lens[1]*lens[2])
	if err != nil {
		return nil, fmt.Errorf("%s: read %s: %w", path, name, err)
	}
	if fill, ok := attrFloat(v, "_FillValue", "missing_value"); ok {
		for i, val := range flat {
			if val == fill {
				flat[i] = math.NaN()
			}
		}
	}

	g := New(name, xs, ys, times)
	if units, ok := attrString(v, "units"); ok {
		g.Units = units
	}
	for _, attr := range carriedAttrs {
		if val, ok := attrString(v, attr); ok {
			g.Attrs[attr] = val
		}
	}

	// File strides in its own dimension order, then scatter into (x, y, time).
	stride := [3]int{lens[1] * lens[2], lens[2], 1}
	var pos [3]int // indexed by axis role: time, y, x
	for xi := 0; xi < nx; xi++ {
		pos[2] = xi
		for yi := 0; yi < ny; yi++ {
			pos[1] = yi
			for ti := 0; ti < nt; ti++ {
				pos[0] = ti
				src := 0
				for i := range dims {
					src += pos[axisOf[i]] * stride[i]
				}
				g.Set(flat[src], xi, yi, ti)
			}
		}
	}
	return g, nil
}

// WriteFile stores a grid as a CF-style NetCDF file with (time, y, x)
// dimension order, NaN mapped to the fill value and a standard-calendar
// numeric time axis anchored at the first timestamp.
func WriteFile(path string, g *Grid) error {
	if err := g.CheckShape(); err != nil {
		return err
	}
	nc, err := netcdf.CreateFile(path, netcdf.CLOBBER|netcdf.NETCDF4)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer nc.Close()

	timeDim, err := nc.AddDim("time", uint64(g.Nt()))
	if err != nil {
		return fmt.Errorf("add time dim: %w", err)
	}
	yDim, err := nc.AddDim("y", uint64(g.Ny()))
	if err != nil {
		return fmt.Errorf("add y dim: %w", err)
	}
	xDim, err := nc.AddDim("x", uint64(g.Nx()))
	if err != nil {
		return fmt.Errorf("add x dim: %w", err)
	}

	epoch := time.Date(1850, 1, 1, 0, 0, 0, 0, time.UTC)
	if g.Nt() > 0 {
		epoch = g.Times[0].UTC().Truncate(24 * time.Hour)
	}
	enc := &TimeEncoding{Unit: "days", Epoch: epoch, Calendar: "standard"}

	timeVar, err := nc.AddVar("time", netcdf.DOUBLE, []netcdf.Dim{timeDim})
	if err != nil {
		return fmt.Errorf("add time var: %w", err)
	}
	units := fmt.Sprintf("days since %s", epoch.Format("2006-01-02 15:04:05"))
	if err := timeVar.Attr("units").WriteBytes([]byte(units)); err != nil {
		return fmt.Errorf("write time units: %w", err)
	}
	if err := timeVar.Attr("calendar").WriteBytes([]byte("standard")); err != nil {
		return fmt.Errorf("write time calendar: %w", err)
	}

	yVar, err := nc.AddVar("y", netcdf.DOUBLE, []netcdf.Dim{yDim})
	if err != nil {
		return fmt.Errorf("add y var: %w", err)
	}
	xVar, err := nc.AddVar("x", netcdf.DOUBLE, []netcdf.Dim{xDim})
	if err != nil {
		return fmt.Errorf("add x var: %w", err)
	}

	name := g.Name
	if name == "" {
		name = "data"
	}
	dataVar, err := nc.AddVar(name, netcdf.DOUBLE, []netcdf.Dim{timeDim, yDim, xDim})
	if err != nil {
		return fmt.Errorf("add %s var: %w", name, err)
	}
	if g.Units != "" {
		if err := dataVar.Attr("units").WriteBytes([]byte(g.Units)); err != nil {
			return fmt.Errorf("write %s units: %w", name, err)
		}
	}
	if err := dataVar.Attr("_FillValue").WriteFloat64s([]float64{fillValue}); err != nil {
		return fmt.Errorf("write fill value: %w", err)
	}
	for k, val := range g.Attrs {
		if err := dataVar.Attr(k).WriteBytes([]byte(val)); err != nil {
			return fmt.Errorf("write attribute %s: %w", k, err)
		}
	}

	if err := nc.EndDef(); err != nil {
		return fmt.Errorf("end define mode: %w", err)
	}

	axis := make([]float64, g.Nt())
	for i, t := range g.Times {
		axis[i] = enc.Encode(t.UTC())
	}
	if err := timeVar.WriteFloat64s(axis); err != nil {
		return fmt.Errorf("write time axis: %w", err)
	}
	if err := yVar.WriteFloat64s(g.Ys); err != nil {
		return fmt.Errorf("write y axis: %w", err)
	}
	if err := xVar.WriteFloat64s(g.Xs); err != nil {
		return fmt.Errorf("write x axis: %w", err)
	}

	flat := make([]float64, g.Nx()*g.Ny()*g.Nt())
	for ti := 0; ti < g.Nt(); ti++ {
		for yi := 0; yi < g.Ny(); yi++ {
			for xi := 0; xi < g.Nx(); xi++ {
				val := g.At(xi, yi, ti)
				if math.IsNaN(val) {
					val = fillValue
				}
				flat[(ti*g.Ny()+yi)*g.Nx()+xi] = val
			}
		}
	}
	if err := dataVar.WriteFloat64s(flat); err != nil {
		return fmt.Errorf("write %s data: %w", name, err)
	}
	return nil
}

// findDataVar resolves the requested variable, or probes the usual
// climate variable names when none is given.
func findDataVar(nc netcdf.Dataset, varName string) (netcdf.Var, string, error) {
	if varName != "" {
		v, err := nc.Var(varName)
		if err != nil {
			return netcdf.Var{}, "", fmt.Errorf("variable %s: %w", varName, err)
		}
		return v, varName, nil
	}
	for _, name := range dataVarNames {
		v, err := nc.Var(name)
		if err != nil {
			continue
		}
		dims, err := v.Dims()
		if err != nil || len(dims) != 3 {
			continue
		}
		return v, name, nil
	}
	return netcdf.Var{}, "", fmt.Errorf("no data variable found (tried %v); set one explicitly", dataVarNames)
}

func readTimeAxis(nc netcdf.Dataset, dims []netcdf.Dim, axisOf [3]int, nt int) ([]time.Time, error) {
	var dimName string
	for i, d := range dims {
		if axisOf[i] == 0 {
			n, err := d.Name()
			if err != nil {
				return nil, fmt.Errorf("time dim name: %w", err)
			}
			dimName = n
		}
	}
	tv, err := nc.Var(dimName)
	if err != nil {
		return nil, fmt.Errorf("time coordinate %s: %w", dimName, err)
	}
	raw, err := readNumeric(tv, nt)
	if err != nil {
		return nil, fmt.Errorf("read time axis: %w", err)
	}
	units, ok := attrString(tv, "units")
	if !ok {
		return nil, fmt.Errorf("time coordinate %s has no units attribute", dimName)
	}
	calendar, _ := attrString(tv, "calendar")
	enc, err := ParseTimeUnits(units, calendar)
	if err != nil {
		return nil, err
	}
	return enc.DecodeAll(raw), nil
}

// readCoordAxis reads the coordinate variable for a spatial dimension,
// falling back to 0..n-1 indices when the file has none.
func readCoordAxis(nc netcdf.Dataset, dims []netcdf.Dim, axisOf [3]int, role, n int) []float64 {
	for i, d := range dims {
		if axisOf[i] != role {
			continue
		}
		name, err := d.Name()
		if err != nil {
			break
		}
		v, err := nc.Var(name)
		if err != nil {
			break
		}
		coords, err := readNumeric(v, n)
		if err != nil {
			break
		}
		return coords
	}
	coords := make([]float64, n)
	for i := range coords {
		coords[i] = float64(i)
	}
	return coords
}

// readNumeric reads a variable of any common numeric type as float64.
func readNumeric(v netcdf.Var, n int) ([]float64, error) {
	t, err := v.Type()
	if err != nil {
		return nil, fmt.Errorf("variable type: %w", err)
	}
	switch t {
	case netcdf.DOUBLE:
		out := make([]float64, n)
		if err := v.ReadFloat64s(out); err != nil {
			return nil, err
		}
		return out, nil
	case netcdf.FLOAT:
		tmp := make([]float32, n)
		if err := v.ReadFloat32s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, n)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	case netcdf.INT:
		tmp := make([]int32, n)
		if err := v.ReadInt32s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, n)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	case netcdf.SHORT:
		tmp := make([]int16, n)
		if err := v.ReadInt16s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, n)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported variable type %v", t)
	}
}

// attrFloat returns the first present numeric attribute among names.
func attrFloat(v netcdf.Var, names ...string) (float64, bool) {
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
	}
	return 0, false
}

func attrString(v netcdf.Var, name string) (string, bool) {
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
