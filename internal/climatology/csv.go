package climatology

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ParseCSV reads rows of lat,lon,doy,tmean[,tmin,tmax]. A header line
// starting with "lat" is skipped; empty tmin/tmax cells are stored as NULL.
func ParseCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var rows []Row
	line := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "lat") {
			continue
		}
		row, err := parseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRecord(rec []string) (Row, error) {
	if len(rec) < 4 || len(rec) > 6 {
		return Row{}, fmt.Errorf("expected 4 to 6 fields, got %d", len(rec))
	}
	var row Row
	var err error
	if row.Lat, err = parseFloat("lat", rec[0]); err != nil {
		return Row{}, err
	}
	if row.Lat < -90 || row.Lat > 90 {
		return Row{}, fmt.Errorf("lat %v out of range", row.Lat)
	}
	if row.Lon, err = parseFloat("lon", rec[1]); err != nil {
		return Row{}, err
	}
	if row.Lon < -180 || row.Lon > 180 {
		return Row{}, fmt.Errorf("lon %v out of range", row.Lon)
	}
	if row.DOY, err = strconv.Atoi(strings.TrimSpace(rec[2])); err != nil {
		return Row{}, fmt.Errorf("doy: %w", err)
	}
	if row.TMean, err = parseFloat("tmean", rec[3]); err != nil {
		return Row{}, err
	}
	if len(rec) > 4 {
		if row.TMin, err = parseOptional("tmin", rec[4]); err != nil {
			return Row{}, err
		}
	}
	if len(rec) > 5 {
		if row.TMax, err = parseOptional("tmax", rec[5]); err != nil {
			return Row{}, err
		}
	}
	return row, nil
}

func parseFloat(name, s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s: %q is not a finite number", name, s)
	}
	return v, nil
}

func parseOptional(name, s string) (*float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	v, err := parseFloat(name, s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
