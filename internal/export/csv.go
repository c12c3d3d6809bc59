// Package export renders batch results as downloadable files.
package export

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/UnknownOlympus/nearby/internal/models"
)

// Column values used in place of missing data.
const (
	NoDistance   = "无法计算"
	NoCoordinate = "无"
	StatusOK     = "成功"
)

// FileName is the suggested name of the CSV download.
const FileName = "地址距离计算结果.csv"

// Header is the first row of every export.
var Header = []string{"地址", "距离(公里)", "经度", "纬度", "状态"}

const bom = "\uFEFF"

// ErrBadHeader is returned by ReadCSV when the first row is not Header.
var ErrBadHeader = errors.New("unexpected csv header")

// Row is one parsed line of an export.
type Row struct {
	Address    string
	DistanceKm *float64
	Longitude  *float64
	Latitude   *float64
	Status     string
}

// Succeeded reports whether the row describes a resolved address.
func (r Row) Succeeded() bool { return r.Status == StatusOK }

// Record renders one result as the five export columns.
func Record(res models.AddressResult) []string {
	distance := NoDistance
	if res.Distance != nil {
		distance = strconv.FormatFloat(*res.Distance/1000, 'f', 2, 64)
	}

	lng, lat := NoCoordinate, NoCoordinate
	if res.Location != nil {
		lng = strconv.FormatFloat(res.Location.Longitude, 'f', -1, 64)
		lat = strconv.FormatFloat(res.Location.Latitude, 'f', -1, 64)
	}

	status := StatusOK
	if res.Error != "" {
		status = res.Error
	}

	return []string{res.Address, distance, lng, lat, status}
}

// WriteCSV writes results in order, preceded by a UTF-8 byte order mark and Header.
func WriteCSV(w io.Writer, results []models.AddressResult) error {
	if _, err := io.WriteString(w, bom); err != nil {
		return fmt.Errorf("failed to write BOM: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, res := range results {
		if err := cw.Write(Record(res)); err != nil {
			return fmt.Errorf("failed to write row for %q: %w", res.Address, err)
		}
	}
	cw.Flush()

	return cw.Error()
}

// ReadCSV parses a file written by WriteCSV. The byte order mark is optional.
func ReadCSV(r io.Reader) ([]Row, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(bom)); err == nil && string(head) == bom {
		_, _ = br.Discard(len(bom))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = len(Header)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if strings.Join(header, ",") != strings.Join(Header, ",") {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, header)
	}

	var rows []Row
	for {
		record, errRead := cr.Read()
		if errors.Is(errRead, io.EOF) {
			break
		}
		if errRead != nil {
			return nil, fmt.Errorf("failed to read row: %w", errRead)
		}

		row, errParse := parseRecord(record)
		if errParse != nil {
			return nil, errParse
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func parseRecord(record []string) (Row, error) {
	row := Row{Address: record[0], Status: record[4]}

	var err error
	if row.DistanceKm, err = parseOptional(record[1], NoDistance); err != nil {
		return Row{}, fmt.Errorf("distance of %q: %w", row.Address, err)
	}
	if row.Longitude, err = parseOptional(record[2], NoCoordinate); err != nil {
		return Row{}, fmt.Errorf("longitude of %q: %w", row.Address, err)
	}
	if row.Latitude, err = parseOptional(record[3], NoCoordinate); err != nil {
		return Row{}, fmt.Errorf("latitude of %q: %w", row.Address, err)
	}

	return row, nil
}

func parseOptional(raw, sentinel string) (*float64, error) {
	if raw == sentinel {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
