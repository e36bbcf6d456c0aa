package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/chosenoffset/nestprof/pkg/nestprof"
)

var csvHeader = []string{"Path", "Calls", "CPU (s)", "Wall (s)", "Active"}

// CSVExporter writes one row per region. The header is written before the
// first row only, so repeated exports append to a single table.
type CSVExporter struct {
	mu          sync.Mutex
	writer      *csv.Writer
	closer      io.Closer
	wroteHeader bool
}

// NewCSVExporter writes rows to w. Closing the exporter flushes but does
// not close w.
func NewCSVExporter(w io.Writer) *CSVExporter {
	return &CSVExporter{writer: csv.NewWriter(w)}
}

// CreateCSVExporter creates (or truncates) the file at path and writes rows
// to it. Closing the exporter closes the file.
func CreateCSVExporter(path string) (*CSVExporter, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating csv export file: %w", err)
	}
	e := NewCSVExporter(file)
	e.closer = file
	return e, nil
}

func (e *CSVExporter) Export(s nestprof.Snapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.wroteHeader {
		if err := e.writer.Write(csvHeader); err != nil {
			return err
		}
		e.wroteHeader = true
	}

	var err error
	s.Walk(func(r nestprof.Region) {
		if err != nil {
			return
		}
		err = e.writer.Write([]string{
			r.Path,
			strconv.Itoa(r.Calls),
			strconv.FormatFloat(r.CPUTotal.Seconds(), 'f', 6, 64),
			strconv.FormatFloat(r.WallTotal.Seconds(), 'f', 6, 64),
			strconv.FormatBool(r.Active),
		})
	})
	if err != nil {
		return err
	}

	e.writer.Flush()
	return e.writer.Error()
}

func (e *CSVExporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.writer.Flush()
	err := e.writer.Error()
	if e.closer != nil {
		if cerr := e.closer.Close(); err == nil {
			err = cerr
		}
		e.closer = nil
	}
	return err
}
