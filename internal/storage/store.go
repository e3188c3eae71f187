package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/beatsim/internal/config"
	"github.com/san-kum/beatsim/internal/experiment"
)

const (
	metadataFile = "metadata.json"
	traceFile    = "trace.csv"
)

// ErrRunNotFound is returned for run ids with no stored metadata.
var ErrRunNotFound = errors.New("storage: run not found")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Cell      string             `json:"cell"`
	PDE       string             `json:"pde"`
	Theta     float64            `json:"theta"`
	ODEScheme string             `json:"ode_scheme"`
	Timestamp time.Time          `json:"timestamp"`
	Steps     int                `json:"steps"`
	Elapsed   time.Duration      `json:"elapsed"`
	Probes    []experiment.Probe `json:"probes"`
	Metrics   map[string]float64 `json:"metrics"`
	Final     []float64          `json:"final_v"`
	Config    *config.Config     `json:"config"`
}

// Trace is the potential at every probe over time.
type Trace struct {
	Columns []string    `json:"columns"`
	Times   []float64   `json:"times"`
	Values  [][]float64 `json:"values"`
}

func (t *Trace) Column(k int) []float64 {
	out := make([]float64, len(t.Values))
	for i, row := range t.Values {
		out[i] = row[k]
	}
	return out
}

// Save writes the metadata and probe trace of a finished run and returns
// its id.
func (s *Store) Save(cfg *config.Config, res *experiment.Result) (string, error) {
	runID := fmt.Sprintf("%s_%s", cfg.Name, uuid.NewString())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:        runID,
		Name:      cfg.Name,
		Cell:      cfg.Cell,
		PDE:       cfg.PDE.Kind,
		Theta:     cfg.Splitting.Theta,
		ODEScheme: cfg.ODE.Scheme,
		Timestamp: time.Now(),
		Steps:     res.Steps,
		Elapsed:   res.Elapsed,
		Probes:    res.Probes,
		Metrics:   res.Metrics,
		Final:     res.Final,
		Config:    cfg,
	}
	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}

	if err := writeTrace(filepath.Join(runDir, traceFile), res); err != nil {
		return "", err
	}
	return runID, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeTrace(path string, res *experiment.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"time"}
	for _, p := range res.Probes {
		header = append(header, p.Name)
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for i, t := range res.Times {
		row := []string{strconv.FormatFloat(t, 'f', 6, 64)}
		for _, v := range res.Traces[i] {
			row = append(row, strconv.FormatFloat(v, 'g', 10, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// List returns the stored runs, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

// TracePath returns the trace CSV file of a stored run.
func (s *Store) TracePath(runID string) (string, error) {
	path := filepath.Join(s.baseDir, runID, traceFile)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return "", err
	}
	return path, nil
}

func (s *Store) LoadTrace(runID string) (*Trace, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, traceFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("run %s: empty trace", runID)
	}

	tr := &Trace{Columns: records[0][1:]}
	for i, record := range records[1:] {
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, fmt.Errorf("run %s: row %d: %w", runID, i+1, err)
		}
		row := make([]float64, len(record)-1)
		for j, field := range record[1:] {
			if row[j], err = strconv.ParseFloat(field, 64); err != nil {
				return nil, fmt.Errorf("run %s: row %d: %w", runID, i+1, err)
			}
		}
		tr.Times = append(tr.Times, t)
		tr.Values = append(tr.Values, row)
	}
	return tr, nil
}

type exportData struct {
	*RunMetadata
	Trace *Trace `json:"trace"`
}

// ExportJSON writes the metadata and trace of a run as one JSON document.
func (s *Store) ExportJSON(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	tr, err := s.LoadTrace(runID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(exportData{RunMetadata: meta, Trace: tr})
}
