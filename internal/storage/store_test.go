package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/san-kum/beatsim/internal/config"
	"github.com/san-kum/beatsim/internal/experiment"
	"github.com/san-kum/beatsim/internal/mesh"
)

func testResult() *experiment.Result {
	return &experiment.Result{
		Probes: []experiment.Probe{
			{Name: "probe_0", Point: mesh.Point{X: 0}, Dof: 0},
			{Name: "probe_1", Point: mesh.Point{X: 1}, Dof: 10},
		},
		Times:   []float64{0, 0.1, 0.2},
		Traces:  [][]float64{{-85, -85}, {-40.5, -85}, {12.25, -84.75}},
		Final:   []float64{12.25, -84.75},
		Steps:   2,
		Metrics: map[string]float64{"peak_v": 12.25},
		Elapsed: 3 * time.Millisecond,
	}
}

func TestStoreSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	cfg := config.GetPreset("cable")
	runID, err := st.Save(cfg, testResult())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if !strings.HasPrefix(runID, "cable_") {
		t.Errorf("expected run id prefixed by the config name, got %q", runID)
	}

	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if meta.Cell != "fitzhugh_nagumo" {
		t.Errorf("expected cell 'fitzhugh_nagumo', got '%s'", meta.Cell)
	}

	if meta.Theta != 0.5 {
		t.Errorf("expected theta 0.5, got %g", meta.Theta)
	}

	if meta.Metrics["peak_v"] != 12.25 {
		t.Errorf("expected peak 12.25, got %f", meta.Metrics["peak_v"])
	}

	if meta.Config == nil || meta.Config.Grid.Nx != cfg.Grid.Nx {
		t.Errorf("expected the config to round trip, got %+v", meta.Config)
	}

	if len(meta.Probes) != 2 || meta.Probes[1].Dof != 10 {
		t.Errorf("unexpected probes %+v", meta.Probes)
	}

	tr, err := st.LoadTrace(runID)
	if err != nil {
		t.Fatalf("load trace failed: %v", err)
	}

	if len(tr.Times) != 3 {
		t.Errorf("expected 3 rows, got %d", len(tr.Times))
	}

	if got := tr.Column(0); got[2] != 12.25 {
		t.Errorf("expected probe_0 to end at 12.25, got %v", got)
	}

	if tr.Columns[1] != "probe_1" {
		t.Errorf("expected column probe_1, got %v", tr.Columns)
	}
}

func TestStoreList(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list of a missing directory failed: %v", err)
	}

	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}

	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	first, err := st.Save(config.GetPreset("cable"), testResult())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	second, err := st.Save(config.GetPreset("sheet"), testResult())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if err := os.Mkdir(filepath.Join(tmpDir, "not_a_run"), 0755); err != nil {
		t.Fatal(err)
	}

	runs, err = st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}

	if runs[0].ID != second || runs[1].ID != first {
		t.Errorf("expected newest first, got %s then %s", runs[0].ID, runs[1].ID)
	}
}

func TestStoreMissingRun(t *testing.T) {
	st := New(t.TempDir())

	if _, err := st.Load("nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}

	if _, err := st.LoadTrace("nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}

	if _, err := st.TracePath("nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestStoreTracePath(t *testing.T) {
	dir := t.TempDir()
	st := New(dir)

	runID, err := st.Save(config.GetPreset("passive_mode"), testResult())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	path, err := st.TracePath(runID)
	if err != nil {
		t.Fatalf("trace path failed: %v", err)
	}
	if path != filepath.Join(dir, runID, "trace.csv") {
		t.Errorf("unexpected trace path %s", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("trace file missing: %v", err)
	}
}

func TestExportJSON(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	runID, err := st.Save(config.GetPreset("passive_mode"), testResult())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	var buf bytes.Buffer
	if err := st.ExportJSON(&buf, runID); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	var doc struct {
		ID    string `json:"id"`
		Steps int    `json:"steps"`
		Trace struct {
			Columns []string    `json:"columns"`
			Values  [][]float64 `json:"values"`
		} `json:"trace"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}

	if doc.ID != runID || doc.Steps != 2 {
		t.Errorf("unexpected header %+v", doc)
	}

	if len(doc.Trace.Values) != 3 || len(doc.Trace.Columns) != 2 {
		t.Errorf("unexpected trace %+v", doc.Trace)
	}
}
