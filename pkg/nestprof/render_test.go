package nestprof

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func sampleSnapshot() Snapshot {
	return Snapshot{
		Taken: testEpoch,
		Roots: []Region{
			{
				Name: "main", Path: "main", Calls: 1,
				CPUTotal: 2 * time.Second, WallTotal: 3 * time.Second,
				Children: []Region{
					{
						Name: "load", Note: "Load input", Path: "main/load", Depth: 1, Calls: 4,
						CPUTotal: 250 * time.Millisecond, WallTotal: 500 * time.Millisecond,
						Children: []Region{
							{Name: "parse", Path: "main/load/parse", Depth: 2, Calls: 4},
						},
					},
				},
			},
			{Name: "cleanup", Path: "cleanup", Calls: 1, Active: true},
		},
	}
}

func TestRendererIndentNumbers(t *testing.T) {
	testCases := []struct {
		name     string
		renderer Renderer
		want     string
	}{
		{
			name:     "Indented",
			renderer: Renderer{Indent: 2, IndentNumbers: true},
			want:     reportRow("  Load input", 4, "  0.2500", "  0.5000"),
		},
		{
			name:     "LabelsOnly",
			renderer: Renderer{Indent: 2, IndentNumbers: false},
			want:     reportRow("  Load input", 4, "0.2500", "0.5000"),
		},
		{
			name:     "Flat",
			renderer: Renderer{Indent: 0, IndentNumbers: true},
			want:     reportRow("Load input", 4, "0.2500", "0.5000"),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.renderer.String(sampleSnapshot(), DefaultMaxDepth)
			if !strings.Contains(got, tc.want) {
				t.Errorf("Expected row %q in:\n%s", tc.want, got)
			}
		})
	}
}

func TestRendererEmptySnapshot(t *testing.T) {
	got := DefaultRenderer().String(Snapshot{}, DefaultMaxDepth)
	if strings.Count(got, "\n") != 4 {
		t.Errorf("Expected rules and header only, got:\n%s", got)
	}
	if !strings.HasPrefix(got, strings.Repeat("-", 100)+"\n") {
		t.Error("Report should open with a rule line")
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestRendererWriteError(t *testing.T) {
	if err := DefaultRenderer().Render(failingWriter{}, sampleSnapshot(), DefaultMaxDepth); err == nil {
		t.Error("Expected write error to be returned")
	}
}

func TestSnapshotQueries(t *testing.T) {
	snap := sampleSnapshot()

	if n := snap.Len(); n != 4 {
		t.Errorf("Expected 4 regions, got %d", n)
	}

	var order []string
	snap.Walk(func(r Region) { order = append(order, r.Name) })
	if strings.Join(order, ",") != "main,load,parse,cleanup" {
		t.Errorf("Unexpected walk order %v", order)
	}

	if r, ok := snap.Find("main/load/parse"); !ok || r.Calls != 4 {
		t.Errorf("Expected to find parse, got %+v ok=%v", r, ok)
	}
	if _, ok := snap.Find("parse"); ok {
		t.Error("Find matches full paths only")
	}
}

func TestRegionJSON(t *testing.T) {
	data, err := json.Marshal(sampleSnapshot())
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded struct {
		Roots []map[string]any `json:"roots"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	main := decoded.Roots[0]
	if main["cpu_time_s"] != 2.0 || main["wall_time_s"] != 3.0 {
		t.Errorf("Expected durations as float seconds, got %v / %v", main["cpu_time_s"], main["wall_time_s"])
	}
	if _, ok := main["note"]; ok {
		t.Error("Empty note should be omitted")
	}
	children, ok := main["children"].([]any)
	if !ok || len(children) != 1 {
		t.Fatalf("Expected nested children, got %v", main["children"])
	}
	if decoded.Roots[1]["active"] != true {
		t.Error("Expected cleanup to be marked active")
	}
}

func TestStopErrorMessages(t *testing.T) {
	mismatch := &StopError{Reason: ReasonMismatch, Name: "a", Active: "b"}
	if !strings.Contains(mismatch.Error(), `"a"`) || !strings.Contains(mismatch.Error(), `"b"`) {
		t.Errorf("Unexpected message %q", mismatch.Error())
	}
	noActive := &StopError{Reason: ReasonNoActive, Name: "a"}
	if !strings.Contains(noActive.Error(), "no region is active") {
		t.Errorf("Unexpected message %q", noActive.Error())
	}

	wrapped := errors.Join(errors.New("context"), mismatch)
	if !IsStopError(wrapped) {
		t.Error("IsStopError should see through wrapping")
	}
	if IsStopError(errors.New("other")) {
		t.Error("Plain errors are not stop errors")
	}
	if ReasonMismatch.String() != "mismatched region" || StopReason(9).String() != "StopReason(9)" {
		t.Error("Unexpected reason strings")
	}
}
