package batch

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/marcus/triage/internal/strategy"
	"github.com/marcus/triage/internal/tasks"
)

func newStore(t *testing.T) *tasks.Store {
	t.Helper()
	s := tasks.NewStore()
	_, err := s.AddBulk([]byte(`[
		{"title":"A","due_date":"2024-01-01","estimated_hours":2,"importance":5},
		{"title":"B","due_date":"2024-01-03","estimated_hours":1,"importance":9,"dependencies":[1]}
	]`))
	if err != nil {
		t.Fatalf("AddBulk() error = %v", err)
	}
	return s
}

func TestPrepare_DoesNotMutateSource(t *testing.T) {
	s := newStore(t)
	before := s.Snapshot()

	b := Prepare(s, strategy.Resolve(strategy.Fastest))
	b[0].Title = "changed"
	b[1].Dependencies[0] = 42

	if after := s.Snapshot(); !reflect.DeepEqual(before, after) {
		t.Errorf("store changed by Prepare:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestPrepare_PreservesOrder(t *testing.T) {
	s := newStore(t)
	b := Prepare(s, strategy.Balanced)
	if len(b) != 2 {
		t.Fatalf("len = %d, want 2", len(b))
	}
	if b[0].ID != 1 || b[1].ID != 2 {
		t.Errorf("ids = %d,%d, want 1,2", b[0].ID, b[1].ID)
	}
}

func TestPrepare_EveryRecordCarriesWeights(t *testing.T) {
	for _, st := range append(strategy.All(), "unknown") {
		t.Run(string(st), func(t *testing.T) {
			w := strategy.Resolve(st)
			data, err := json.Marshal(Prepare(newStore(t), w))
			if err != nil {
				t.Fatal(err)
			}

			var records []map[string]any
			if err := json.Unmarshal(data, &records); err != nil {
				t.Fatal(err)
			}
			want := map[string]float64{
				"urgency_weight":    w.Urgency,
				"importance_weight": w.Importance,
				"effort_weight":     w.Effort,
				"dependency_weight": w.Dependency,
			}
			for i, rec := range records {
				for key, val := range want {
					got, ok := rec[key].(float64)
					if !ok {
						t.Errorf("record %d missing %s: %v", i, key, rec)
						continue
					}
					if got != val {
						t.Errorf("record %d %s = %v, want %v", i, key, got, val)
					}
				}
				if _, ok := rec["title"]; !ok {
					t.Errorf("record %d lost task fields: %v", i, rec)
				}
			}
		})
	}
}

func TestPrepare_WeightsFixedAtCall(t *testing.T) {
	s := newStore(t)
	w := strategy.Resolve(strategy.Deadline)
	b := Prepare(s, w)

	w.Urgency = 99
	if b[0].Urgency != 3 {
		t.Errorf("Urgency = %v, want 3", b[0].Urgency)
	}
}

func TestPrepare_Empty(t *testing.T) {
	b := Prepare(tasks.NewStore(), strategy.Balanced)
	if b == nil || len(b) != 0 {
		t.Errorf("Prepare(empty) = %#v, want empty slice", b)
	}
	data, _ := json.Marshal(b)
	if string(data) != "[]" {
		t.Errorf("Marshal = %s, want []", data)
	}
}

func TestTasks(t *testing.T) {
	s := newStore(t)
	got := Tasks(Prepare(s, strategy.Balanced))
	if !reflect.DeepEqual(got, s.Snapshot()) {
		t.Errorf("Tasks() = %+v, want store snapshot", got)
	}
}
