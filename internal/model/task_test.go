package model

import (
	"encoding/json"
	"testing"
	"time"
)

func strptr(s string) *string { return &s }

func TestTaskPatchPresence(t *testing.T) {
	var patch TaskPatch
	if err := json.Unmarshal([]byte(`{"task":"Rename","description":null}`), &patch); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if patch.Title == nil || *patch.Title != "Rename" {
		t.Errorf("Expected title patch, got %v", patch.Title)
	}
	if !patch.HasDescription {
		t.Error("description was present in the payload")
	}
	if patch.Description != nil {
		t.Errorf("Present-null description must decode to nil, got %q", *patch.Description)
	}
	if patch.HasDueDate || patch.HasDueTime {
		t.Error("Absent keys must not be marked present")
	}
	if patch.Completed != nil {
		t.Errorf("Expected nil completed, got %v", *patch.Completed)
	}
}

func TestTaskPatchIsEmpty(t *testing.T) {
	var patch TaskPatch
	if err := json.Unmarshal([]byte(`{}`), &patch); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !patch.IsEmpty() {
		t.Error("Empty payload should produce an empty patch")
	}

	if err := json.Unmarshal([]byte(`{"dueTime":null}`), &patch); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if patch.IsEmpty() {
		t.Error("Present-null dueTime is a change, not an empty patch")
	}
}

func TestTaskDueAt(t *testing.T) {
	task := Task{DueDate: strptr("2024-03-15"), DueTime: strptr("09:30")}
	due := task.DueAt()
	if due == nil {
		t.Fatal("Expected a due timestamp")
	}
	want := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	if !due.Equal(want) {
		t.Errorf("Expected %v, got %v", want, due)
	}

	// No due time: due at end of day.
	task.DueTime = nil
	due = task.DueAt()
	want = time.Date(2024, 3, 15, 23, 59, 59, 0, time.UTC)
	if due == nil || !due.Equal(want) {
		t.Errorf("Expected %v, got %v", want, due)
	}

	task.DueDate = nil
	if task.DueAt() != nil {
		t.Error("No due date means no due timestamp")
	}
}

func TestTaskIsOverdue(t *testing.T) {
	task := Task{DueDate: strptr("2000-01-01")}
	if !task.IsOverdue() {
		t.Error("A task due in 2000 is overdue")
	}

	task.Completed = true
	if task.IsOverdue() {
		t.Error("Completed tasks are never overdue")
	}

	future := Task{DueDate: strptr("2999-01-01")}
	if future.IsOverdue() {
		t.Error("A task due in 2999 is not overdue")
	}
}

func TestTaskJSONShape(t *testing.T) {
	task := Task{ID: "t1", Title: "Write docs", Subtasks: []Subtask{}}
	data, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var out map[string]json.RawMessage
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if string(out["task"]) != `"Write docs"` {
		t.Errorf("Title must serialize under the task key, got %s", out["task"])
	}
	if _, ok := out["description"]; ok {
		t.Error("Nil description must be omitted")
	}
	if string(out["subtasks"]) != "[]" {
		t.Errorf("Empty subtasks must serialize as [], got %s", out["subtasks"])
	}
}
