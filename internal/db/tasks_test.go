package db

import (
	"errors"
	"testing"

	"github.com/arlo/taskmill/internal/model"
)

func TestAddTaskAppendsPosition(t *testing.T) {
	db := testDB(t)
	userID := testUser(t, db, "pos@example.com")
	project := seedProject(t, db, userID,
		model.NewTask{Title: "A"}, model.NewTask{Title: "B"}, model.NewTask{Title: "C"},
	)

	task, err := db.AddTask(userID, project.ID, model.NewTask{Title: "D"})
	if err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}
	if task.Position != 4 {
		t.Errorf("Expected position 4, got %d", task.Position)
	}

	// Deleting from the middle leaves a gap; the next append still goes
	// after the current maximum.
	if err := db.DeleteTask(userID, project.ID, project.Tasks[1].ID); err != nil {
		t.Fatalf("DeleteTask failed: %v", err)
	}
	task, err = db.AddTask(userID, project.ID, model.NewTask{Title: "E"})
	if err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}
	if task.Position != 5 {
		t.Errorf("Expected position 5 after gap, got %d", task.Position)
	}
}

func TestAddTaskEmptyProject(t *testing.T) {
	db := testDB(t)
	userID := testUser(t, db, "first@example.com")
	project := seedProject(t, db, userID)

	task, err := db.AddTask(userID, project.ID, model.NewTask{Title: "First"})
	if err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}
	if task.Position != 1 {
		t.Errorf("Expected position 1 in empty project, got %d", task.Position)
	}
}

func TestAddTaskValidation(t *testing.T) {
	db := testDB(t)
	userID := testUser(t, db, "tv@example.com")
	project := seedProject(t, db, userID)

	if _, err := db.AddTask(userID, project.ID, model.NewTask{Title: "  "}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for blank title, got %v", err)
	}
	if _, err := db.AddTask(userID, project.ID, model.NewTask{Title: "ok", DueDate: strptr("01/02/2026")}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for bad due date, got %v", err)
	}
	if _, err := db.AddTask(userID, project.ID, model.NewTask{Title: "ok", DueDate: strptr("2026-03-01"), DueTime: strptr("9am")}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for bad due time, got %v", err)
	}
}

func TestTaskCompleteCascadesToSubtasks(t *testing.T) {
	db := testDB(t)
	userID := testUser(t, db, "cascade-down@example.com")
	project := seedProject(t, db, userID,
		model.NewTask{Title: "Parent", Subtasks: []model.NewSubtask{{Title: "a"}, {Title: "b"}}},
	)
	taskID := project.Tasks[0].ID

	task, err := db.UpdateTask(userID, project.ID, taskID, model.TaskPatch{Completed: boolptr(true)})
	if err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}
	if !task.Completed {
		t.Fatal("Task should be completed")
	}
	for _, st := range task.Subtasks {
		if !st.Completed {
			t.Errorf("Subtask %q should be forced complete", st.Title)
		}
	}

	// Reopening the task leaves subtasks as they are.
	task, err = db.UpdateTask(userID, project.ID, taskID, model.TaskPatch{Completed: boolptr(false)})
	if err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}
	if task.Completed {
		t.Fatal("Task should be reopened")
	}
	for _, st := range task.Subtasks {
		if !st.Completed {
			t.Errorf("Reopening must not reopen subtask %q", st.Title)
		}
	}
}

func TestTaskPatchClearsNullableFields(t *testing.T) {
	db := testDB(t)
	userID := testUser(t, db, "clear@example.com")
	project := seedProject(t, db, userID)

	task, err := db.AddTask(userID, project.ID, model.NewTask{
		Title:       "With extras",
		Description: strptr("details"),
		DueDate:     strptr("2026-03-01"),
		DueTime:     strptr("09:30"),
	})
	if err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}

	// Present-but-null clears; absent leaves unchanged.
	task, err = db.UpdateTask(userID, project.ID, task.ID, model.TaskPatch{
		HasDescription: true, Description: nil,
	})
	if err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}
	if task.Description != nil {
		t.Errorf("Description should be cleared, got %q", *task.Description)
	}
	if task.DueDate == nil || *task.DueDate != "2026-03-01" {
		t.Errorf("DueDate should be untouched, got %v", task.DueDate)
	}
	if task.DueTime == nil || *task.DueTime != "09:30" {
		t.Errorf("DueTime should be untouched, got %v", task.DueTime)
	}
}

func TestReorderTasks(t *testing.T) {
	db := testDB(t)
	userID := testUser(t, db, "reorder@example.com")
	project := seedProject(t, db, userID,
		model.NewTask{Title: "A"}, model.NewTask{Title: "B"}, model.NewTask{Title: "C"},
	)
	a, b, c := project.Tasks[0].ID, project.Tasks[1].ID, project.Tasks[2].ID

	err := db.ReorderTasks(userID, project.ID, []model.TaskOrder{
		{ID: c, Position: 1}, {ID: a, Position: 2}, {ID: b, Position: 3},
	})
	if err != nil {
		t.Fatalf("ReorderTasks failed: %v", err)
	}

	loaded, err := db.GetProject(userID, project.ID)
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}
	titles := []string{loaded.Tasks[0].Title, loaded.Tasks[1].Title, loaded.Tasks[2].Title}
	if titles[0] != "C" || titles[1] != "A" || titles[2] != "B" {
		t.Errorf("Expected order C, A, B; got %v", titles)
	}
}

func TestReorderRejectsIncompleteSet(t *testing.T) {
	db := testDB(t)
	userID := testUser(t, db, "reorder-bad@example.com")
	project := seedProject(t, db, userID,
		model.NewTask{Title: "A"}, model.NewTask{Title: "B"}, model.NewTask{Title: "C"},
	)
	a, b := project.Tasks[0].ID, project.Tasks[1].ID

	cases := []struct {
		name   string
		orders []model.TaskOrder
	}{
		{"missing task", []model.TaskOrder{{ID: a, Position: 1}, {ID: b, Position: 2}}},
		{"unknown id", []model.TaskOrder{{ID: a, Position: 1}, {ID: b, Position: 2}, {ID: "nope", Position: 3}}},
		{"duplicate id", []model.TaskOrder{{ID: a, Position: 1}, {ID: a, Position: 2}, {ID: b, Position: 3}}},
		{"empty", nil},
	}
	for _, tc := range cases {
		if err := db.ReorderTasks(userID, project.ID, tc.orders); !errors.Is(err, ErrInvalidReorder) {
			t.Errorf("%s: expected ErrInvalidReorder, got %v", tc.name, err)
		}
	}

	// Positions must be untouched after the rejections.
	loaded, err := db.GetProject(userID, project.ID)
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}
	for i, task := range loaded.Tasks {
		if task.Position != i+1 {
			t.Errorf("Task %d position changed to %d after rejected reorder", i, task.Position)
		}
	}
}

func TestUpdateTaskWrongProject(t *testing.T) {
	db := testDB(t)
	userID := testUser(t, db, "substitution@example.com")
	p1 := seedProject(t, db, userID, model.NewTask{Title: "in p1"})
	p2 := seedProject(t, db, userID)

	// A task id nested under the wrong project path must not resolve.
	_, err := db.UpdateTask(userID, p2.ID, p1.Tasks[0].ID, model.TaskPatch{Completed: boolptr(true)})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for cross-project task id, got %v", err)
	}
}

func TestAddTaskWithSubtasks(t *testing.T) {
	db := testDB(t)
	userID := testUser(t, db, "tree@example.com")
	project := seedProject(t, db, userID)

	task, err := db.AddTask(userID, project.ID, model.NewTask{
		Title:    "Parent",
		Subtasks: []model.NewSubtask{{Title: "One"}, {Title: "Two"}, {Title: "Three"}},
	})
	if err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}
	if len(task.Subtasks) != 3 {
		t.Fatalf("Expected 3 subtasks on the returned task, got %d", len(task.Subtasks))
	}

	loaded, err := db.GetTask(userID, project.ID, task.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if len(loaded.Subtasks) != 3 {
		t.Errorf("Expected 3 persisted subtasks, got %d", len(loaded.Subtasks))
	}
}

func TestAddTaskInvalidSubtaskPersistsNothing(t *testing.T) {
	db := testDB(t)
	userID := testUser(t, db, "atomic@example.com")
	project := seedProject(t, db, userID)

	_, err := db.AddTask(userID, project.ID, model.NewTask{
		Title:    "Parent",
		Subtasks: []model.NewSubtask{{Title: "Good"}, {Title: "   "}},
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("Expected ErrInvalidInput, got %v", err)
	}

	// The task must not be left behind with a partial subtask set.
	loaded, err := db.GetProject(userID, project.ID)
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}
	if len(loaded.Tasks) != 0 {
		t.Errorf("Expected no tasks after the failed insert, got %d", len(loaded.Tasks))
	}
}

func TestApplyTaskRevisions(t *testing.T) {
	db := testDB(t)
	userID := testUser(t, db, "reedit@example.com")
	project := seedProject(t, db, userID,
		model.NewTask{Title: "Old title", Subtasks: []model.NewSubtask{{Title: "Old sub"}}},
		model.NewTask{Title: "Untouched"},
	)
	task := project.Tasks[0]
	if _, err := db.UpdateSubtask(userID, project.ID, task.ID, task.Subtasks[0].ID, model.SubtaskPatch{Completed: boolptr(true)}); err != nil {
		t.Fatalf("UpdateSubtask failed: %v", err)
	}

	err := db.ApplyTaskRevisions(userID, project.ID, []model.TaskRevision{{
		ID:          task.ID,
		Title:       "New title",
		Description: strptr("now with detail"),
		Subtasks:    []model.SubtaskRevision{{ID: task.Subtasks[0].ID, Title: "New sub"}},
	}})
	if err != nil {
		t.Fatalf("ApplyTaskRevisions failed: %v", err)
	}

	loaded, err := db.GetTask(userID, project.ID, task.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if loaded.Title != "New title" {
		t.Errorf("Expected rewritten title, got %q", loaded.Title)
	}
	if loaded.Description == nil || *loaded.Description != "now with detail" {
		t.Errorf("Expected rewritten description, got %v", loaded.Description)
	}
	if loaded.Subtasks[0].Title != "New sub" {
		t.Errorf("Expected rewritten subtask title, got %q", loaded.Subtasks[0].Title)
	}
	// Completion and ordering survive a re-edit.
	if !loaded.Completed || !loaded.Subtasks[0].Completed {
		t.Error("Re-edit must not change completion state")
	}
	if loaded.Position != 1 {
		t.Errorf("Re-edit must not change positions, got %d", loaded.Position)
	}

	other, err := db.GetTask(userID, project.ID, project.Tasks[1].ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if other.Title != "Untouched" {
		t.Errorf("Unrevised task changed to %q", other.Title)
	}
}

func TestApplyTaskRevisionsIgnoresForeignIDs(t *testing.T) {
	db := testDB(t)
	userID := testUser(t, db, "foreign@example.com")
	mine := seedProject(t, db, userID, model.NewTask{Title: "Mine"})
	other := seedProject(t, db, userID, model.NewTask{Title: "Elsewhere"})

	// Ids outside the project update nothing, invented ids update nothing.
	err := db.ApplyTaskRevisions(userID, mine.ID, []model.TaskRevision{
		{ID: other.Tasks[0].ID, Title: "Hijacked"},
		{ID: "invented", Title: "Ghost"},
	})
	if err != nil {
		t.Fatalf("ApplyTaskRevisions failed: %v", err)
	}

	loaded, err := db.GetTask(userID, other.ID, other.Tasks[0].ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if loaded.Title != "Elsewhere" {
		t.Errorf("Revision escaped its project: %q", loaded.Title)
	}
}

func TestApplyTaskRevisionsValidation(t *testing.T) {
	db := testDB(t)
	userID := testUser(t, db, "badrevision@example.com")
	project := seedProject(t, db, userID, model.NewTask{Title: "Keep"})

	err := db.ApplyTaskRevisions(userID, project.ID, []model.TaskRevision{
		{ID: project.Tasks[0].ID, Title: "  "},
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("Expected ErrInvalidInput, got %v", err)
	}

	loaded, err := db.GetTask(userID, project.ID, project.Tasks[0].ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if loaded.Title != "Keep" {
		t.Errorf("Rejected revision still changed the title to %q", loaded.Title)
	}
}
