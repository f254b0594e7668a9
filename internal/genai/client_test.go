package genai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient("test-key", "gpt-4o-mini")
	c.baseURL = srv.URL
	return c
}

func chatReply(content string) string {
	quoted, _ := json.Marshal(content)
	return `{"choices":[{"message":{"content":` + string(quoted) + `}}]}`
}

func TestGenerateTaskList(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Unexpected Authorization header %q", got)
		}
		w.Write([]byte(chatReply(`{"tasks":[
			{"task":"Plan the menu","completed":true,"subtasks":[{"task":"List dishes","completed":true}]},
			{"task":"Buy groceries","subtasks":[]}
		]}`)))
	})

	tasks, err := client.GenerateTaskList(context.Background(), "Dinner party", "Host a dinner for six", "en")
	if err != nil {
		t.Fatalf("GenerateTaskList failed: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("Expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].Completed || tasks[0].Subtasks[0].Completed {
		t.Error("Generated items must come back incomplete regardless of model output")
	}
	if tasks[1].Subtasks == nil {
		t.Error("Subtasks must never be nil")
	}
}

func TestGenerateTaskListRequiresDescription(t *testing.T) {
	client := NewClient("test-key", "")
	if _, err := client.GenerateTaskList(context.Background(), "Name", "   ", "en"); !errors.Is(err, ErrGenerationFailed) {
		t.Errorf("Expected ErrGenerationFailed, got %v", err)
	}
}

func TestCompleteRetriesServerErrors(t *testing.T) {
	var calls int32
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(chatReply(`{"tasks":[{"task":"Recovered"}]}`)))
	})
	client.client = &http.Client{Timeout: time.Second}

	tasks, err := client.GenerateTaskList(context.Background(), "", "desc", "en")
	if err != nil {
		t.Fatalf("Expected recovery after retries, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls)
	}
	if tasks[0].Title != "Recovered" {
		t.Errorf("Unexpected task %q", tasks[0].Title)
	}
}

func TestCompleteDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"bad request","type":"invalid_request_error"}}`))
	})

	if _, err := client.GenerateTaskList(context.Background(), "", "desc", "en"); !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("Expected ErrGenerationFailed, got %v", err)
	}
	if calls != 1 {
		t.Errorf("4xx responses must not be retried, got %d attempts", calls)
	}
}

func TestCompleteWithoutAPIKey(t *testing.T) {
	client := NewClient("", "")
	if _, err := client.GenerateTaskList(context.Background(), "", "desc", "en"); !errors.Is(err, ErrGenerationFailed) {
		t.Errorf("Expected ErrGenerationFailed, got %v", err)
	}
}

func TestGenerateProjectTask(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chatReply(`{"tasks":[{"task":"Ship release notes","subtasks":[{"task":"Draft"},{"task":"Review"},{"task":"Publish"}]}]}`)))
	})

	project := ProjectContext{
		Name:        "Launch",
		Description: "Q3 launch",
		Tasks:       []TaskContext{{Title: "Cut release", Completed: true}},
	}
	task, err := client.GenerateProjectTask(context.Background(), project, "document the release", "en")
	if err != nil {
		t.Fatalf("GenerateProjectTask failed: %v", err)
	}
	if task.Title != "Ship release notes" {
		t.Errorf("Unexpected task %q", task.Title)
	}
	if len(task.Subtasks) != 3 {
		t.Errorf("Expected 3 subtasks, got %d", len(task.Subtasks))
	}
}

func TestGenerateProjectTaskRequiresPrompt(t *testing.T) {
	client := NewClient("test-key", "")
	if _, err := client.GenerateProjectTask(context.Background(), ProjectContext{}, "", "en"); !errors.Is(err, ErrGenerationFailed) {
		t.Errorf("Expected ErrGenerationFailed, got %v", err)
	}
}

func TestParseTaskList(t *testing.T) {
	cases := map[string]string{
		"empty list":          `{"tasks":[]}`,
		"blank title":         `{"tasks":[{"task":"  "}]}`,
		"blank subtask title": `{"tasks":[{"task":"ok","subtasks":[{"task":""}]}]}`,
		"no object":           `sorry, I cannot help with that`,
		"bad json":            `{"tasks":[{]}`,
	}
	for name, content := range cases {
		if _, err := parseTaskList(content); !errors.Is(err, ErrGenerationFailed) {
			t.Errorf("%s: expected ErrGenerationFailed, got %v", name, err)
		}
	}

	// Prose around the JSON object is tolerated.
	tasks, err := parseTaskList("Here you go:\n{\"tasks\":[{\"task\":\"Only one\"}]}\nEnjoy!")
	if err != nil {
		t.Fatalf("parseTaskList failed: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "Only one" {
		t.Errorf("Unexpected tasks %+v", tasks)
	}
}

func TestNewClientModelFallback(t *testing.T) {
	if c := NewClient("k", "gpt-7-ultra"); c.model != "gpt-4o" {
		t.Errorf("Unknown model must fall back to gpt-4o, got %q", c.model)
	}
	if c := NewClient("k", "gpt-4-turbo"); c.model != "gpt-4-turbo" {
		t.Errorf("Valid model must be kept, got %q", c.model)
	}
}

func TestRefineDescription(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ResponseFormat json.RawMessage `json:"response_format"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if req.ResponseFormat != nil {
			t.Error("Refinement must not force json_object output")
		}
		w.Write([]byte(chatReply("  A clearer, more specific description.\n")))
	})

	refined, err := client.RefineDescription(context.Background(), "build a thing")
	if err != nil {
		t.Fatalf("RefineDescription failed: %v", err)
	}
	if refined != "A clearer, more specific description." {
		t.Errorf("Expected trimmed refinement, got %q", refined)
	}
}

func TestRefineDescriptionRequiresText(t *testing.T) {
	client := NewClient("test-key", "")
	if _, err := client.RefineDescription(context.Background(), "   "); !errors.Is(err, ErrGenerationFailed) {
		t.Errorf("Expected ErrGenerationFailed, got %v", err)
	}
}

func TestReeditTasks(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chatReply(`{"tasks":[
			{"id":"t1","task":"Sharper title","description":"added","subtasks":[{"id":"s1","task":"Sharper step"}]}
		]}`)))
	})

	project := ProjectContext{
		Name: "Launch",
		Tasks: []TaskContext{{
			ID: "t1", Title: "Vague title", Completed: true,
			Subtasks: []SubtaskContext{{ID: "s1", Title: "Vague step"}},
		}},
	}
	revisions, err := client.ReeditTasks(context.Background(), project, "make the wording sharper", "en")
	if err != nil {
		t.Fatalf("ReeditTasks failed: %v", err)
	}
	if len(revisions) != 1 || revisions[0].ID != "t1" || revisions[0].Title != "Sharper title" {
		t.Fatalf("Unexpected revisions %+v", revisions)
	}
	if len(revisions[0].Subtasks) != 1 || revisions[0].Subtasks[0].ID != "s1" {
		t.Errorf("Unexpected subtask revisions %+v", revisions[0].Subtasks)
	}
}

func TestReeditTasksRequiresInstruction(t *testing.T) {
	client := NewClient("test-key", "")
	if _, err := client.ReeditTasks(context.Background(), ProjectContext{}, "  ", "en"); !errors.Is(err, ErrGenerationFailed) {
		t.Errorf("Expected ErrGenerationFailed, got %v", err)
	}
}

func TestParseTaskRevisions(t *testing.T) {
	cases := map[string]string{
		"empty list":    `{"tasks":[]}`,
		"missing id":    `{"tasks":[{"task":"no id"}]}`,
		"blank title":   `{"tasks":[{"id":"t1","task":"  "}]}`,
		"subtask no id": `{"tasks":[{"id":"t1","task":"ok","subtasks":[{"task":"orphan"}]}]}`,
		"no object":     `cannot comply`,
	}
	for name, content := range cases {
		if _, err := parseTaskRevisions(content); !errors.Is(err, ErrGenerationFailed) {
			t.Errorf("%s: expected ErrGenerationFailed, got %v", name, err)
		}
	}

	revisions, err := parseTaskRevisions(`{"tasks":[{"id":"t1","task":" padded "}]}`)
	if err != nil {
		t.Fatalf("parseTaskRevisions failed: %v", err)
	}
	if revisions[0].Title != "padded" {
		t.Errorf("Expected trimmed title, got %q", revisions[0].Title)
	}
}
