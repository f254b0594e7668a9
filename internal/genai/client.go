// Package genai generates task breakdowns from natural-language project
// descriptions using the OpenAI chat completions API. Model output is
// untrusted input: it is validated like any user payload before anything is
// persisted, and failures surface as ErrGenerationFailed rather than an
// empty task list.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.openai.com/v1/chat/completions"
	defaultModel   = "gpt-4o"
	maxRetries     = 3
	initialDelay   = 1 * time.Second
)

// ErrGenerationFailed indicates the model call failed or produced output
// that did not validate.
var ErrGenerationFailed = errors.New("task generation failed")

// validModels are the chat models a request may select.
var validModels = map[string]bool{
	"gpt-4o":      true,
	"gpt-4o-mini": true,
	"gpt-4-turbo": true,
	"gpt-4":       true,
}

// languagePrompts instructs the model to answer in the requested language.
var languagePrompts = map[string]string{
	"en": "Please respond in English.",
	"es": "Por favor responde en español.",
	"fr": "Veuillez répondre en français.",
	"de": "Bitte antworten Sie auf Deutsch.",
	"it": "Si prega di rispondere in italiano.",
	"pt": "Por favor, responda em português.",
	"ja": "日本語で回答してください。",
	"zh": "请用中文回答。",
}

// SubtaskProposal is one generated subtask.
type SubtaskProposal struct {
	Title     string `json:"task"`
	Completed bool   `json:"completed"`
}

// TaskProposal is one generated task with its subtasks.
type TaskProposal struct {
	Title       string            `json:"task"`
	Description *string           `json:"description,omitempty"`
	Completed   bool              `json:"completed"`
	Subtasks    []SubtaskProposal `json:"subtasks"`
}

// SubtaskRevision is one re-edited subtask, keyed by its existing id.
type SubtaskRevision struct {
	ID    string `json:"id"`
	Title string `json:"task"`
}

// TaskRevision is one re-edited task, keyed by its existing id. Only the
// wording changes; completion and ordering are preserved by the caller.
type TaskRevision struct {
	ID          string            `json:"id"`
	Title       string            `json:"task"`
	Description *string           `json:"description,omitempty"`
	Subtasks    []SubtaskRevision `json:"subtasks"`
}

// ProjectContext describes an existing project when generating or re-editing
// tasks for it.
type ProjectContext struct {
	Name        string
	Description string
	Tasks       []TaskContext
}

// TaskContext summarizes one existing task for the prompt.
type TaskContext struct {
	ID          string
	Title       string
	Description *string
	Completed   bool
	Subtasks    []SubtaskContext
}

// SubtaskContext summarizes one existing subtask for the prompt.
type SubtaskContext struct {
	ID        string
	Title     string
	Completed bool
}

// Generator is the text-generation collaborator consumed by the web layer.
type Generator interface {
	GenerateTaskList(ctx context.Context, name, description, language string) ([]TaskProposal, error)
	GenerateProjectTask(ctx context.Context, project ProjectContext, prompt, language string) (*TaskProposal, error)
	ReeditTasks(ctx context.Context, project ProjectContext, instruction, language string) ([]TaskRevision, error)
	RefineDescription(ctx context.Context, description string) (string, error)
}

// Client calls the OpenAI chat completions API.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewClient creates a Client. An empty model means gpt-4o.
func NewClient(apiKey, model string) *Client {
	if !validModels[model] {
		model = defaultModel
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   model,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// GenerateTaskList proposes a task list for a new project. Each task carries
// 2-5 subtasks; nothing is persisted here.
func (c *Client) GenerateTaskList(ctx context.Context, name, description, language string) ([]TaskProposal, error) {
	if strings.TrimSpace(description) == "" {
		return nil, fmt.Errorf("%w: project description is required", ErrGenerationFailed)
	}

	system := `You are a project management assistant that helps break down projects into manageable tasks.
Based on the user's project description, create a structured task list with simple, achievable tasks.
Be specific and practical with your task breakdown.
Focus on creating clear, actionable main tasks with minimal subtasks (2-5 per task).
Each task should be self-contained and achievable in a single work session.
Return a JSON object with a "tasks" array. Each task has "task" (title), optional "description",
"completed" (always false) and a "subtasks" array of objects with "task" and "completed" fields.
` + languageInstruction(language)

	prompt := description
	if name != "" {
		prompt = fmt.Sprintf("Project: %s\n\n%s", name, description)
	}

	content, err := c.complete(ctx, system, prompt, true)
	if err != nil {
		return nil, err
	}
	tasks, err := parseTaskList(content)
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// GenerateProjectTask proposes exactly one new task (with 3-4 subtasks) that
// complements the project's existing tasks.
func (c *Client) GenerateProjectTask(ctx context.Context, project ProjectContext, prompt, language string) (*TaskProposal, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrGenerationFailed)
	}

	system := "You are a helpful project management assistant that generates exactly one new task " +
		"with 3-4 subtasks based on user requirements and project context. " + languageInstruction(language)

	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\nDescription: %s\n\nExisting Tasks:\n", project.Name, project.Description)
	for i, t := range project.Tasks {
		status := "In Progress"
		if t.Completed {
			status = "Completed"
		}
		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, t.Title, status)
		for _, st := range t.Subtasks {
			mark := "Pending"
			if st.Completed {
				mark = "Completed"
			}
			fmt.Fprintf(&b, "   - %s (%s)\n", st.Title, mark)
		}
	}
	fmt.Fprintf(&b, "\nUser Request for New Task: %s\n\n", prompt)
	b.WriteString(`Generate EXACTLY ONE new task that complements the existing ones without duplicating them.
Return a JSON object with a "tasks" array containing ONLY ONE task with "task" (title),
optional "description", "completed" (false) and 3-4 "subtasks" ({"task", "completed"}).`)

	content, err := c.complete(ctx, system, b.String(), true)
	if err != nil {
		return nil, err
	}
	tasks, err := parseTaskList(content)
	if err != nil {
		return nil, err
	}
	return &tasks[0], nil
}

// ReeditTasks rewrites the wording of a project's existing tasks according to
// a modification instruction. The model is told to echo the existing ids and
// leave completion state alone; its output is validated before use.
func (c *Client) ReeditTasks(ctx context.Context, project ProjectContext, instruction, language string) ([]TaskRevision, error) {
	if strings.TrimSpace(instruction) == "" {
		return nil, fmt.Errorf("%w: instruction is required", ErrGenerationFailed)
	}

	system := "You are a helpful project management assistant that re-edits tasks based on user " +
		"instructions while preserving their structure and status. " + languageInstruction(language)

	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\nDescription: %s\n\nCurrent Tasks:\n", project.Name, project.Description)
	for i, t := range project.Tasks {
		fmt.Fprintf(&b, "%d. [id %s] %s", i+1, t.ID, t.Title)
		if t.Description != nil {
			fmt.Fprintf(&b, " - %s", *t.Description)
		}
		status := "In Progress"
		if t.Completed {
			status = "Completed"
		}
		fmt.Fprintf(&b, " (%s)\n", status)
		for _, st := range t.Subtasks {
			mark := "Pending"
			if st.Completed {
				mark = "Completed"
			}
			fmt.Fprintf(&b, "   - [id %s] %s (%s)\n", st.ID, st.Title, mark)
		}
	}
	fmt.Fprintf(&b, "\nUser Instructions: %s\n\n", instruction)
	b.WriteString(`Re-edit the tasks according to the instructions. You must keep every task and
subtask id exactly as given, preserve completion status and ordering, and change
only titles and descriptions. Return a JSON object with a "tasks" array of
{"id", "task", optional "description", "subtasks": [{"id", "task"}]}.`)

	content, err := c.complete(ctx, system, b.String(), true)
	if err != nil {
		return nil, err
	}
	return parseTaskRevisions(content)
}

// RefineDescription improves a project description before task generation.
func (c *Client) RefineDescription(ctx context.Context, description string) (string, error) {
	if strings.TrimSpace(description) == "" {
		return "", fmt.Errorf("%w: project description is required", ErrGenerationFailed)
	}

	system := `You are a project management assistant that helps users refine their project descriptions.
Your task is to improve the user's project description to make it more clear, specific, and structured.
Add relevant details that would help in breaking down the project into tasks.
Keep the same general project but make it more comprehensive and well-structured.
Return ONLY the improved description without any explanations or additional text.`

	content, err := c.complete(ctx, system, description, false)
	if err != nil {
		return "", err
	}
	refined := strings.TrimSpace(content)
	if refined == "" {
		return "", fmt.Errorf("%w: empty refinement received", ErrGenerationFailed)
	}
	return refined, nil
}

func languageInstruction(language string) string {
	if instruction, ok := languagePrompts[language]; ok {
		return instruction
	}
	return languagePrompts["en"]
}

// complete calls the chat completions endpoint with retry and exponential
// backoff on rate limits and server errors. jsonOutput requests the
// json_object response format; refinement wants plain prose.
func (c *Client) complete(ctx context.Context, system, prompt string, jsonOutput bool) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("%w: OPENAI_API_KEY not set", ErrGenerationFailed)
	}

	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.7,
		MaxTokens:   2000,
	}
	if jsonOutput {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * initialDelay
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %v", ErrGenerationFailed, ctx.Err())
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(httpReq)
		if err != nil {
			lastErr = err
			continue
		}
		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode != http.StatusOK {
			var apiErr apiError
			if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
				lastErr = fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Error.Message)
			} else {
				lastErr = fmt.Errorf("API error (%d)", resp.StatusCode)
			}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				continue
			}
			return "", fmt.Errorf("%w: %v", ErrGenerationFailed, lastErr)
		}

		var chatResp chatResponse
		if err := json.Unmarshal(respBody, &chatResp); err != nil {
			return "", fmt.Errorf("%w: failed to decode response: %v", ErrGenerationFailed, err)
		}
		if len(chatResp.Choices) == 0 || chatResp.Choices[0].Message.Content == "" {
			return "", fmt.Errorf("%w: no content received", ErrGenerationFailed)
		}
		return chatResp.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("%w: max retries exceeded: %v", ErrGenerationFailed, lastErr)
}

// parseTaskRevisions extracts and validates the {"tasks": [...]} object of a
// re-edit. Every entry must carry an id and a non-empty title; ids the model
// invented are tolerated here and filtered out at the store.
func parseTaskRevisions(content string) ([]TaskRevision, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in model output", ErrGenerationFailed)
	}

	var payload struct {
		Tasks []TaskRevision `json:"tasks"`
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &payload); err != nil {
		return nil, fmt.Errorf("%w: unparseable model output: %v", ErrGenerationFailed, err)
	}
	if len(payload.Tasks) == 0 {
		return nil, fmt.Errorf("%w: model returned no tasks", ErrGenerationFailed)
	}
	for i := range payload.Tasks {
		r := &payload.Tasks[i]
		r.Title = strings.TrimSpace(r.Title)
		if r.ID == "" || r.Title == "" {
			return nil, fmt.Errorf("%w: task %d is missing its id or title", ErrGenerationFailed, i+1)
		}
		for j := range r.Subtasks {
			sr := &r.Subtasks[j]
			sr.Title = strings.TrimSpace(sr.Title)
			if sr.ID == "" || sr.Title == "" {
				return nil, fmt.Errorf("%w: task %d has a subtask missing its id or title", ErrGenerationFailed, i+1)
			}
		}
	}
	return payload.Tasks, nil
}

// parseTaskList extracts and validates the {"tasks": [...]} object from
// model output. Titles must be non-empty and subtasks array-shaped; a
// well-formed but empty list is still a failure.
func parseTaskList(content string) ([]TaskProposal, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in model output", ErrGenerationFailed)
	}

	var payload struct {
		Tasks []TaskProposal `json:"tasks"`
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &payload); err != nil {
		return nil, fmt.Errorf("%w: unparseable model output: %v", ErrGenerationFailed, err)
	}
	if len(payload.Tasks) == 0 {
		return nil, fmt.Errorf("%w: model returned no tasks", ErrGenerationFailed)
	}
	for i := range payload.Tasks {
		t := &payload.Tasks[i]
		t.Title = strings.TrimSpace(t.Title)
		if t.Title == "" {
			return nil, fmt.Errorf("%w: task %d has an empty title", ErrGenerationFailed, i+1)
		}
		t.Completed = false
		if t.Subtasks == nil {
			t.Subtasks = []SubtaskProposal{}
		}
		kept := t.Subtasks[:0]
		for _, st := range t.Subtasks {
			st.Title = strings.TrimSpace(st.Title)
			if st.Title == "" {
				return nil, fmt.Errorf("%w: task %d has an empty subtask title", ErrGenerationFailed, i+1)
			}
			st.Completed = false
			kept = append(kept, st)
		}
		t.Subtasks = kept
	}
	return payload.Tasks, nil
}
