// Package models defines the core data structures used throughout the application.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Repository identifies a GitHub repository as "owner/name".
type Repository struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// ParseRepository parses an "owner/name" string.
func ParseRepository(fullName string) (Repository, error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(fullName), "/")
	if !ok || owner == "" || name == "" {
		return Repository{}, fmt.Errorf("invalid repository %q: want owner/name", fullName)
	}
	return Repository{Owner: owner, Name: name}, nil
}

// FullName returns the "owner/name" form used as the unique key.
func (r Repository) FullName() string {
	return r.Owner + "/" + r.Name
}

// WorkflowState is the GitHub Actions workflow state.
type WorkflowState string

const (
	WorkflowActive             WorkflowState = "active"
	WorkflowDisabledManually   WorkflowState = "disabled_manually"
	WorkflowDisabledInactivity WorkflowState = "disabled_inactivity"
)

// Disabled reports whether the workflow will not run in its current state.
func (s WorkflowState) Disabled() bool {
	return s == WorkflowDisabledManually || s == WorkflowDisabledInactivity
}

// Workflow is a read-only snapshot of a repository workflow.
type Workflow struct {
	ID      int64         `json:"id"`
	Name    string        `json:"name"`
	Path    string        `json:"path"`
	State   WorkflowState `json:"state"`
	HTMLURL string        `json:"html_url"`
}

// WorkflowRun is a single workflow run; only the most recent scheduled run
// is ever fetched.
type WorkflowRun struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Event      string    `json:"event"`
	Status     string    `json:"status"`
	Conclusion string    `json:"conclusion"`
	UpdatedAt  time.Time `json:"updated_at"`
	HTMLURL    string    `json:"html_url"`
}

// Issue is a GitHub issue. Tracking issues are the only durable state the
// notifier keeps; the title text carries the creation date and resolution
// marker, and the comment count doubles as the notification counter.
type Issue struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	State     string     `json:"state"`
	Comments  int        `json:"comments"`
	HTMLURL   string     `json:"html_url"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at"`

	// The issues endpoint returns pull requests too; this field marks them
	// so they can be filtered out.
	PullRequest *struct {
		URL string `json:"url"`
	} `json:"pull_request,omitempty"`
}

// IssueComment is a comment on an issue.
type IssueComment struct {
	ID        int64     `json:"id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// RateLimit is the rate-limit telemetry GitHub attaches to every response.
type RateLimit struct {
	Limit     int
	Remaining int
	Reset     time.Time
}
