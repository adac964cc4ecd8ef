// Package prd defines the PRD document produced by spec conversion and its
// JSON persistence. The field names are part of the on-disk format consumed
// by downstream implementation tooling, so they are stable.
package prd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/prdloop/prdloop/internal/fsutil"
)

// UserStory is one unit of work in a PRD. Stories start with Passes false
// and are flipped by the implementation loop as they complete.
type UserStory struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	AcceptanceCriteria []string `json:"acceptanceCriteria"`
	Priority           int      `json:"priority"`
	Passes             bool     `json:"passes"`
	Notes              string   `json:"notes"`
}

// PRD is a product requirements document generated from a spec file.
type PRD struct {
	Project     string      `json:"project"`
	BranchName  string      `json:"branchName"`
	Description string      `json:"description"`
	UserStories []UserStory `json:"userStories"`
	SourceSpec  string      `json:"source_spec,omitempty"`
	CreatedAt   string      `json:"created_at,omitempty"`
	UpdatedAt   string      `json:"updated_at,omitempty"`
}

// Validate checks the document for the fields downstream tooling requires.
func (p *PRD) Validate() error {
	if p.Project == "" {
		return fmt.Errorf("prd: missing project name")
	}
	if len(p.UserStories) == 0 {
		return fmt.Errorf("prd: no user stories")
	}
	for i, story := range p.UserStories {
		if story.ID == "" {
			return fmt.Errorf("prd: story %d has no id", i)
		}
		if story.Title == "" {
			return fmt.Errorf("prd: story %s has no title", story.ID)
		}
		if story.Priority < 1 {
			return fmt.Errorf("prd: story %s has invalid priority %d", story.ID, story.Priority)
		}
	}
	return nil
}

// Stamp records where the PRD came from and when.
func (p *PRD) Stamp(sourceSpec string, now time.Time) {
	ts := now.Format(time.RFC3339)
	p.SourceSpec = sourceSpec
	p.CreatedAt = ts
	p.UpdatedAt = ts
}

// Save writes the PRD to path atomically as indented JSON.
func (p *PRD) Save(path string) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := fsutil.AtomicWriteJSON(path, p); err != nil {
		return fmt.Errorf("failed to save PRD: %w", err)
	}
	return nil
}

// Load reads and validates a PRD from path.
func Load(path string) (*PRD, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read PRD file %s: %w", path, err)
	}

	var p PRD
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse PRD file %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}
