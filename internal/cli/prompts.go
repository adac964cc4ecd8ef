package cli

import (
	"fmt"
	"strings"

	"github.com/prdloop/prdloop/internal/discovery"
)

// conversionPrompt instructs the agent to turn a spec document into PRD JSON
// grounded in the existing project's structure and conventions.
const conversionPrompt = `You are a PRD converter for an existing codebase. Analyze the project structure and spec document to generate a context-aware PRD.

## Existing Project Structure:
%[1]s

## Key Files Content:
%[2]s

## Input Spec:
%[3]s

## Output Requirements:
Generate a valid JSON object with this exact structure:
{
  "project": "[Project name from spec or '%[4]s']",
  "branchName": "ralph/[feature-name-kebab-case]",
  "description": "[Brief description from spec]",
  "userStories": [
    {
      "id": "US-001",
      "title": "[Short story title]",
      "description": "As a [user], I want [feature] so that [benefit]",
      "acceptanceCriteria": ["Criterion 1", "Criterion 2", "Typecheck passes"],
      "priority": 1,
      "passes": false,
      "notes": ""
    }
  ]
}

## Rules:
1. **Analyze existing code patterns** - Follow the project's existing conventions, file organization, and coding style
2. **Consider dependencies** - Order stories by dependency (schema/types first, then core logic, then UI/API)
3. **Reference existing files** - When a story modifies existing files, mention them in notes
4. **Incremental development** - Stories should build on existing codebase, not rewrite from scratch
5. **Small atomic stories** - Each story should be completable in one session
6. **Quality criteria** - Always include "Typecheck passes" in acceptance criteria
7. **UI stories** - Include "Verify in browser" as criterion for UI changes
8. **All stories start with passes: false**
9. **Priority numbers should be sequential (1, 2, 3, ...)**

## Context Awareness:
- If the project has package.json, consider npm/node conventions
- If the project has pyproject.toml or setup.py, consider Python conventions
- If the project has existing tests, stories should include test updates
- If the project uses TypeScript, ensure type safety in criteria
- Reference specific existing files that will be modified or extended

Output ONLY the JSON object, no other text.
`

// observePrompt instructs the agent to analyze an implementation session's
// logs, write a structured report, and optionally file GitHub issues.
const observePrompt = `You are a log analyzer for implementation execution sessions.

## Task
Analyze the implementation session logs and generate a structured report with GitHub issues.

## Session Directory
%[1]s

## Create GitHub Issues
%[2]s

## Analysis Steps

### Step 1: Read all relevant files
1. Read ` + "`summary.json`" + ` for overall session statistics
2. Read ` + "`session.log`" + ` for main execution flow
3. Read ` + "`prd_snapshot.json`" + ` for task description
4. Read ` + "`loop_*.log`" + ` files for detailed agent interactions

### Step 2: Write the observation report
Write a markdown report to: %[1]s/observation_report.md

**IMPORTANT**: The report MUST follow this EXACT structure:

` + "```markdown" + `
# Implementation Session Observation Report

## 1. Summary

| Item | Value |
|------|-------|
| Session ID | ` + "`YYYYMMDD_HHMMSS`" + ` |
| Duration | Xh Ym Zs |
| Stories Progress | X/Y completed (Z this session) |
| Loop Results | A successful, B failed |
| Exit Reason | complete/circuit_breaker/user_interrupt/etc |
| GitHub Issues | #N, #M (or "None" if no issues created) |

## 2. Task Description

Based on the PRD (from prd_snapshot.json):
- **Project**: [project name]
- **Description**: [project description]
- **User Stories**:
  - US-001: [title] - [status: passed/pending]
  - US-002: [title] - [status: passed/pending]
  - ...

## 3. Session Analysis

### 3.1 Timeline Overview
Brief chronological overview of what happened during the session.

### 3.2 Loop-by-Loop Analysis

| Loop | Story | Duration | Result | Notes |
|------|-------|----------|--------|-------|
| #1 | US-001 | 5m 30s | Passed | First attempt success |
| #2 | US-002 | 8m 15s | Failed | Type check errors |
| ... | ... | ... | ... | ... |

### 3.3 Performance Analysis
- **Longest Loop**: Loop #X (Ym Zs) - [reason why it took long]
- **Fastest Loop**: Loop #Y (Zm Ws)
- **Average Loop Duration**: Xm Ys

## 4. Task-Specific Issues

Issues related to the specific implementation task (code problems, test failures, etc.)

### Issue 4.1: [Short Title]
- **Loop(s)**: #N, #M
- **Story**: US-XXX
- **Problem**: [Description of what went wrong]
- **Root Cause**: [Analysis of why it happened]
- **Suggestion**: [How to fix or improve]

(If no task-specific issues: "No task-specific issues found.")

## 5. Workflow Issues

Issues related to the workflow itself (not the specific task)

### Issue 5.1: [Short Title]
- **Type**: timeout/circuit_breaker/rate_limit/tool_error/etc
- **Loop(s)**: #N
- **Problem**: [Description]
- **Impact**: [How it affected the session]
- **Suggestion**: [How to improve the workflow]

(If no workflow issues: "No workflow issues found.")

## 6. GitHub Issues Created

List of GitHub issues created for this session:
- Issue #N: [Title] - [Category: task/workflow]

(If no issues created: "No GitHub issues created - session completed successfully.")
` + "```" + `

### Step 3: Create GitHub Issues (if applicable)

If create_issue is "yes", create SEPARATE issues for each significant problem found:

**For Task-Specific Issues** (Section 4):
` + "```bash" + `
gh issue create \
  --title "impl task issue: [brief title]" \
  --label "impl-task" \
  --body "..."
` + "```" + `

**For Workflow Issues** (Section 5):
` + "```bash" + `
gh issue create \
  --title "impl workflow issue: [brief title]" \
  --label "impl-workflow" \
  --body "..."
` + "```" + `

Each issue body should include:
- Session ID
- Related loop numbers
- Problem description
- Root cause analysis
- Suggested fix

**Create labels if they don't exist:**
` + "```bash" + `
gh label create "impl-task" --color "d73a4a" --description "Task-specific issues from implementation sessions" 2>/dev/null || true
gh label create "impl-workflow" --color "0075ca" --description "Workflow issues from implementation sessions" 2>/dev/null || true
` + "```" + `

**Do NOT create issues if:**
- The session completed successfully with no problems
- Only minor warnings were encountered
- create_issue is "no"

After creating issues, update Section 6 of the report with the issue numbers.

## Important Notes
- Be thorough but concise in your analysis
- Focus on actionable insights
- If a loop file is very long, focus on error sections and key decision points
- Clearly distinguish between task issues (code/test problems) and workflow issues
- Each issue should be atomic and actionable
`

func buildConversionPrompt(projectCtx *discovery.Context, specContent, projectName string) string {
	return fmt.Sprintf(conversionPrompt,
		projectCtx.StructureBlock(),
		projectCtx.KeyFilesBlock(),
		strings.TrimRight(specContent, "\n"),
		projectName)
}

func buildObservePrompt(sessionDir string, createIssue bool) string {
	flag := "no"
	if createIssue {
		flag = "yes"
	}
	return fmt.Sprintf(observePrompt, sessionDir, flag)
}
