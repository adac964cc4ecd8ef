// Package discovery gathers the project context injected into conversion
// prompts: a bounded directory tree, the content of key configuration files,
// and basic git information. The traversal order and rendering are stable so
// the same project snapshot always yields the same context block.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// IgnoredDirs lists directory names skipped when scanning project structure.
var IgnoredDirs = []string{
	".git", ".prd", "node_modules", "__pycache__", ".venv", "venv",
	"dist", "build", ".next", ".nuxt", "target", ".idea", ".vscode",
	"coverage", ".pytest_cache", ".mypy_cache",
}

// IgnoredFilePatterns lists file names and glob patterns excluded from the
// tree view.
var IgnoredFilePatterns = []string{
	".DS_Store", "Thumbs.db", "*.pyc", "*.pyo", "*.egg", "*.whl",
	"package-lock.json", "yarn.lock", "pnpm-lock.yaml", "uv.lock",
	"poetry.lock", "Pipfile.lock",
}

// KeyFileNames enumerates the config and setup files whose content is read
// into the prompt context.
var KeyFileNames = []string{
	"package.json", "pyproject.toml", "setup.py", "setup.cfg",
	"tsconfig.json", "Cargo.toml", "go.mod", "Makefile", "README.md",
}

const (
	// MaxTreeDepth bounds directory tree traversal.
	MaxTreeDepth = 4

	// MaxKeyFileBytes bounds how much of each key file is included.
	MaxKeyFileBytes = 2000

	// gitCommandTimeout bounds each git subprocess.
	gitCommandTimeout = 5 * time.Second
)

// KeyFile is one configuration file's (possibly truncated) content.
type KeyFile struct {
	Name    string
	Content string
}

// GitInfo is basic repository state, when the project is a git work tree.
type GitInfo struct {
	Branch      string
	CommitCount string
}

// Context is everything the conversion prompt needs to know about the
// project being extended.
type Context struct {
	Tree     string
	KeyFiles []KeyFile
	Git      *GitInfo
}

// Analyze scans the project root and assembles the full prompt context.
func Analyze(ctx context.Context, root string, logger *slog.Logger) (*Context, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("discovery: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("discovery: root is not a directory: %s", root)
	}

	logger.Info("analyzing project structure", "root", root)

	tree, err := Tree(root, MaxTreeDepth)
	if err != nil {
		return nil, err
	}
	logger.Info("project tree rendered", "entries", strings.Count(tree, "\n")+1)

	keyFiles := ReadKeyFiles(root)
	names := make([]string, 0, len(keyFiles))
	for _, kf := range keyFiles {
		names = append(names, kf.Name)
	}
	logger.Info("key files read", "count", len(keyFiles), "files", strings.Join(names, ", "))

	git := Git(ctx, root)
	if git != nil {
		logger.Info("git repository detected", "branch", git.Branch, "commits", git.CommitCount)
	}

	return &Context{Tree: tree, KeyFiles: keyFiles, Git: git}, nil
}

// StructureBlock renders the project-structure section of the prompt,
// prefixed with the git branch when available.
func (c *Context) StructureBlock() string {
	if c.Git != nil {
		return fmt.Sprintf("Git Branch: %s\n\n%s", c.Git.Branch, c.Tree)
	}
	return c.Tree
}

// KeyFilesBlock renders key file contents as fenced sections for the prompt.
func (c *Context) KeyFilesBlock() string {
	if len(c.KeyFiles) == 0 {
		return "(No key configuration files found)"
	}

	var b strings.Builder
	for _, kf := range c.KeyFiles {
		fmt.Fprintf(&b, "\n### %s\n```\n%s\n```\n", kf.Name, kf.Content)
	}
	return b.String()
}

// Tree renders a directory tree of the project, directories first, names
// sorted case-insensitively, ignored entries filtered out.
func Tree(root string, maxDepth int) (string, error) {
	base := filepath.Base(filepath.Clean(root))
	lines := []string{base + "/"}
	if err := addTree(root, "", 0, maxDepth, &lines); err != nil {
		return "", err
	}
	return strings.Join(lines, "\n"), nil
}

func addTree(path, prefix string, depth, maxDepth int, lines *[]string) error {
	if depth > maxDepth {
		return nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsPermission(err) {
			return nil
		}
		return fmt.Errorf("discovery: read dir %s: %w", path, err)
	}

	kept := entries[:0]
	for _, entry := range entries {
		if !ignored(entry.Name(), entry.IsDir()) {
			kept = append(kept, entry)
		}
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].IsDir() != kept[j].IsDir() {
			return kept[i].IsDir()
		}
		return strings.ToLower(kept[i].Name()) < strings.ToLower(kept[j].Name())
	})

	for i, entry := range kept {
		last := i == len(kept)-1
		connector := "├── "
		extension := "│   "
		if last {
			connector = "└── "
			extension = "    "
		}

		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		*lines = append(*lines, prefix+connector+name)

		if entry.IsDir() {
			if err := addTree(filepath.Join(path, entry.Name()), prefix+extension, depth+1, maxDepth, lines); err != nil {
				return err
			}
		}
	}

	return nil
}

func ignored(name string, isDir bool) bool {
	if isDir {
		for _, dir := range IgnoredDirs {
			if name == dir {
				return true
			}
		}
		return false
	}
	for _, pattern := range IgnoredFilePatterns {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
	}
	return false
}

// ReadKeyFiles reads the known configuration files present at the project
// root, truncating each to MaxKeyFileBytes. Missing or unreadable files are
// skipped silently.
func ReadKeyFiles(root string) []KeyFile {
	var out []KeyFile
	for _, name := range KeyFileNames {
		path := filepath.Join(root, name)
		if name == "README.md" {
			path = findReadme(root)
			if path == "" {
				continue
			}
		}

		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		content := string(data)
		if len(content) > MaxKeyFileBytes {
			content = content[:MaxKeyFileBytes] + "\n... (truncated)"
		}
		out = append(out, KeyFile{Name: filepath.Base(path), Content: content})
	}
	return out
}

// findReadme locates a readme at the root regardless of case.
func findReadme(root string) string {
	entries, err := os.ReadDir(root)
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasPrefix(strings.ToLower(entry.Name()), "readme") {
			return filepath.Join(root, entry.Name())
		}
	}
	return ""
}

// Git returns repository information, or nil when root is not inside a git
// work tree or git is unavailable.
func Git(ctx context.Context, root string) *GitInfo {
	if _, err := gitOutput(ctx, root, "rev-parse", "--is-inside-work-tree"); err != nil {
		return nil
	}

	info := &GitInfo{}
	if out, err := gitOutput(ctx, root, "branch", "--show-current"); err == nil {
		info.Branch = out
	}
	if out, err := gitOutput(ctx, root, "rev-list", "--count", "HEAD"); err == nil {
		info.CommitCount = out
	}
	return info
}

func gitOutput(ctx context.Context, root string, args ...string) (string, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, gitCommandTimeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, "git", args...)
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// InferProjectName derives a human-readable project name from a spec file
// path: strip the extension and common spec/prd prefixes, then title-case.
func InferProjectName(specPath string) string {
	name := strings.TrimSuffix(filepath.Base(specPath), filepath.Ext(specPath))
	lower := strings.ToLower(name)
	for _, prefix := range []string{"spec-", "spec_", "prd-", "prd_"} {
		if strings.HasPrefix(lower, prefix) {
			name = name[len(prefix):]
			break
		}
	}

	name = strings.ReplaceAll(name, "-", " ")
	name = strings.ReplaceAll(name, "_", " ")

	words := strings.Fields(name)
	for i, w := range words {
		r := []rune(w)
		words[i] = strings.ToUpper(string(r[0])) + strings.ToLower(string(r[1:]))
	}
	return strings.Join(words, " ")
}
