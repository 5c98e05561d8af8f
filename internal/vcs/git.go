// Package vcs reads version control state for the git segment.
// Status comes from `git status --porcelain=v2 --branch`, run in the directory
// being rendered.
package vcs

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Status is a snapshot of a git working tree.
type Status struct {
	Root     string
	Branch   string
	Commit   string
	Upstream string
	Detached bool

	Ahead  int
	Behind int

	Staged    int
	Unstaged  int
	Untracked int
	Conflicts int
}

// Dirty reports whether the working tree has any uncommitted change.
func (s *Status) Dirty() bool {
	return s.Staged+s.Unstaged+s.Untracked+s.Conflicts > 0
}

// ShortCommit returns the first 7 characters of the commit id.
func (s *Status) ShortCommit() string {
	if len(s.Commit) > 7 {
		return s.Commit[:7]
	}
	return s.Commit
}

// Ref returns the branch name, or the short commit when HEAD is detached.
func (s *Status) Ref() string {
	if s.Detached || s.Branch == "" {
		return s.ShortCommit()
	}
	return s.Branch
}

// FindRoot walks up from dir looking for a .git entry. Both directories and
// .git files (worktrees, submodules) count.
func FindRoot(dir string) (string, bool) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// GitDir returns the git directory of a repository root, following `gitdir:` files.
func GitDir(root string) (string, error) {
	path := filepath.Join(root, ".git")
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return path, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	line := strings.TrimSpace(string(data))
	target, ok := strings.CutPrefix(line, "gitdir:")
	if !ok {
		return "", fmt.Errorf("unrecognized .git file in %s", root)
	}
	target = strings.TrimSpace(target)
	if !filepath.IsAbs(target) {
		target = filepath.Join(root, target)
	}
	return filepath.Clean(target), nil
}

// Client runs the git binary.
type Client struct {
	// Binary is the git executable, "git" when empty.
	Binary string
}

// NewClient creates a client using git from PATH.
func NewClient() *Client {
	return &Client{Binary: "git"}
}

// Status reads the status of the repository containing dir.
func (c *Client) Status(ctx context.Context, dir string) (*Status, error) {
	root, ok := FindRoot(dir)
	if !ok {
		return nil, fmt.Errorf("%s is not inside a git repository", dir)
	}

	binary := c.Binary
	if binary == "" {
		binary = "git"
	}

	cmd := exec.CommandContext(ctx, binary, "--no-optional-locks", "status", "--porcelain=v2", "--branch", "-z")
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "LC_ALL=C")

	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("git status failed: %w", err)
	}

	status, err := ParseStatus(output)
	if err != nil {
		return nil, err
	}
	status.Root = root
	return status, nil
}

// ParseStatus parses NUL-separated `git status --porcelain=v2 --branch -z` output.
func ParseStatus(output []byte) (*Status, error) {
	status := &Status{}

	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(splitNUL)

	skipNext := false
	for scanner.Scan() {
		record := scanner.Text()
		if skipNext {
			// Second path of a rename or copy record.
			skipNext = false
			continue
		}
		if record == "" {
			continue
		}

		switch record[0] {
		case '#':
			parseHeader(status, record)
		case '1':
			countChange(status, record)
		case '2':
			countChange(status, record)
			skipNext = true
		case 'u':
			status.Conflicts++
		case '?':
			status.Untracked++
		case '!':
			// ignored files
		default:
			return nil, fmt.Errorf("failed to parse git status: unexpected record %q", record)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse git status: %w", err)
	}
	return status, nil
}

func parseHeader(status *Status, record string) {
	fields := strings.Fields(record)
	if len(fields) < 3 {
		return
	}

	switch fields[1] {
	case "branch.oid":
		if fields[2] != "(initial)" {
			status.Commit = fields[2]
		}
	case "branch.head":
		if fields[2] == "(detached)" {
			status.Detached = true
		} else {
			status.Branch = fields[2]
		}
	case "branch.upstream":
		status.Upstream = fields[2]
	case "branch.ab":
		if len(fields) < 4 {
			return
		}
		if n, err := strconv.Atoi(strings.TrimPrefix(fields[2], "+")); err == nil {
			status.Ahead = n
		}
		if n, err := strconv.Atoi(strings.TrimPrefix(fields[3], "-")); err == nil {
			status.Behind = n
		}
	}
}

// countChange classifies an ordinary or renamed entry by its XY field.
func countChange(status *Status, record string) {
	fields := strings.SplitN(record, " ", 3)
	if len(fields) < 2 || len(fields[1]) != 2 {
		return
	}
	xy := fields[1]
	if xy[0] != '.' {
		status.Staged++
	}
	if xy[1] != '.' {
		status.Unstaged++
	}
}

func splitNUL(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, 0); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
