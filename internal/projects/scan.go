// internal/projects/scan.go

// Package projects finds version-controlled project directories under the
// home tree and decides which of them saw file activity in the current
// window. Only directory base names escape this package, never paths.
package projects

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// skipDirs are directory names never descended into while checking activity.
var skipDirs = map[string]struct{}{
	".git":         {},
	"node_modules": {},
	"vendor":       {},
	".venv":        {},
	"target":       {},
	"build":        {},
	"dist":         {},
}

// maxActivityFiles bounds how many files are examined per repository before
// the activity check gives up and calls the project inactive.
const maxActivityFiles = 5000

// Scanner discovers repositories and their activity.
type Scanner struct {
	Roots []string
	// Depth bounds how deep below each root the repository search goes.
	Depth int
}

// Repos returns the paths of repository roots (directories containing .git)
// found within the depth bound. Unreadable directories are skipped silently.
func (s *Scanner) Repos() []string {
	var repos []string
	seen := make(map[string]struct{})

	for _, root := range s.Roots {
		root = filepath.Clean(root)
		filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if !d.IsDir() {
				return nil
			}
			name := d.Name()
			if path != root && strings.HasPrefix(name, ".") && name != ".git" {
				return filepath.SkipDir
			}
			if _, skip := skipDirs[name]; skip && name != ".git" {
				return filepath.SkipDir
			}
			if depth(root, path) > s.Depth {
				return filepath.SkipDir
			}
			if name == ".git" {
				repo := filepath.Dir(path)
				if _, dup := seen[repo]; !dup {
					seen[repo] = struct{}{}
					repos = append(repos, repo)
				}
				return filepath.SkipDir
			}
			return nil
		})
	}

	sort.Strings(repos)
	return repos
}

// Active returns the base names of repositories with at least one file
// modified inside [since, now]. Failures degrade to an empty set.
func (s *Scanner) Active(since, now time.Time) []string {
	var names []string
	for _, repo := range s.Repos() {
		if repoActive(repo, since, now) {
			names = append(names, filepath.Base(repo))
		}
	}
	sort.Strings(names)
	return names
}

// repoActive reports whether any file under repo has an mtime in the window.
func repoActive(repo string, since, now time.Time) bool {
	active := false
	examined := 0
	filepath.WalkDir(repo, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if active || examined >= maxActivityFiles {
			return filepath.SkipAll
		}
		if d.IsDir() {
			if _, skip := skipDirs[d.Name()]; skip {
				return filepath.SkipDir
			}
			return nil
		}
		examined++
		info, err := d.Info()
		if err != nil {
			return nil
		}
		mtime := info.ModTime()
		if !mtime.Before(since) && !mtime.After(now) {
			active = true
			return filepath.SkipAll
		}
		return nil
	})
	return active
}

// depth counts path separators between root and path.
func depth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(os.PathSeparator)) + 1
}
