// internal/gitstats/gitstats.go

// Package gitstats extracts commit activity from local repositories over a
// bounded time window. It reads repository state directly instead of
// shelling out to git.
package gitstats

import (
	"log"
	"path/filepath"
	"sort"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// RepoActivity is one repository's contribution for the window.
type RepoActivity struct {
	Name         string
	Commits      int
	LinesAdded   int
	LinesDeleted int
	FilesChanged int
	Branches     []string
}

// Activity is the cross-repository rollup. Totals always equal the sums of
// the per-repository records.
type Activity struct {
	TotalCommits      int
	TotalLinesAdded   int
	TotalLinesDeleted int
	TotalFilesChanged int
	Repositories      []RepoActivity
}

// Extractor reads commit activity from discovered repositories.
type Extractor struct {
	// Author, when set, keeps only commits whose author name or email
	// contains this string.
	Author string
}

// Extract accumulates window activity across the given repository paths.
// A repository that cannot be opened or read contributes nothing.
func (e *Extractor) Extract(repoPaths []string, since, now time.Time) Activity {
	var act Activity
	for _, path := range repoPaths {
		repo, err := e.extractRepo(path, since, now)
		if err != nil {
			log.Printf("git activity for %s unavailable: %v", filepath.Base(path), err)
			continue
		}
		if repo.Commits == 0 {
			continue
		}
		act.TotalCommits += repo.Commits
		act.TotalLinesAdded += repo.LinesAdded
		act.TotalLinesDeleted += repo.LinesDeleted
		act.TotalFilesChanged += repo.FilesChanged
		act.Repositories = append(act.Repositories, repo)
	}
	return act
}

func (e *Extractor) extractRepo(path string, since, now time.Time) (RepoActivity, error) {
	act := RepoActivity{Name: filepath.Base(path)}

	repo, err := git.PlainOpen(path)
	if err != nil {
		return act, err
	}

	iter, err := repo.Log(&git.LogOptions{Since: &since, All: true})
	if err != nil {
		return act, err
	}

	err = iter.ForEach(func(c *object.Commit) error {
		when := c.Author.When
		if when.Before(since) || when.After(now) {
			return nil
		}
		if !e.matchesAuthor(c) {
			return nil
		}
		act.Commits++

		stats, err := c.Stats()
		if err != nil {
			// Stats can fail on exotic objects; the commit still counts.
			return nil
		}
		for _, fs := range stats {
			act.LinesAdded += fs.Addition
			act.LinesDeleted += fs.Deletion
		}
		act.FilesChanged += len(stats)
		return nil
	})
	if err != nil {
		return act, err
	}

	act.Branches = branchesWorked(repo, since, now)
	return act, nil
}

// matchesAuthor applies the optional configured identity filter.
func (e *Extractor) matchesAuthor(c *object.Commit) bool {
	if e.Author == "" {
		return true
	}
	return strings.Contains(c.Author.Name, e.Author) || strings.Contains(c.Author.Email, e.Author)
}

// branchesWorked returns the local branches whose tip commit falls inside
// the window.
func branchesWorked(repo *git.Repository, since, now time.Time) []string {
	var branches []string

	iter, err := repo.Branches()
	if err != nil {
		return nil
	}
	iter.ForEach(func(ref *plumbing.Reference) error {
		commit, err := repo.CommitObject(ref.Hash())
		if err != nil {
			return nil
		}
		when := commit.Author.When
		if !when.Before(since) && !when.After(now) {
			branches = append(branches, ref.Name().Short())
		}
		return nil
	})

	sort.Strings(branches)
	return branches
}
