package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"github.com/miosa/osa-scroller/style"
	"github.com/miosa/osa-scroller/ui/vlist"
)

const shortHashLen = 8

// Commit is one entry of a repository log. Long messages make expanded
// commits of very different heights.
type Commit struct {
	Hash    string
	Author  string
	Subject string
	Body    string
	When    time.Time
}

func (c Commit) ID() string          { return c.Hash }
func (c Commit) ContentVersion() int { return 1 }
func (c Commit) Type() string        { return "commit" }

// Render shows the short hash, subject, author and age. Expanded commits
// add the wrapped message body.
func (c Commit) Render(width int, expanded bool) string {
	head := style.StatusSignal.Render(c.Hash[:min(shortHashLen, len(c.Hash))]) + " " +
		c.Subject + " " +
		style.Detail.Render(c.Author+", "+humanize.Time(c.When))
	if !expanded || c.Body == "" {
		return fit(head, width)
	}
	return fit(head, width) + "\n" + wrap(c.Body, max(1, width-2))
}

// openRepo opens the repository containing path.
func openRepo(path string) (*git.Repository, error) {
	if path == "" {
		path = "."
	}
	return git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
}

// GitLog returns up to limit commits reachable from HEAD, newest first. A
// repository without commits yields no items.
func GitLog(ctx context.Context, path string, limit int) ([]vlist.Item, error) {
	repo, err := openRepo(path)
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return []vlist.Item{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("get log: %w", err)
	}
	defer iter.Close()

	var items []vlist.Item
	err = iter.ForEach(func(c *object.Commit) error {
		if limit > 0 && len(items) >= limit {
			return storer.ErrStop
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		items = append(items, newCommit(c))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk log: %w", err)
	}
	return items, nil
}

func newCommit(c *object.Commit) Commit {
	subject, body, _ := strings.Cut(strings.TrimSpace(c.Message), "\n")
	return Commit{
		Hash:    c.Hash.String(),
		Author:  c.Author.Name,
		Subject: subject,
		Body:    strings.TrimSpace(body),
		When:    c.Author.When,
	}
}
