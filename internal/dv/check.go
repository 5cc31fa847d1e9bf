package dv

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"docvault/internal/model"
)

// Problem is an inconsistency found by Check.
type Problem struct {
	Container string
	Item      string
	Path      string
	Kind      string // missing, size, checksum, untracked
	Detail    string
}

func (p Problem) String() string {
	where := p.Container
	if p.Item != "" {
		where += "/" + p.Item
	}
	return fmt.Sprintf("%s\t%s\t%s\t%s", p.Kind, where, p.Path, p.Detail)
}

// CheckOptions tune an integrity check.
type CheckOptions struct {
	// Ignore reports whether an untracked file inside a container
	// directory should be skipped. Nil skips none.
	Ignore func(relPath string) bool
}

// Check verifies every head, revision and thumbnail file against the
// catalog and reports untracked files in container directories. It takes
// no locks and changes nothing; results may include transient problems
// caused by concurrent writes.
func (s *Service) Check(ctx context.Context, opts CheckOptions) ([]Problem, error) {
	containers, err := s.catalog.ListContainers(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("listing containers: %w", err)
	}

	var problems []Problem
	for _, c := range containers {
		if err := ctx.Err(); err != nil {
			return problems, err
		}
		found, err := s.checkContainer(ctx, c, opts)
		if err != nil {
			return problems, err
		}
		problems = append(problems, found...)
	}

	s.logger.Info("integrity check finished", "containers", len(containers), "problems", len(problems))
	return problems, nil
}

func (s *Service) checkContainer(ctx context.Context, c *model.Container, opts CheckOptions) ([]Problem, error) {
	dir := s.containerDir(c.Name)
	ok, err := s.store.IsDir(dir)
	if err != nil {
		return nil, fmt.Errorf("checking %s: %w", dir, err)
	}
	if !ok {
		return []Problem{{Container: c.Name, Path: dir, Kind: "missing", Detail: "container directory"}}, nil
	}

	items, err := s.catalog.ListItems(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}

	var problems []Problem
	tracked := make(map[string]bool, len(items))
	for _, it := range items {
		tracked[it.Filename] = true
		add := func(path string, size int64, checksum, what string) {
			if p := s.checkFile(path, size, checksum); p != nil {
				p.Container, p.Item = c.Name, it.Filename
				if p.Detail == "" {
					p.Detail = what
				} else {
					p.Detail = what + ": " + p.Detail
				}
				problems = append(problems, *p)
			}
		}

		add(s.headPath(c, it.Filename), it.Filesize, it.Checksum, "head")

		revs, err := s.catalog.ListRevisions(ctx, it.ID)
		if err != nil {
			return nil, fmt.Errorf("listing revisions: %w", err)
		}
		for _, r := range revs {
			add(s.revisionPath(r.UUID), r.Filesize, r.Checksum, fmt.Sprintf("revision %d", r.RevisionNumber))
		}

		thumb, err := s.catalog.FindThumbnail(ctx, it.ID)
		if err != nil {
			return nil, fmt.Errorf("finding thumbnail: %w", err)
		}
		if thumb != nil {
			add(s.thumbnailPath(thumb), thumb.Filesize, thumb.Checksum, "thumbnail")
		}
	}

	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == dir {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if opts.Ignore != nil && opts.Ignore(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			problems = append(problems, Problem{Container: c.Name, Path: path, Kind: "untracked", Detail: "directory"})
			return filepath.SkipDir
		}
		if !tracked[rel] {
			problems = append(problems, Problem{Container: c.Name, Path: path, Kind: "untracked", Detail: "file"})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	return problems, nil
}

func (s *Service) checkFile(path string, size int64, checksum string) *Problem {
	ok, err := s.store.IsFile(path)
	if err != nil {
		return &Problem{Path: path, Kind: "missing", Detail: err.Error()}
	}
	if !ok {
		return &Problem{Path: path, Kind: "missing"}
	}
	got, err := s.store.Filesize(path)
	if err != nil {
		return &Problem{Path: path, Kind: "size", Detail: err.Error()}
	}
	if got != size {
		return &Problem{Path: path, Kind: "size", Detail: fmt.Sprintf("expected %d bytes, found %d", size, got)}
	}
	sum, err := s.store.Checksum(path)
	if err != nil {
		return &Problem{Path: path, Kind: "checksum", Detail: err.Error()}
	}
	if sum != checksum {
		return &Problem{Path: path, Kind: "checksum", Detail: "content does not match catalog"}
	}
	return nil
}
