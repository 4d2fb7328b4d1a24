// Package paths locates collection databases and produces timestamped
// backup copies next to them.
package paths

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hashicorp/golang-lru"

	"github.com/conorfennell/ankitab/internal/domain"
)

// DefaultFilename is the file name of a collection database.
const DefaultFilename = "collection.anki2"

// DefaultMaxDepth bounds the directory depth of a search.
const DefaultMaxDepth = 8

// Query describes a database search.
type Query struct {
	// SearchPaths defaults to DefaultSearchPaths.
	SearchPaths []string
	// MaxDepth of 0 searches without limit.
	MaxDepth int
	// Filename defaults to DefaultFilename.
	Filename string
	// User restricts results to one profile directory.
	User string
	// BreakOnFirst stops at the first hit instead of detecting ambiguity.
	BreakOnFirst bool
}

// Finder searches for collections. Per-path search results are memoized in
// a bounded LRU cache owned by the Finder.
type Finder struct {
	// MaxDepth is used by Resolve.
	MaxDepth int

	memo *lru.Cache
	log  *slog.Logger
}

// NewFinder returns a Finder memoizing up to size search results.
func NewFinder(size int) (*Finder, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create search cache: %w", err)
	}
	return &Finder{MaxDepth: DefaultMaxDepth, memo: cache, log: slog.Default()}, nil
}

// SetLogger replaces the logger.
func (f *Finder) SetLogger(l *slog.Logger) { f.log = l }

// Forget drops all memoized search results.
func (f *Finder) Forget() { f.memo.Purge() }

// DefaultSearchPaths returns the usual locations of profile folders.
func DefaultSearchPaths() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	candidates := []string{
		filepath.Join(home, ".local", "share", "Anki2"),
		filepath.Join(home, "Documents", "Anki2"),
		filepath.Join(home, "Library", "Application Support", "Anki2"),
	}
	if appData := os.Getenv("APPDATA"); appData != "" {
		candidates = append(candidates, filepath.Join(appData, "Anki2"))
	}
	candidates = append(candidates, home)
	var out []string
	for _, c := range candidates {
		if abs, err := filepath.Abs(c); err == nil {
			c = abs
		}
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}

// Find returns the single database matching q.
func (f *Finder) Find(q Query) (string, error) {
	if q.Filename == "" {
		q.Filename = DefaultFilename
	}
	if len(q.SearchPaths) == 0 {
		f.log.Info("Searching default locations for a database; pass a path to speed this up")
		q.SearchPaths = DefaultSearchPaths()
	}
	if q.BreakOnFirst {
		f.log.Warn("Search stops at the first hit, verify the result if several installations exist")
	}

	found := map[string][]string{}
	for _, root := range q.SearchPaths {
		for user, hits := range f.search(root, q) {
			found[user] = slices.Clone(hits)
		}
		if !q.BreakOnFirst {
			continue
		}
		if q.User != "" {
			if _, ok := found[q.User]; ok {
				break
			}
		} else if len(found) > 0 {
			break
		}
	}

	var results []string
	if q.User != "" {
		hits, ok := found[q.User]
		if !ok {
			return "", fmt.Errorf("%w: no database of user %s", domain.ErrPathNotFound, q.User)
		}
		results = hits
	} else {
		switch len(found) {
		case 0:
			return "", fmt.Errorf("%w: no database found, increase the search depth or give search paths", domain.ErrPathNotFound)
		case 1:
			for _, hits := range found {
				results = hits
			}
		default:
			users := make([]string, 0, len(found))
			for u := range found {
				users = append(users, u)
			}
			slices.Sort(users)
			return "", fmt.Errorf("%w: databases of several users: %s", domain.ErrAmbiguousResult, strings.Join(users, ", "))
		}
	}
	if len(results) > 1 {
		return "", fmt.Errorf("%w: several databases of user %s: %s", domain.ErrAmbiguousResult, q.User, strings.Join(results, ", "))
	}
	f.log.Debug("Database found", "path", results[0])
	return results[0], nil
}

// Resolve interprets user input: a file is taken as is, a directory is
// searched, and an empty path searches the default locations.
func (f *Finder) Resolve(path, user string) (string, error) {
	if path == "" {
		return f.Find(Query{MaxDepth: f.MaxDepth, User: user, BreakOnFirst: true})
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", domain.ErrPathNotFound, path)
		}
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.IsDir() {
		f.log.Debug("Database explicitly set", "path", path)
		return path, nil
	}
	found, err := f.Find(Query{SearchPaths: []string{path}, MaxDepth: f.MaxDepth, User: user})
	if err != nil {
		return "", err
	}
	f.log.Info("Database found", "path", found)
	return found, nil
}

// search walks one root. Results map the profile folder name to the
// databases in it and are memoized per root and query.
func (f *Finder) search(root string, q Query) map[string][]string {
	key := fmt.Sprintf("%s\x00%d\x00%s\x00%s\x00%t", root, q.MaxDepth, q.Filename, q.User, q.BreakOnFirst)
	if v, ok := f.memo.Get(key); ok {
		return v.(map[string][]string)
	}
	found := walk(root, q, f.log)
	f.memo.Add(key, found)
	return found
}

func walk(root string, q Query, log *slog.Logger) map[string][]string {
	found := map[string][]string{}
	info, err := os.Stat(root)
	if err != nil {
		log.Debug("Search path does not exist", "path", root)
		return found
	}
	if !info.IsDir() {
		if filepath.Base(root) == q.Filename {
			found[filepath.Base(filepath.Dir(root))] = []string{root}
		} else {
			log.Warn("Search path is a file with another name", "path", root, "filename", q.Filename)
		}
		return found
	}

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if q.MaxDepth > 0 && depth(root, path) > q.MaxDepth {
				return fs.SkipDir
			}
			return nil
		}
		if d.Name() != q.Filename {
			return nil
		}
		user := filepath.Base(filepath.Dir(path))
		if q.User != "" && user != q.User {
			return nil
		}
		found[user] = append(found[user], path)
		if q.BreakOnFirst {
			return fs.SkipAll
		}
		return nil
	})
	for _, hits := range found {
		slices.Sort(hits)
	}
	return found
}

func depth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return len(strings.Split(rel, string(filepath.Separator)))
}
