package monitor

import (
	"bufio"
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// GitignorePattern is a single parsed line from an ignore file: a glob
// pattern plus whether it negates ("un-ignores") a prior match.
type GitignorePattern struct {
	Glob      string
	Negate    bool
	DirOnly   bool
}

// builtinIgnores are dropped unconditionally unless overridden by a
// never-ignore pattern (spec §4.2 step 2). Grounded on the VCS ignore set
// mutagen ships (DefaultVCSIgnores) plus editor/OS metadata conventions.
var builtinIgnores = []string{
	".git/", ".svn/", ".hg/", ".bzr/", "_darcs/",
	"node_modules/", "vendor/", ".venv/", "__pycache__/",
	"*.swp", "*.swo", "*~", "*.bak",
	".DS_Store", "Thumbs.db", "desktop.ini",
}

// IgnoreFilter decides whether a root-relative path should be tracked.
// Pure: it never touches the filesystem itself (spec §4.2).
type IgnoreFilter struct {
	builtin      []GitignorePattern
	ignoreFile   []GitignorePattern // patterns loaded from the ignore file at the watch root
	user         []*regexp.Regexp
	neverIgnore  []GitignorePattern
}

// NewIgnoreFilter builds a filter from parsed ignore-file patterns, raw user
// regex strings, and raw never-ignore glob strings.
func NewIgnoreFilter(ignoreFilePatterns []GitignorePattern, userPatterns []string, neverIgnore []string) (*IgnoreFilter, error) {
	f := &IgnoreFilter{
		builtin:    parseGlobList(builtinIgnores),
		ignoreFile: ignoreFilePatterns,
		neverIgnore: parseGlobList(neverIgnore),
	}
	for _, p := range userPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		f.user = append(f.user, re)
	}
	return f, nil
}

func parseGlobList(globs []string) []GitignorePattern {
	patterns := make([]GitignorePattern, 0, len(globs))
	for _, g := range globs {
		patterns = append(patterns, parseGitignoreLine(g))
	}
	return patterns
}

// parseGitignoreLine parses a single non-comment, non-blank gitignore line.
// Supports the common subset: leading "!" negation, trailing "/" for
// directory-only matches, "*" and "**" globs, and leading "/" anchoring to
// the ignore file's directory. Full gitignore syntax (character classes,
// escaped metacharacters) is explicitly out of scope (spec §1).
func parseGitignoreLine(line string) GitignorePattern {
	p := GitignorePattern{Glob: line}
	if strings.HasPrefix(p.Glob, "!") {
		p.Negate = true
		p.Glob = p.Glob[1:]
	}
	if strings.HasSuffix(p.Glob, "/") {
		p.DirOnly = true
		p.Glob = strings.TrimSuffix(p.Glob, "/")
	}
	anchored := strings.HasPrefix(p.Glob, "/")
	p.Glob = strings.TrimPrefix(p.Glob, "/")
	if !anchored && !strings.Contains(p.Glob, "/") {
		p.Glob = "**/" + p.Glob
	}
	return p
}

// LoadIgnoreFile reads and parses a .gitignore-style file, skipping blank
// lines and comments ("#"-prefixed).
func LoadIgnoreFile(path string) ([]GitignorePattern, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var patterns []GitignorePattern
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, parseGitignoreLine(line))
	}
	return patterns, scanner.Err()
}

func (p GitignorePattern) matches(relPath string) bool {
	matched, _ := doublestar.Match(p.Glob, relPath)
	if matched {
		return true
	}
	// A directory pattern also matches anything nested under it.
	if p.DirOnly {
		prefixMatched, _ := doublestar.Match(p.Glob+"/**", relPath)
		return prefixMatched
	}
	return false
}

// ShouldIgnore decides whether relPath (root-relative, no leading slash)
// should be excluded from tracking, applying the decision order of spec
// §4.2: never-ignore overrides everything; built-ins drop; ignore-file
// patterns apply in order with negation; user patterns drop; default keep.
func (f *IgnoreFilter) ShouldIgnore(relPath string) bool {
	matchPath := path.Clean(relPath)

	for _, p := range f.neverIgnore {
		if p.matches(matchPath) {
			return false
		}
	}

	for _, p := range f.builtin {
		if p.matches(matchPath) {
			return true
		}
	}

	ignored := false
	for _, p := range f.ignoreFile {
		if p.matches(matchPath) {
			ignored = !p.Negate
		}
	}
	if ignored {
		return true
	}

	for _, re := range f.user {
		if re.MatchString("/" + matchPath) {
			return true
		}
	}

	return false
}
