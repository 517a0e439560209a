// Package resolver expands the token list a user passes on the command line
// (literal paths, directories, glob patterns, and `-`-prefixed exclusions)
// into the concrete, deduplicated set of audio files a run should operate on
// (§4.1).
package resolver

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/SamWindell/signet/internal/fault"
)

// validExtensions mirrors internal/codec.ValidExtensions; duplicated here
// (rather than imported) to keep resolver free of a codec dependency —
// resolver only ever needs to know the set of extensions it admits, not how
// to decode them.
var validExtensions = map[string]bool{".wav": true, ".flac": true}

// Set is the canonicalized, deduplicated result of resolving a token list.
type Set struct {
	paths map[string]bool
}

// Paths returns the resolved set as a sorted slice, for deterministic
// iteration order across a run.
func (s *Set) Paths() []string {
	out := make([]string, 0, len(s.paths))
	for p := range s.paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Size returns the number of resolved files.
func (s *Set) Size() int {
	return len(s.paths)
}

// Resolve expands tokens (each already split on comma/whitespace by the
// caller's CLI layer) into a Set of canonical audio file paths (§4.1).
// recursive controls whether a bare-directory token descends into
// subdirectories.
func Resolve(tokens []string, recursive bool) (*Set, error) {
	includes, excludes := splitIncludeExclude(tokens)

	set := &Set{paths: map[string]bool{}}

	for _, pattern := range includes {
		var matches []string
		var err error

		switch {
		case strings.ContainsRune(pattern, '*'):
			matches, err = expandGlob(pattern)
		case isDir(pattern):
			matches, err = expandDirectory(pattern, recursive)
		case isFile(pattern):
			matches = []string{pattern}
		default:
			return nil, fmt.Errorf("%w: %q is neither a file, a directory, nor a glob pattern", fault.ErrUnparseableToken, pattern)
		}

		if err != nil {
			return nil, err
		}

		for _, m := range matches {
			if !hasValidExtension(m) {
				continue
			}
			if isExcluded(m, excludes) {
				continue
			}
			if err := set.add(m); err != nil {
				return nil, err
			}
		}
	}

	if set.Size() == 0 {
		return nil, fmt.Errorf("%w: no files matched the given input", fault.ErrEmptySelection)
	}

	return set, nil
}

// add canonicalizes path (resolving "..", then symlinks) and NFC-normalizes
// it before inserting, so that two tokens reaching the same file by
// different routes dedupe (§4.1 Output).
func (s *Set) add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
	}

	s.paths[norm.NFC.String(filepath.ToSlash(resolved))] = true
	return nil
}

// splitIncludeExclude separates tokens into inclusion and exclusion
// patterns, stripping a leading `-` (exclusion marker) and any surrounding
// quote characters (§4.1 Input).
func splitIncludeExclude(tokens []string) (includes, excludes []string) {
	for _, tok := range tokens {
		tok = unquote(tok)
		if strings.HasPrefix(tok, "-") {
			excludes = append(excludes, tok[1:])
		} else {
			includes = append(includes, tok)
		}
	}
	return includes, excludes
}

func unquote(tok string) string {
	if len(tok) >= 2 {
		first, last := tok[0], tok[len(tok)-1]
		if (first == '"' || first == '\'') && first == last {
			return tok[1 : len(tok)-1]
		}
	}
	return tok
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func hasValidExtension(path string) bool {
	return validExtensions[filepath.Ext(path)]
}

func isExcluded(path string, excludePatterns []string) bool {
	generic := filepath.ToSlash(path)
	for _, pattern := range excludePatterns {
		if wildcardMatch(normalizePattern(pattern), generic) {
			return true
		}
	}
	return false
}

// expandDirectory lists path's files, one level deep or (when recursive)
// transitively, excluding dot-prefixed entries (§4.1 Directory expansion).
func expandDirectory(path string, recursive bool) ([]string, error) {
	var out []string

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
	}

	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}

		full := filepath.Join(path, e.Name())

		if e.IsDir() {
			if recursive {
				sub, err := expandDirectory(full, true)
				if err != nil {
					return nil, err
				}
				out = append(out, sub...)
			}
			continue
		}

		out = append(out, full)
	}

	return out, nil
}

// normalizePattern backslash-to-slash normalizes a pattern and, if it
// contains no separator at all, prefixes it with "./" (§4.1 Glob semantics).
func normalizePattern(pattern string) string {
	pattern = filepath.ToSlash(pattern)
	if !strings.Contains(pattern, "/") {
		pattern = "./" + pattern
	}
	return pattern
}

// expandGlob implements the segment-wise expansion algorithm of §4.1: split
// the pattern on '/', walk a working set of candidate directories one
// segment at a time (expanding '**' to every recursive subdirectory and '*'
// to every immediate subdirectory whose path matches the glob built up so
// far), then enumerate files under the surviving directories for the final
// segment. Standard library filepath.Glob cannot express '**' crossing
// separators, so this walker is hand-rolled — the same shape as the
// original implementation's segment loop.
func expandGlob(pattern string) ([]string, error) {
	pattern = normalizePattern(pattern)

	segments := strings.Split(pattern, "/")
	lastSegment := segments[len(segments)-1]
	intermediate := segments[:len(segments)-1]

	// builtSoFar accumulates the glob prefix matched against each
	// candidate directory's full path, mirroring the original's `folder`
	// variable (the full pattern truncated to the current segment).
	candidates := []string{intermediate[0]}
	builtSoFar := intermediate[0]

	for _, seg := range intermediate[1:] {
		builtSoFar = builtSoFar + "/" + seg

		var next []string

		switch {
		case strings.Contains(seg, "**"):
			for _, dir := range candidates {
				subdirs, err := recursiveSubdirs(dir)
				if err != nil {
					return nil, err
				}
				for _, sd := range subdirs {
					if wildcardMatch(builtSoFar, sd) {
						next = append(next, sd)
					}
				}
			}
		case strings.Contains(seg, "*"):
			for _, dir := range candidates {
				subdirs, err := immediateSubdirs(dir)
				if err != nil {
					return nil, err
				}
				for _, sd := range subdirs {
					if wildcardMatch(builtSoFar, sd) {
						next = append(next, sd)
					}
				}
			}
		default:
			for _, dir := range candidates {
				next = append(next, dir+"/"+seg)
			}
		}

		candidates = next
	}

	var matches []string

	for _, dir := range candidates {
		var files []string
		var err error

		switch {
		case strings.Contains(lastSegment, "**"):
			files, err = allFilesRecursive(dir)
		case strings.Contains(lastSegment, "*"):
			files, err = allFilesOneLevel(dir)
		default:
			files = []string{dir + "/" + lastSegment}
		}

		if err != nil {
			return nil, err
		}

		for _, f := range files {
			if wildcardMatch(pattern, f) {
				matches = append(matches, f)
			}
		}
	}

	return matches, nil
}

func recursiveSubdirs(root string) ([]string, error) {
	var out []string

	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		full := filepath.ToSlash(filepath.Join(root, e.Name()))
		out = append(out, full)

		sub, err := recursiveSubdirs(full)
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}

	return out, nil
}

func immediateSubdirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, filepath.ToSlash(filepath.Join(root, e.Name())))
		}
	}
	return out, nil
}

func allFilesRecursive(root string) ([]string, error) {
	var out []string

	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
	}

	for _, e := range entries {
		full := filepath.ToSlash(filepath.Join(root, e.Name()))
		if e.IsDir() {
			sub, err := allFilesRecursive(full)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
			continue
		}
		out = append(out, full)
	}

	return out, nil
}

func allFilesOneLevel(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
	}

	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			out = append(out, filepath.ToSlash(filepath.Join(root, e.Name())))
		}
	}
	return out, nil
}

// wildcardMatch reports whether path matches pattern, where '*' stands for
// any run of characters excluding '/' and "**" stands for any run of
// characters including '/' (§4.1 Glob semantics). This is a small greedy
// matcher over the two wildcard forms rather than a direct translation of
// filepath.Match, since filepath.Match's '*' already excludes separators but
// has no equivalent to "**".
func wildcardMatch(pattern, path string) bool {
	return matchFrom(pattern, path)
}

func matchFrom(pattern, path string) bool {
	for len(pattern) > 0 {
		switch {
		case strings.HasPrefix(pattern, "**"):
			rest := pattern[2:]
			if rest == "" {
				return true
			}
			for i := 0; i <= len(path); i++ {
				if matchFrom(rest, path[i:]) {
					return true
				}
			}
			return false

		case pattern[0] == '*':
			rest := pattern[1:]
			if rest == "" {
				return !strings.Contains(path, "/")
			}
			for i := 0; i <= len(path); i++ {
				if path[:i] != "" && strings.Contains(path[:i], "/") {
					break
				}
				if matchFrom(rest, path[i:]) {
					return true
				}
			}
			return false

		default:
			if len(path) == 0 || pattern[0] != path[0] {
				return false
			}
			pattern = pattern[1:]
			path = path[1:]
		}
	}

	return len(path) == 0
}
