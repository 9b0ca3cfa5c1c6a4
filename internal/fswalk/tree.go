// Package fswalk renders directory trees and enumerates project files with
// the denylists applied. The same walk backs both the list_directory tool
// shown to the model and the per-service file enumeration of the embedding
// stage, so the model and the pipeline always agree on what "the project"
// contains.
package fswalk

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DirDenylist holds directory name patterns excluded from walks: build
// output, data directories, VCS internals, IDE state, and other trees that
// carry no architectural signal.
var DirDenylist = []string{
	"*[Bb]uild*", "*[Dd]atabase*", "*[Ss]tatic*", "*[Tt]est*",
	"*pipeline*", ".circleci", ".git", ".github", ".idea",
	".ipynb_checkpoints", ".mvn", ".vs", ".vscode", "[Ii]mage",
	"[Ii]mages", "[Tt]emplate*", "bin", "node_modules",
	"npm-debug.log", "obj", "[Pp]ublic", "[Ww]ebroot", "wwwroot",
}

// FileDenylist holds file name patterns excluded from walks.
var FileDenylist = []string{
	"*.sql", "*lock*", ".*rc", ".*rc.*", ".DS_Store", ".docker*",
	".editorconfig", ".git*", ".prettier*", ".travis.yml",
	"LICENSE", "gradlew*", "mvnw*", "secrets.dev.yaml", "tsconfig.*json",
	"values.dev.yaml", ".classpath", "*.html", "*.css", "*.scss",
	"*.js.map", "*.css.map", "*.svg", "*.pem", "*_test.go",
}

func matchesAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}

// Tree walks directory and returns a textual tree plus the absolute paths of
// every file that survived the denylists. Files are listed before
// directories; chains of single-subfolder directories are collapsed into one
// entry (the "src/main/java/com" case).
func Tree(directory string) (string, []string, error) {
	return walk(directory, 0)
}

// TreeWithRoot is Tree with a "Tree of directory `root`" header line, the
// form handed to the model.
func TreeWithRoot(directory, root string) (string, []string, error) {
	tree, files, err := Tree(directory)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("Tree of directory `%s`\n%s", root, tree), files, nil
}

func walk(directory string, level int) (string, []string, error) {
	entries, err := os.ReadDir(directory)
	if err != nil {
		return "", nil, fmt.Errorf("reading directory %s: %w", directory, err)
	}

	var b strings.Builder
	var files []string
	indent := strings.Repeat("--", level)

	// Files first
	for _, e := range entries {
		if e.IsDir() || matchesAny(e.Name(), FileDenylist) {
			continue
		}
		fmt.Fprintf(&b, "%s- [FILE] %s\n", indent, e.Name())
		files = append(files, filepath.Join(directory, e.Name()))
	}

	// Then directories
	for _, e := range entries {
		if !e.IsDir() || matchesAny(e.Name(), DirDenylist) {
			continue
		}

		full := collapseSingleChild(filepath.Join(directory, e.Name()))
		rel, err := filepath.Rel(directory, full)
		if err != nil {
			rel = e.Name()
		}
		fmt.Fprintf(&b, "%s- [DIR] %s/\n", indent, filepath.ToSlash(rel))

		sub, subFiles, err := walk(full, level+1)
		if err != nil {
			return "", nil, err
		}
		b.WriteString(sub)
		files = append(files, subFiles...)
	}

	return b.String(), files, nil
}

// collapseSingleChild descends while dir contains exactly one entry and that
// entry is a directory.
func collapseSingleChild(dir string) string {
	for {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) != 1 || !entries[0].IsDir() {
			return dir
		}
		dir = filepath.Join(dir, entries[0].Name())
	}
}

// RelativePath rewrites an absolute path under root to the "./..." form used
// in every record the pipeline emits.
func RelativePath(root, path string) string {
	root = strings.TrimRight(root, "/")
	return "." + strings.TrimPrefix(path, root)
}

// AbsolutePath resolves path against root unless it is already absolute.
func AbsolutePath(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	abs, err := filepath.Abs(filepath.Join(root, path))
	if err != nil {
		return filepath.Join(root, path)
	}
	return abs
}
