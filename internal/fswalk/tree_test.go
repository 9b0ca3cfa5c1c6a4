package fswalk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("content\n"), 0o644))
}

func TestTreeRendersFilesBeforeDirectories(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.go"))
	writeFile(t, filepath.Join(dir, "api", "handler.go"))

	tree, files, err := Tree(dir)
	require.NoError(t, err)

	assert.Equal(t, "- [FILE] main.go\n- [DIR] api/\n--- [FILE] handler.go\n", tree)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "main.go"),
		filepath.Join(dir, "api", "handler.go"),
	}, files)
}

func TestTreeAppliesDenylists(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "app.py"))
	writeFile(t, filepath.Join(dir, "schema.sql"))
	writeFile(t, filepath.Join(dir, "package-lock.json"))
	writeFile(t, filepath.Join(dir, "walk_test.go"))
	writeFile(t, filepath.Join(dir, ".git", "HEAD"))
	writeFile(t, filepath.Join(dir, "node_modules", "left-pad", "index.js"))
	writeFile(t, filepath.Join(dir, "Dockerfile"))
	writeFile(t, filepath.Join(dir, "docker-compose.yml"))

	tree, files, err := Tree(dir)
	require.NoError(t, err)

	assert.NotContains(t, tree, "schema.sql")
	assert.NotContains(t, tree, "package-lock.json")
	assert.NotContains(t, tree, "walk_test.go")
	assert.NotContains(t, tree, ".git")
	assert.NotContains(t, tree, "node_modules")

	// Deploy descriptors carry architectural signal and must survive.
	assert.Contains(t, tree, "[FILE] Dockerfile")
	assert.Contains(t, tree, "[FILE] docker-compose.yml")

	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "app.py"),
		filepath.Join(dir, "Dockerfile"),
		filepath.Join(dir, "docker-compose.yml"),
	}, files)
}

func TestTreeCollapsesSingleChildChains(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src", "main", "java", "com", "App.java"))

	tree, files, err := Tree(dir)
	require.NoError(t, err)

	assert.Equal(t, "- [DIR] src/main/java/com/\n--- [FILE] App.java\n", tree)
	assert.Equal(t, []string{filepath.Join(dir, "src", "main", "java", "com", "App.java")}, files)
}

func TestTreeWithRootAddsHeader(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.go"))

	tree, _, err := TreeWithRoot(dir, "./order-service")
	require.NoError(t, err)

	assert.Equal(t, "Tree of directory `./order-service`\n- [FILE] main.go\n", tree)
}

func TestRelativePath(t *testing.T) {
	assert.Equal(t, "./api/main.go", RelativePath("/proj", "/proj/api/main.go"))
	assert.Equal(t, "./api/main.go", RelativePath("/proj/", "/proj/api/main.go"))
}

func TestAbsolutePath(t *testing.T) {
	assert.Equal(t, "/etc/app.yml", AbsolutePath("/proj", "/etc/app.yml"))

	got := AbsolutePath("/proj", "./api/app.yml")
	assert.Equal(t, "/proj/api/app.yml", got)
}
