package pipeline

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/archlens/archlens/internal/types"
)

func TestMergeCenterConfigsRewritesPaths(t *testing.T) {
	projectLoc := filepath.Join("/", "work", "shop")
	centerDir := filepath.Join(projectLoc, "config-repo")

	result := &types.IdentifyServiceResult{Services: []types.IdentifiedService{
		{Name: "account", Prebuilt: false, SourceDir: "./account", Configs: []string{"./config-repo/account.yml"}},
		{Name: "gateway", Prebuilt: false, SourceDir: "./gateway"},
	}}

	mergeCenterConfigs(result, map[string][]string{
		"account": {"./application.yml", "./account.yml"},
		"gateway": {"./application.yml", "./gateway.yml"},
		"ghost":   {"./ghost.yml"},
	}, projectLoc, centerDir)

	account := result.ServiceByName("account")
	// Paths are rewritten relative to the project root; the entry already
	// present is not duplicated.
	assert.Equal(t, []string{
		"./config-repo/account.yml",
		"./config-repo/application.yml",
	}, account.Configs)

	gateway := result.ServiceByName("gateway")
	assert.Equal(t, []string{
		"./config-repo/application.yml",
		"./config-repo/gateway.yml",
	}, gateway.Configs)
}

func TestDocumentIDStable(t *testing.T) {
	a := documentID("abc123", "./api/main.go", "api")
	b := documentID("abc123", "./api/main.go", "api")
	c := documentID("abc123", "./api/main.go", "gateway")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 40)
}
