package deploy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archlens/archlens/internal/types"
)

func TestParseAllSkipsUnknownAndBroken(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "deploy/cart.yaml", sampleManifest)
	writeFile(t, dir, "deploy/broken.yaml", "kind: Service\nspec: [not: a: map\n")
	writeFile(t, dir, "docker-compose.yml", `
services:
  web:
    image: nginx:1.27
    ports:
      - "80:80"
`)

	refs := []types.DeployConfigRef{
		{Path: "./deploy", Type: types.DeployKubernetes},
		{Path: "./docker-compose.yml", Type: types.DeployDockerCompose},
		{Path: "./Makefile", Type: types.DeployUnknown},
	}

	parsed := ParseAll(dir, refs)
	require.Len(t, parsed, 2, "broken manifest is skipped, unknown ref ignored")

	byType := map[types.DeployConfigType]int{}
	for _, c := range parsed {
		byType[c.ConfigType()]++
	}
	assert.Equal(t, 1, byType[types.DeployKubernetes])
	assert.Equal(t, 1, byType[types.DeployDockerCompose])
}

func TestParseAllAllUnknown(t *testing.T) {
	refs := []types.DeployConfigRef{{Path: "./x", Type: types.DeployUnknown}}
	assert.Nil(t, ParseAll(t.TempDir(), refs))
	assert.Nil(t, ParseAll(t.TempDir(), nil))
}
