package deploy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archlens/archlens/internal/types"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseCompose(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env", "SHARED=from_file\nFILE_ONLY=yes\n")
	writeFile(t, dir, "api/Dockerfile", `
ARG TAG=1.21
FROM golang:${TAG} AS builder
FROM builder AS tester
FROM alpine:3.19
ENV APP_MODE=production
EXPOSE 8081 9100-9101/tcp
`)
	path := writeFile(t, dir, "docker-compose.yml", `
services:
  api:
    build:
      context: ./api
    hostname: api-internal
    environment:
      - SHARED=from_env
      - DEBUG=true
    env_file: .env
    ports:
      - "8080:8080"
    expose:
      - "9000"
    extra_hosts:
      - "db.local:10.0.0.5"
    networks:
      backend:
        aliases:
          - api-backend
    depends_on:
      db:
        condition: service_healthy
  db:
    image: postgres:16
networks:
  backend: {}
`)

	cfg, err := ParseCompose(path)
	require.NoError(t, err)
	assert.Equal(t, types.DeployDockerCompose, cfg.ConfigType())
	assert.ElementsMatch(t, []string{"backend"}, cfg.NetworkNames)
	require.Len(t, cfg.Deployments, 2)

	api := cfg.DeploymentFor("api")
	require.NotNil(t, api)

	// environment beats env_file; the Dockerfile ENV lands on top.
	assert.Equal(t, "from_env", api.Environment["SHARED"])
	assert.Equal(t, "true", api.Environment["DEBUG"])
	assert.Equal(t, "yes", api.Environment["FILE_ONLY"])
	assert.Equal(t, "production", api.Environment["APP_MODE"])

	// compose ports + expose + Dockerfile EXPOSE range.
	assert.Equal(t, []PortMapping{
		{HostPort: 8080, ContainerPort: 8080},
		{ContainerPort: 9000},
		{ContainerPort: 8081},
		{ContainerPort: 9100, Protocol: "TCP"},
		{ContainerPort: 9101, Protocol: "TCP"},
	}, api.Ports)

	assert.Equal(t, map[string]string{"db.local": "10.0.0.5"}, api.ExtraHosts)
	assert.ElementsMatch(t, []string{"api-internal", "api-backend"}, api.Aliases)
	assert.Equal(t, []string{"backend"}, api.Networks)
	assert.Equal(t, []string{"db"}, api.DependsOn)

	// stage aliases drop out; real bases stay, with ARG substitution applied.
	assert.ElementsMatch(t, []string{"alpine:3.19", "golang:1.21"}, api.Image)

	db := cfg.DeploymentFor("db")
	require.NotNil(t, db)
	assert.Equal(t, []string{"postgres:16"}, db.Image)
	assert.Nil(t, db.Ports)

	// aliases resolve too.
	assert.Same(t, api, cfg.DeploymentFor("api-backend"))
	assert.Nil(t, cfg.DeploymentFor("ghost"))
}

func TestMergeEnvironmentForms(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.env", "X=file_a\nA_ONLY=1\n")
	writeFile(t, dir, "b.env", "X=file_b\nB_ONLY=2\n")

	t.Run("map form with nil value", func(t *testing.T) {
		env, err := mergeEnvironment(dir, map[string]any{"EMPTY": nil, "N": 5}, nil)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"EMPTY": "", "N": "5"}, env)
	})

	t.Run("explicit wins and earlier file wins", func(t *testing.T) {
		env, err := mergeEnvironment(dir,
			[]any{"Y=explicit"},
			[]any{"a.env", map[string]any{"path": "b.env"}})
		require.NoError(t, err)
		assert.Equal(t, map[string]string{
			"Y":      "explicit",
			"X":      "file_a",
			"A_ONLY": "1",
			"B_ONLY": "2",
		}, env)
	})

	t.Run("missing env file is an error", func(t *testing.T) {
		_, err := mergeEnvironment(dir, nil, "nope.env")
		assert.Error(t, err)
	})

	t.Run("nothing configured", func(t *testing.T) {
		env, err := mergeEnvironment(dir, nil, nil)
		require.NoError(t, err)
		assert.Nil(t, env)
	})
}

func TestParseDependsOnForms(t *testing.T) {
	assert.Equal(t, []string{"db", "cache"}, parseDependsOn([]any{"db", "cache"}))
	assert.ElementsMatch(t, []string{"db"}, parseDependsOn(map[string]any{"db": map[string]any{"condition": "service_started"}}))
	assert.Nil(t, parseDependsOn(nil))
}

func TestParseBuildForms(t *testing.T) {
	assert.Nil(t, parseBuild(nil))
	assert.Nil(t, parseBuild(""))
	assert.Nil(t, parseBuild(map[string]any{"context": ""}))
	assert.Equal(t, &BuildSpec{Context: "./svc"}, parseBuild("./svc"))
	assert.Equal(t,
		&BuildSpec{Context: ".", Dockerfile: "build/Dockerfile"},
		parseBuild(map[string]any{"context": ".", "dockerfile": "build/Dockerfile"}))
}
