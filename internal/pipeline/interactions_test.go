package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archlens/archlens/internal/agent"
	"github.com/archlens/archlens/internal/config"
	"github.com/archlens/archlens/internal/llm"
	"github.com/archlens/archlens/internal/types"
	"github.com/archlens/archlens/internal/vectorstore"
)

func TestFormatBrief(t *testing.T) {
	got := formatBrief(vectorstore.Document{
		Filepath: "./api/main.go",
		Text:     "Entry point of the api service.",
	})

	want := "----------------\n" +
		"FILENAME: `./api/main.go`\n" +
		"BRIEF:\n```\nEntry point of the api service.\n```\n"
	assert.Equal(t, want, got)
}

func TestIncludeConfigsFetchesMissingBriefs(t *testing.T) {
	store := newFakeStore()
	_, err := store.AddData(context.Background(), []vectorstore.Document{
		{ID: "1", Filepath: "./api/main.go", ServiceName: "api", Text: "entry point"},
		{ID: "2", Filepath: "./api/app.yml", ServiceName: "api", Text: "config file"},
	})
	require.NoError(t, err)

	p, _ := newTestPipeline(t, t.TempDir(), &scriptedModel{}, store, nil, config.StageToggles{})
	svc := types.IdentifiedService{
		Name:      "api",
		SourceDir: "./api",
		Configs:   []string{"./api/app.yml", "./api/missing.yml"},
	}

	// Simulate a retrieval that missed the config file.
	docs := []vectorstore.Document{{ID: "1", Filepath: "./api/main.go", ServiceName: "api"}}
	docs, err = p.includeConfigs(context.Background(), svc, docs)
	require.NoError(t, err)

	require.Len(t, docs, 2)
	assert.Equal(t, "./api/app.yml", docs[1].Filepath)
}

func TestRetrieveBriefsCondensesLargeSets(t *testing.T) {
	store := newFakeStore()
	var docs []vectorstore.Document
	for i := 0; i < 45; i++ {
		docs = append(docs, vectorstore.Document{
			ID:          fmt.Sprintf("%02d", i),
			Filepath:    fmt.Sprintf("./api/file%02d.go", i),
			ServiceName: "api",
			Text:        "brief",
		})
	}
	_, err := store.AddData(context.Background(), docs)
	require.NoError(t, err)

	model := &scriptedModel{handle: func(conv *llm.Conversation, _ []llm.ToolSpec, forceTool string) (*llm.Reply, error) {
		require.Contains(t, conv.Turns[0].Text, "distill and condense")
		require.Equal(t, agent.TerminalToolName, forceTool)
		return toolResult(t, "condensed segment"), nil
	}}

	p, _ := newTestPipeline(t, t.TempDir(), model, store, nil, config.StageToggles{})
	briefs, err := p.retrieveBriefs(context.Background(), types.IdentifiedService{Name: "api", SourceDir: "./api"})
	require.NoError(t, err)

	// 45 briefs fold into three segment summaries.
	assert.Equal(t, 3, strings.Count(briefs, "condensed segment"))
	assert.Equal(t, 2, strings.Count(briefs, "\n"+ragSeparator+"\n"))
	assert.Equal(t, 3, model.calls)
}

func TestRetrieveBriefsFailsWithoutEmbeddings(t *testing.T) {
	p, _ := newTestPipeline(t, t.TempDir(), &scriptedModel{}, newFakeStore(), nil, config.StageToggles{})
	_, err := p.retrieveBriefs(context.Background(), types.IdentifiedService{Name: "ghost", SourceDir: "./ghost"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no embedded briefs")
}
