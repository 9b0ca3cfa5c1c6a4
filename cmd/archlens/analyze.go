package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/archlens/archlens/internal/cache"
	"github.com/archlens/archlens/internal/config"
	"github.com/archlens/archlens/internal/console"
	"github.com/archlens/archlens/internal/graphstore"
	"github.com/archlens/archlens/internal/llm"
	"github.com/archlens/archlens/internal/pipeline"
	"github.com/archlens/archlens/internal/runid"
	"github.com/archlens/archlens/internal/vectorstore"
)

// defaultCacheDir holds intermediate results when the config names none.
const defaultCacheDir = ".archlens_cache"

var runIDFlag string

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the discovery pipeline over the configured project",
	Long: `Run every discovery stage over the project named in the configuration:
service identification, config-center processing, deploy-config parsing,
code interpretation and embedding, data-interaction analysis, and the
optional dependency graph.

Pass --run-id to resume an earlier run: stages whose reuse toggle is set
in the configuration are then served from the intermediate cache.`,
	Args: cobra.NoArgs,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&runIDFlag, "run-id", "", "resume an earlier run by its id")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Debug {
		debugFlag = true
		rootCmd.PersistentPreRun(cmd, args)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	id := runid.New()
	if runIDFlag != "" {
		if id, err = runid.Parse(runIDFlag); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	model, err := llm.New(cfg.LLMConfig())
	if err != nil {
		return err
	}

	embedder, err := vectorstore.NewOpenAIEmbedder(cfg.OpenAIEmbedding)
	if err != nil {
		return err
	}
	store, err := vectorstore.NewWeaviate(ctx, cfg.VectorDB, id.VectorCollection(), embedder)
	if err != nil {
		return fmt.Errorf("connecting to vector store: %w", err)
	}

	var graph graphstore.Graph
	graphURI := "-"
	if cfg.BuildGraph {
		g, err := graphstore.Connect(ctx, cfg.Neo4j, id.GraphCollection())
		if err != nil {
			return fmt.Errorf("connecting to neo4j: %w", err)
		}
		defer g.Close(ctx)
		graph = g
		graphURI = cfg.Neo4j.URI
	}

	cacheDir := cfg.Cache.Dir
	if cacheDir == "" {
		cacheDir = defaultCacheDir
	}

	chatModel := cfg.ChatModel.Model
	if chatModel == "" {
		chatModel = llm.DefaultModel
	}
	embdModel := cfg.OpenAIEmbedding.Model
	if embdModel == "" {
		embdModel = vectorstore.DefaultEmbeddingModel
	}

	printer := console.New()
	printer.Banner()
	printer.RunInfo(id.String(), cfg.ProjectLocation, chatModel, embdModel, cfg.VectorDB.Host, graphURI)

	p := pipeline.New(pipeline.Options{
		Model:            model,
		Store:            store,
		Graph:            graph,
		Cache:            cache.New(cacheDir),
		Printer:          printer,
		RunID:            id,
		ProjectLocation:  cfg.ProjectLocation,
		ConfigCenterName: cfg.ConfigCenterName,
		ConfigCenterDir:  cfg.ConfigCenterDir,
		Concurrency:      cfg.Concurrency,
		Reuse:            cfg.Cache.UseIntermediateResult,
	})
	if err := p.Run(ctx); err != nil {
		return err
	}

	printer.Info("Analysis complete. Resume this run with --run-id %s", printer.Highlight(id.String()))
	return nil
}
