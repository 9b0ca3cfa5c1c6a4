// Package pipeline orchestrates the discovery run: service identification,
// config-center processing, deploy-config parsing, code interpretation and
// embedding, data-interaction analysis, and the optional dependency graph.
// Stages run in order; each stage can be satisfied from the intermediate
// cache instead of re-running when the corresponding reuse toggle is set.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/archlens/archlens/internal/agent"
	"github.com/archlens/archlens/internal/cache"
	"github.com/archlens/archlens/internal/config"
	"github.com/archlens/archlens/internal/console"
	"github.com/archlens/archlens/internal/deploy"
	"github.com/archlens/archlens/internal/graphstore"
	"github.com/archlens/archlens/internal/runid"
	"github.com/archlens/archlens/internal/vectorstore"
)

// Stage names double as cache keys, so renaming one invalidates its cached
// intermediate results.
const (
	stageIdentifyService     = "identify_service"
	stageProcessConfigCenter = "process_config_center"
	stageParseDeployConfigs  = "parse_deploy_configs"
	stageFindInteractions    = "find_data_interactions"
)

// Options carries everything a Pipeline needs. Model, Store, Cache and
// Printer are required; Graph is nil when graph building is disabled.
type Options struct {
	Model   agent.ChatModel
	Store   vectorstore.Store
	Graph   graphstore.Graph
	Cache   *cache.Store
	Printer *console.Printer

	RunID            runid.ID
	ProjectLocation  string
	ConfigCenterName string
	ConfigCenterDir  string
	Concurrency      int
	Reuse            config.StageToggles
}

// Pipeline is one analysis run over one project. It is not safe for
// concurrent use; the stages share conversation and cache state.
type Pipeline struct {
	loop      *agent.Loop
	extractor *agent.Extractor

	store   vectorstore.Store
	graph   graphstore.Graph
	cache   *cache.Store
	printer *console.Printer

	runID            runid.ID
	projectLoc       string
	configCenterName string
	configCenterDir  string
	concurrency      int
	reuse            config.StageToggles
}

// New assembles a pipeline from its collaborators.
func New(opts Options) *Pipeline {
	return &Pipeline{
		loop:             agent.NewLoop(opts.Model),
		extractor:        agent.NewExtractor(opts.Model),
		store:            opts.Store,
		graph:            opts.Graph,
		cache:            opts.Cache,
		printer:          opts.Printer,
		runID:            opts.RunID,
		projectLoc:       opts.ProjectLocation,
		configCenterName: opts.ConfigCenterName,
		configCenterDir:  opts.ConfigCenterDir,
		concurrency:      opts.Concurrency,
		reuse:            opts.Reuse,
	}
}

// Run executes every stage in order. A stage error aborts the run; partial
// results stay in the cache so the next run can resume from them.
func (p *Pipeline) Run(ctx context.Context) error {
	p.printer.Stage("Identify services")
	validated, err := p.identifyServices(ctx)
	if err != nil {
		return fmt.Errorf("identifying services: %w", err)
	}
	result := &validated.ValidatedResult

	center := p.findConfigCenter(result)
	if center != "" {
		p.printer.Stage("Process config center")
		if err := p.processConfigCenter(ctx, result, center); err != nil {
			return fmt.Errorf("processing config center: %w", err)
		}
	}
	p.printer.Services(validated, center)

	p.printer.Stage("Parse deploy configs")
	deployConfigs, err := p.parseDeployConfigs(ctx, result.DeployConfigs)
	if err != nil {
		return fmt.Errorf("parsing deploy configs: %w", err)
	}
	p.printer.Info("Parsed %d deploy config file(s)", len(deployConfigs))

	p.printer.Stage("Interpret and embed codes")
	if err := p.embedServices(ctx, result, center); err != nil {
		return fmt.Errorf("embedding codes: %w", err)
	}

	p.printer.Stage("Find data interactions")
	records, err := p.findDataInteractions(ctx, result, deployConfigs)
	if err != nil {
		return fmt.Errorf("finding data interactions: %w", err)
	}
	for i := range records {
		p.printer.Analysis(&records[i])
	}

	if p.graph != nil {
		p.printer.Stage("Build dependency graph")
		if err := p.buildGraph(ctx, records); err != nil {
			return fmt.Errorf("building dependency graph: %w", err)
		}
	}
	return nil
}

// loadCached restores a stage result from the cache when the stage's reuse
// toggle allows it. A missing or undecodable entry falls through to a fresh
// run rather than failing.
func loadCached[T any](p *Pipeline, stage string, enabled bool, out *T) bool {
	if !enabled || p.cache == nil {
		return false
	}
	raw, err := p.cache.Load(stage, p.runID)
	if err != nil {
		slog.Debug("no cached result", "stage", stage, "err", err)
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		slog.Warn("discarding undecodable cached result", "stage", stage, "err", err)
		return false
	}
	p.printer.Info("Reusing cached result for %s", p.printer.Highlight(stage))
	return true
}

// saveCached persists a stage result. Cache failures are logged, never
// fatal: a run without a cache is still a correct run.
func saveCached(p *Pipeline, stage string, v any) {
	if p.cache == nil {
		return
	}
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		slog.Warn("cannot encode stage result for cache", "stage", stage, "err", err)
		return
	}
	if err := p.cache.Save(stage, p.runID, raw); err != nil {
		slog.Warn("cannot cache stage result", "stage", stage, "err", err)
	}
}

// openPortStrings renders the deploy-config port list shown to the model for
// one service.
func openPortStrings(configs []deploy.Config, serviceName string) []string {
	var ports []string
	for _, c := range configs {
		ports = append(ports, c.OpenPorts(serviceName)...)
	}
	return ports
}

// imageStrings collects the image references the deploy configs associate
// with one service.
func imageStrings(configs []deploy.Config, serviceName string) []string {
	var images []string
	for _, c := range configs {
		images = append(images, c.Images(serviceName)...)
	}
	return images
}
