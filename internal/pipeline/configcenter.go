package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/archlens/archlens/internal/agent"
	"github.com/archlens/archlens/internal/fswalk"
	"github.com/archlens/archlens/internal/types"
)

// findConfigCenter resolves the designated config center against the
// identified services, by instance name or by source directory.
func (p *Pipeline) findConfigCenter(result *types.IdentifyServiceResult) string {
	if p.configCenterName == "" && p.configCenterDir == "" {
		return ""
	}
	for i := range result.Services {
		s := &result.Services[i]
		if s.Name == p.configCenterName {
			return s.Name
		}
		if p.configCenterDir != "" && s.SourceDir == p.configCenterDir {
			return s.Name
		}
	}
	slog.Warn("config center not among identified services, skipping",
		"name", p.configCenterName, "dir", p.configCenterDir)
	return ""
}

// processConfigCenter analyzes the config-center source directory and, for a
// locally stored center, folds the per-service config files it finds back
// into the identified services.
func (p *Pipeline) processConfigCenter(ctx context.Context, result *types.IdentifyServiceResult, centerName string) error {
	center := result.ServiceByName(centerName)

	sourceDir := p.configCenterDir
	if sourceDir == "" {
		sourceDir = center.SourceDir
	}
	if sourceDir == "" {
		return fmt.Errorf("config center %q has no source directory", centerName)
	}
	absDir := fswalk.AbsolutePath(p.projectLoc, sourceDir)
	if info, err := os.Stat(absDir); err != nil || !info.IsDir() {
		return fmt.Errorf("config center directory %q not found", sourceDir)
	}

	var r types.ProcessConfigCenterResult
	if !loadCached(p, stageProcessConfigCenter, p.reuse.ProcessConfigCenter, &r) {
		tree, _, err := fswalk.TreeWithRoot(absDir, sourceDir)
		if err != nil {
			return fmt.Errorf("walking config center directory: %w", err)
		}

		conv := processConfigCenterPrompt(tree, formatServices(result.Services, centerName))
		dispatcher := agent.NewDispatcher(agent.ListDirectoryTool{}, agent.ReadFileTool{})
		if err := p.loop.RunInto(ctx, conv, agent.LoopConfig{
			Name:       stageProcessConfigCenter,
			Dispatcher: dispatcher,
		}, &r); err != nil {
			return err
		}
		saveCached(p, stageProcessConfigCenter, &r)
	}

	p.printer.Info("Config center stores its configuration data %s", p.printer.Highlight(string(r.Store)))
	if r.Store == types.StoreRemote {
		slog.Info("config center stores configs remotely, nothing to merge")
		return nil
	}

	mergeCenterConfigs(result, r.ServicesWithConfigs, p.projectLoc, absDir)
	return nil
}

// mergeCenterConfigs appends the config-center files to each matching
// service. Paths come back relative to the center's source directory and are
// rewritten to be relative to the project root.
func mergeCenterConfigs(result *types.IdentifyServiceResult, byService map[string][]string, projectLoc, centerDir string) {
	for name, configs := range byService {
		svc := result.ServiceByName(name)
		if svc == nil {
			slog.Warn("config center references unknown service", "name", name)
			continue
		}
		for _, cfg := range configs {
			rewritten := fswalk.RelativePath(projectLoc, fswalk.AbsolutePath(centerDir, cfg))
			if !slices.Contains(svc.Configs, rewritten) {
				svc.Configs = append(svc.Configs, rewritten)
			}
		}
	}
}
