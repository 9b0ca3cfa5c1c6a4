package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/archlens/archlens/internal/agent"
	"github.com/archlens/archlens/internal/fswalk"
	"github.com/archlens/archlens/internal/types"
)

// identifyServices runs the exploration agent over the project directory and
// then a second validation pass that corrects path mistakes against the real
// directory tree.
func (p *Pipeline) identifyServices(ctx context.Context) (*types.ValidatedResult, error) {
	var validated types.ValidatedResult
	if loadCached(p, stageIdentifyService, p.reuse.IdentifyServices, &validated) {
		if err := checkServices(&validated.ValidatedResult); err == nil {
			return &validated, nil
		}
	}

	dispatcher := agent.NewDispatcher(agent.ListDirectoryTool{}, agent.ReadFileTool{})
	raw, err := p.loop.Run(ctx, identifyServicePrompt(p.projectLoc), agent.LoopConfig{
		Name:       stageIdentifyService,
		Dispatcher: dispatcher,
	})
	if err != nil {
		return nil, err
	}

	tree, _, err := fswalk.TreeWithRoot(p.projectLoc, ".")
	if err != nil {
		return nil, fmt.Errorf("walking project directory: %w", err)
	}
	if _, err := p.extractor.Extract(ctx, validateServicesPrompt(tree, string(raw)), &validated); err != nil {
		return nil, err
	}

	if err := checkServices(&validated.ValidatedResult); err != nil {
		return nil, err
	}
	saveCached(p, stageIdentifyService, &validated)
	return &validated, nil
}

// checkServices enforces the record invariants before later stages depend
// on them.
func checkServices(result *types.IdentifyServiceResult) error {
	if len(result.Services) == 0 {
		return errors.New("no services identified")
	}
	var errs []error
	seen := make(map[string]bool, len(result.Services))
	for i := range result.Services {
		s := &result.Services[i]
		if err := s.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[s.Name] {
			errs = append(errs, fmt.Errorf("duplicate service name %q", s.Name))
		}
		seen[s.Name] = true
	}
	return errors.Join(errs...)
}
