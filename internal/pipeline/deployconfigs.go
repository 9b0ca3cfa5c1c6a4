package pipeline

import (
	"context"

	"github.com/archlens/archlens/internal/deploy"
	"github.com/archlens/archlens/internal/types"
)

// deployConfigList is the cache envelope for parsed deploy configs. The two
// concrete flavors are kept apart so the entry round-trips without type
// inference.
type deployConfigList struct {
	Compose    []*deploy.ComposeConfig    `json:"compose,omitempty"`
	Kubernetes []*deploy.KubernetesConfig `json:"kubernetes,omitempty"`
}

func (l *deployConfigList) configs() []deploy.Config {
	out := make([]deploy.Config, 0, len(l.Compose)+len(l.Kubernetes))
	for _, c := range l.Compose {
		out = append(out, c)
	}
	for _, c := range l.Kubernetes {
		out = append(out, c)
	}
	return out
}

// parseDeployConfigs parses every manifest the identification stage found.
// This stage is deterministic, but parsing walks build contexts and env
// files, so its result is cached like the model-driven ones.
func (p *Pipeline) parseDeployConfigs(ctx context.Context, refs []types.DeployConfigRef) ([]deploy.Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var list deployConfigList
	if loadCached(p, stageParseDeployConfigs, p.reuse.ParseDeployConfigs, &list) {
		return list.configs(), nil
	}

	for _, cfg := range deploy.ParseAll(p.projectLoc, refs) {
		switch c := cfg.(type) {
		case *deploy.ComposeConfig:
			list.Compose = append(list.Compose, c)
		case *deploy.KubernetesConfig:
			list.Kubernetes = append(list.Kubernetes, c)
		}
	}
	saveCached(p, stageParseDeployConfigs, &list)
	return list.configs(), nil
}
