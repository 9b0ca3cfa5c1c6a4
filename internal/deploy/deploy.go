package deploy

import (
	"log/slog"
	"os"

	"github.com/archlens/archlens/internal/fswalk"
	"github.com/archlens/archlens/internal/types"
)

// Config is a parsed deployment manifest of either flavor. OpenPorts and
// Images are the per-service views the analysis stages consume.
type Config interface {
	ConfigPath() string
	ConfigType() types.DeployConfigType
	OpenPorts(serviceName string) []string
	Images(serviceName string) []string
}

// ParseAll parses every referenced manifest under projectLoc. A reference
// pointing at a directory is expanded to its immediate files. Files that
// fail to parse are logged and skipped so one malformed manifest does not
// sink the whole batch; references of unknown type are ignored.
func ParseAll(projectLoc string, refs []types.DeployConfigRef) []Config {
	allUnknown := true
	for _, ref := range refs {
		if ref.Type != types.DeployUnknown {
			allUnknown = false
			break
		}
	}
	if len(refs) == 0 || allUnknown {
		slog.Warn("no supported deploy configs found",
			"supported", []types.DeployConfigType{types.DeployDockerCompose, types.DeployKubernetes})
		return nil
	}

	var parsed []Config
	for _, ref := range refs {
		if ref.Type == types.DeployUnknown {
			continue
		}
		abs := fswalk.AbsolutePath(projectLoc, ref.Path)

		var files []string
		if info, err := os.Stat(abs); err == nil && info.IsDir() {
			entries, err := os.ReadDir(abs)
			if err != nil {
				slog.Warn("listing deploy config dir failed", "path", abs, "error", err)
				continue
			}
			for _, e := range entries {
				if !e.IsDir() {
					files = append(files, fswalk.AbsolutePath(abs, e.Name()))
				}
			}
		} else {
			files = append(files, abs)
		}

		for _, file := range files {
			cfg, err := parseOne(ref.Type, projectLoc, file)
			if err != nil {
				slog.Warn("parsing deploy config failed", "path", file, "error", err)
				continue
			}
			if cfg != nil {
				parsed = append(parsed, cfg)
			}
		}
	}
	return parsed
}

func parseOne(t types.DeployConfigType, projectLoc, path string) (Config, error) {
	switch t {
	case types.DeployDockerCompose:
		slog.Info("parsing docker compose deploy file", "path", fswalk.RelativePath(projectLoc, path))
		cfg, err := ParseCompose(path)
		if err != nil {
			return nil, err
		}
		return cfg, nil
	case types.DeployKubernetes:
		slog.Info("parsing kubernetes deploy file", "path", fswalk.RelativePath(projectLoc, path))
		cfg, err := ParseKubernetes(path)
		if err != nil {
			return nil, err
		}
		if cfg == nil {
			return nil, nil
		}
		return cfg, nil
	}
	return nil, nil
}
