package deploy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/archlens/archlens/internal/fswalk"
	"github.com/archlens/archlens/internal/types"
)

// BuildSpec points at the build context of a compose service.
type BuildSpec struct {
	Context    string
	Dockerfile string
}

// ComposeDeployment is one normalized service entry from a compose file.
type ComposeDeployment struct {
	Name        string
	ConfigDir   string
	Aliases     []string
	Build       *BuildSpec
	Environment map[string]string
	ExtraHosts  map[string]string
	Image       []string
	Networks    []string
	Ports       []PortMapping
	DependsOn   []string
}

// ComposeConfig is a parsed docker-compose file. Only the services and
// networks sections are consulted, everything else in the file is ignored.
type ComposeConfig struct {
	Path         string
	Deployments  []ComposeDeployment
	NetworkNames []string
}

func (c *ComposeConfig) ConfigPath() string                 { return c.Path }
func (c *ComposeConfig) ConfigType() types.DeployConfigType { return types.DeployDockerCompose }

// DeploymentFor returns the service entry whose name, alias, or container
// name matches name.
func (c *ComposeConfig) DeploymentFor(name string) *ComposeDeployment {
	for i := range c.Deployments {
		d := &c.Deployments[i]
		if d.Name == name {
			return d
		}
		for _, a := range d.Aliases {
			if a == name {
				return d
			}
		}
	}
	return nil
}

type composeService struct {
	Build       any    `yaml:"build"`
	Image       any    `yaml:"image"`
	Hostname    string `yaml:"hostname"`
	Environment any    `yaml:"environment"`
	EnvFile     any    `yaml:"env_file"`
	Expose      []any  `yaml:"expose"`
	Ports       []any  `yaml:"ports"`
	ExtraHosts  []any  `yaml:"extra_hosts"`
	Networks    any    `yaml:"networks"`
	DependsOn   any    `yaml:"depends_on"`
}

type composeFile struct {
	Services map[string]composeService `yaml:"services"`
	Networks map[string]any            `yaml:"networks"`
}

// ParseCompose reads and normalizes one docker-compose file, then enriches
// each service that declares a build section with its Dockerfile contents.
func ParseCompose(path string) (*ComposeConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading compose file: %w", err)
	}
	var file composeFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decoding compose file %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	cfg := &ComposeConfig{Path: abs}
	for name := range file.Networks {
		cfg.NetworkNames = append(cfg.NetworkNames, name)
	}

	configDir := filepath.Dir(abs)
	for name, svc := range file.Services {
		d, err := normalizeService(name, configDir, svc)
		if err != nil {
			return nil, fmt.Errorf("service %s: %w", name, err)
		}
		if err := d.loadBuildContext(); err != nil {
			return nil, fmt.Errorf("service %s build context: %w", name, err)
		}
		cfg.Deployments = append(cfg.Deployments, *d)
	}
	return cfg, nil
}

func normalizeService(name, configDir string, svc composeService) (*ComposeDeployment, error) {
	d := &ComposeDeployment{Name: name, ConfigDir: configDir}

	env, err := mergeEnvironment(configDir, svc.Environment, svc.EnvFile)
	if err != nil {
		return nil, err
	}
	d.Environment = env

	ports, err := mergePorts(svc.Ports, svc.Expose)
	if err != nil {
		return nil, err
	}
	d.Ports = ports

	d.ExtraHosts = parseExtraHosts(svc.ExtraHosts)
	d.Aliases, d.Networks = networksAndAliases(svc.Networks, svc.Hostname)
	d.DependsOn = parseDependsOn(svc.DependsOn)
	d.Build = parseBuild(svc.Build)
	d.Image = stringOrList(svc.Image)
	return d, nil
}

// mergeEnvironment flattens the environment and env_file sections into one
// map. Explicit environment entries win over env files; among several env
// files, earlier files win.
func mergeEnvironment(configDir string, environment, envFile any) (map[string]string, error) {
	explicit := map[string]string{}
	switch v := environment.(type) {
	case []any:
		var lines []string
		for _, e := range v {
			lines = append(lines, fmt.Sprint(e))
		}
		parsed, err := godotenv.Unmarshal(strings.Join(lines, "\n"))
		if err != nil {
			return nil, fmt.Errorf("parsing environment list: %w", err)
		}
		explicit = parsed
	case map[string]any:
		for k, val := range v {
			if val == nil {
				explicit[k] = ""
				continue
			}
			explicit[k] = fmt.Sprint(val)
		}
	}

	var files []string
	switch v := envFile.(type) {
	case string:
		files = append(files, fswalk.AbsolutePath(configDir, v))
	case []any:
		for _, e := range v {
			switch f := e.(type) {
			case string:
				files = append(files, fswalk.AbsolutePath(configDir, f))
			case map[string]any:
				p, ok := f["path"].(string)
				if !ok {
					return nil, fmt.Errorf("env_file entry missing path")
				}
				files = append(files, fswalk.AbsolutePath(configDir, p))
			}
		}
	}

	merged := map[string]string{}
	for k, val := range explicit {
		merged[k] = val
	}
	for _, f := range files {
		fromFile, err := godotenv.Read(f)
		if err != nil {
			return nil, fmt.Errorf("reading env file %s: %w", f, err)
		}
		for k, val := range fromFile {
			if _, exists := merged[k]; !exists {
				merged[k] = val
			}
		}
	}
	if len(merged) == 0 {
		return nil, nil
	}
	return merged, nil
}

// mergePorts expands the ports entries and folds expose entries in as
// host-less mappings.
func mergePorts(ports, expose []any) ([]PortMapping, error) {
	var out []PortMapping
	for _, p := range ports {
		expanded, err := ParsePortMapping(fmt.Sprint(p))
		if err != nil {
			return nil, err
		}
		out = append(out, expanded...)
	}
	for _, e := range expose {
		expanded, err := ParseExpose(fmt.Sprint(e))
		if err != nil {
			return nil, err
		}
		out = append(out, expanded...)
	}
	return out, nil
}

func parseExtraHosts(entries []any) map[string]string {
	hosts := map[string]string{}
	for _, e := range entries {
		s, ok := e.(string)
		if !ok {
			continue
		}
		if m := hostsRe.FindStringSubmatch(s); m != nil {
			hosts[m[1]] = m[2]
		}
	}
	if len(hosts) == 0 {
		return nil
	}
	return hosts
}

// networksAndAliases collects the service's network names and every name it
// answers to on those networks. The hostname counts as an alias.
func networksAndAliases(networks any, hostname string) (aliases, names []string) {
	if hostname != "" {
		aliases = append(aliases, hostname)
	}
	switch v := networks.(type) {
	case []any:
		for _, n := range v {
			if s, ok := n.(string); ok {
				names = append(names, s)
			}
		}
	case map[string]any:
		for network, data := range v {
			names = append(names, network)
			attrs, ok := data.(map[string]any)
			if !ok {
				continue
			}
			list, ok := attrs["aliases"].([]any)
			if !ok {
				continue
			}
			for _, a := range list {
				if s, ok := a.(string); ok {
					aliases = append(aliases, s)
				}
			}
		}
	}
	return aliases, names
}

func parseDependsOn(v any) []string {
	switch deps := v.(type) {
	case []any:
		var out []string
		for _, d := range deps {
			if s, ok := d.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case map[string]any:
		var out []string
		for name := range deps {
			out = append(out, name)
		}
		return out
	}
	return nil
}

func parseBuild(v any) *BuildSpec {
	switch b := v.(type) {
	case string:
		if b == "" {
			return nil
		}
		return &BuildSpec{Context: b}
	case map[string]any:
		ctx, _ := b["context"].(string)
		if ctx == "" {
			return nil
		}
		df, _ := b["dockerfile"].(string)
		return &BuildSpec{Context: ctx, Dockerfile: df}
	}
	return nil
}

func stringOrList(v any) []string {
	switch s := v.(type) {
	case string:
		if s == "" {
			return nil
		}
		return []string{s}
	case []any:
		var out []string
		for _, e := range s {
			if str, ok := e.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}
