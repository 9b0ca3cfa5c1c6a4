// Package types defines the shared data model for the discovery pipeline:
// identified services, deploy configuration references, config-center results,
// and per-service data-interaction analyses.
package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DeployConfigType classifies a deployment manifest.
type DeployConfigType string

const (
	DeployDockerCompose DeployConfigType = "docker"
	DeployKubernetes    DeployConfigType = "kubernetes"
	DeployUnknown       DeployConfigType = "unknown"
)

// IsValid checks if the deploy config type is one of the known values
func (t DeployConfigType) IsValid() bool {
	switch t {
	case DeployDockerCompose, DeployKubernetes, DeployUnknown:
		return true
	}
	return false
}

// UnmarshalJSON accepts any casing the model emits ("DOCKER", "Docker", ...)
// and maps unrecognized values to DeployUnknown rather than failing.
func (t *DeployConfigType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v := DeployConfigType(strings.ToLower(s))
	if !v.IsValid() {
		v = DeployUnknown
	}
	*t = v
	return nil
}

// DeployConfigRef is a deployment manifest as reported by the identification
// stage: a path (file or directory) plus the detected manifest type.
type DeployConfigRef struct {
	Path string           `json:"path"`
	Type DeployConfigType `json:"type"`
}

// IdentifiedService is one service instance discovered in the project.
type IdentifiedService struct {
	Name      string   `json:"name"`
	Prebuilt  bool     `json:"prebuilt"`
	Evidence  string   `json:"evidence"`
	SourceDir string   `json:"source_dir,omitempty"`
	Configs   []string `json:"configs,omitempty"`
}

// Validate checks the invariants a service record must satisfy before the
// later stages consume it.
func (s *IdentifiedService) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("service name is required")
	}
	if !s.Prebuilt && strings.TrimSpace(s.SourceDir) == "" {
		return fmt.Errorf("non-prebuilt service %q has no source_dir", s.Name)
	}
	return nil
}

// IdentifyServiceResult is the structured payload of the identification stage.
type IdentifyServiceResult struct {
	DeployConfigs []DeployConfigRef   `json:"deploy_config"`
	Services      []IdentifiedService `json:"services"`
}

// ServiceByName returns the service with the given name, or nil.
func (r *IdentifyServiceResult) ServiceByName(name string) *IdentifiedService {
	for i := range r.Services {
		if r.Services[i].Name == name {
			return &r.Services[i]
		}
	}
	return nil
}

// NonPrebuilt returns the services built from project source.
func (r *IdentifyServiceResult) NonPrebuilt() []IdentifiedService {
	var out []IdentifiedService
	for _, s := range r.Services {
		if !s.Prebuilt {
			out = append(out, s)
		}
	}
	return out
}

// ValidatedResult wraps an IdentifyServiceResult after the second-pass
// validation call, together with the model's description of what it changed.
type ValidatedResult struct {
	Modification    string                `json:"modification"`
	ValidatedResult IdentifyServiceResult `json:"validated_result"`
}

// ConfigStore says where a config center keeps its configuration data.
type ConfigStore string

const (
	StoreLocal  ConfigStore = "LOCAL"
	StoreRemote ConfigStore = "REMOTE"
)

// UnmarshalJSON normalizes casing; anything else is rejected.
func (c *ConfigStore) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch v := ConfigStore(strings.ToUpper(s)); v {
	case StoreLocal, StoreRemote:
		*c = v
		return nil
	}
	return fmt.Errorf("invalid config store %q (want LOCAL or REMOTE)", s)
}

// ProcessConfigCenterResult is the structured payload of the config-center
// stage: how configs are stored, the model's analysis, and the mapping from
// service name to the config files it consumes.
type ProcessConfigCenterResult struct {
	Store               ConfigStore         `json:"store"`
	Analysis            string              `json:"analysis"`
	ServicesWithConfigs map[string][]string `json:"services_with_configs,omitempty"`
}
