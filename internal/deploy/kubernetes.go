package deploy

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/archlens/archlens/internal/types"
)

// KubeMetadata carries the subset of a Kubernetes ObjectMeta the analysis
// cares about.
type KubeMetadata struct {
	ObjectName    string            `yaml:"name"`
	GeneratedName string            `yaml:"generateName"`
	Namespace     string            `yaml:"namespace"`
	Labels        map[string]string `yaml:"labels"`
}

// Name prefers the explicit object name over the generate-name prefix.
func (m KubeMetadata) Name() string {
	if m.ObjectName != "" {
		return m.ObjectName
	}
	return m.GeneratedName
}

// Matches reports whether name refers to this object by name, generated
// name, or any label value.
func (m KubeMetadata) Matches(name string) bool {
	if name == "" {
		return false
	}
	if m.ObjectName == name || m.GeneratedName == name {
		return true
	}
	for _, v := range m.Labels {
		if v == name {
			return true
		}
	}
	return false
}

// KubeContainer is one container in a pod spec.
type KubeContainer struct {
	Name        string
	Image       string
	Ports       []PortMapping
	Environment map[string]string
}

// KubePod is a Pod, or the pod template inside a Deployment.
type KubePod struct {
	Metadata   KubeMetadata
	Hostname   string
	Subdomain  string
	Containers []KubeContainer
}

// KubeDeployment is a Deployment resource.
type KubeDeployment struct {
	Metadata KubeMetadata
	Selector map[string]string
	Replicas int
	Template *KubePod
}

// KubeService is a Service resource with its ports already normalized to
// host/container pairs: port maps to targetPort, nodePort maps to port.
type KubeService struct {
	Metadata     KubeMetadata
	Selector     map[string]string
	Ports        []PortMapping
	Type         string
	ExternalName string
}

// KubernetesConfig is every recognized resource from one manifest file.
type KubernetesConfig struct {
	Path        string
	Pods        []KubePod
	Deployments []KubeDeployment
	Services    []KubeService
}

func (c *KubernetesConfig) ConfigPath() string                 { return c.Path }
func (c *KubernetesConfig) ConfigType() types.DeployConfigType { return types.DeployKubernetes }

type kubeDoc struct {
	Kind     string         `yaml:"kind"`
	Metadata KubeMetadata   `yaml:"metadata"`
	Spec     map[string]any `yaml:"spec"`
}

// ParseKubernetes reads a (possibly multi-document) manifest file and keeps
// the Pod, Deployment, and Service resources. Returns nil when the file
// declares none of them.
func ParseKubernetes(path string) (*KubernetesConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening manifest: %w", err)
	}
	defer f.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	cfg := &KubernetesConfig{Path: abs}

	dec := yaml.NewDecoder(f)
	for {
		var doc kubeDoc
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("decoding manifest %s: %w", path, err)
		}
		if doc.Spec == nil {
			continue
		}
		if doc.Metadata.Namespace == "" {
			doc.Metadata.Namespace = "default"
		}
		switch doc.Kind {
		case "Pod":
			cfg.Pods = append(cfg.Pods, buildPod(doc.Metadata, doc.Spec))
		case "Deployment":
			cfg.Deployments = append(cfg.Deployments, buildDeployment(doc.Metadata, doc.Spec))
		case "Service":
			cfg.Services = append(cfg.Services, buildService(doc.Metadata, doc.Spec))
		}
	}

	if len(cfg.Pods) == 0 && len(cfg.Deployments) == 0 && len(cfg.Services) == 0 {
		return nil, nil
	}
	return cfg, nil
}

func buildPod(meta KubeMetadata, spec map[string]any) KubePod {
	pod := KubePod{
		Metadata:  meta,
		Hostname:  stringField(spec, "hostname"),
		Subdomain: stringField(spec, "subdomain"),
	}
	containers, _ := spec["containers"].([]any)
	for _, c := range containers {
		attrs, ok := c.(map[string]any)
		if !ok {
			continue
		}
		pod.Containers = append(pod.Containers, buildContainer(attrs))
	}
	return pod
}

func buildContainer(attrs map[string]any) KubeContainer {
	ctr := KubeContainer{
		Name:  stringField(attrs, "name"),
		Image: stringField(attrs, "image"),
	}

	ports, _ := attrs["ports"].([]any)
	for _, p := range ports {
		pm, ok := p.(map[string]any)
		if !ok {
			continue
		}
		containerPort := intField(pm, "containerPort")
		if containerPort == 0 {
			continue
		}
		ctr.Ports = append(ctr.Ports, PortMapping{
			HostPort:      intField(pm, "hostPort"),
			ContainerPort: containerPort,
			Protocol:      stringField(pm, "protocol"),
		})
	}

	env, _ := attrs["env"].([]any)
	for _, e := range env {
		pair, ok := e.(map[string]any)
		if !ok {
			continue
		}
		name := stringField(pair, "name")
		if name == "" {
			continue
		}
		if ctr.Environment == nil {
			ctr.Environment = map[string]string{}
		}
		ctr.Environment[name] = stringField(pair, "value")
	}
	return ctr
}

func buildDeployment(meta KubeMetadata, spec map[string]any) KubeDeployment {
	dep := KubeDeployment{Metadata: meta, Replicas: 1}
	if n := intField(spec, "replicas"); n != 0 {
		dep.Replicas = n
	}
	if sel, ok := spec["selector"].(map[string]any); ok {
		dep.Selector = stringMap(sel)
	}
	if tpl, ok := spec["template"].(map[string]any); ok {
		podMeta := KubeMetadata{Namespace: "default"}
		if m, ok := tpl["metadata"].(map[string]any); ok {
			podMeta.ObjectName = stringField(m, "name")
			podMeta.GeneratedName = stringField(m, "generateName")
			if labels, ok := m["labels"].(map[string]any); ok {
				podMeta.Labels = stringMap(labels)
			}
		}
		if podSpec, ok := tpl["spec"].(map[string]any); ok {
			pod := buildPod(podMeta, podSpec)
			dep.Template = &pod
		}
	}
	return dep
}

func buildService(meta KubeMetadata, spec map[string]any) KubeService {
	svc := KubeService{
		Metadata: meta,
		Type:     stringField(spec, "type"),
	}
	if sel, ok := spec["selector"].(map[string]any); ok {
		svc.Selector = stringMap(sel)
	}

	if svc.Type == "ExternalName" {
		svc.ExternalName = stringField(spec, "externalName")
		return svc
	}

	ports, _ := spec["ports"].([]any)
	for _, p := range ports {
		pm, ok := p.(map[string]any)
		if !ok {
			continue
		}
		port := intField(pm, "port")
		targetPort := intField(pm, "targetPort")
		nodePort := intField(pm, "nodePort")
		protocol := stringField(pm, "protocol") + stringField(pm, "appProtocol")

		// port is what the cluster dials, targetPort what the container
		// listens on. With no targetPort the service port is the
		// container side and nodePort (if any) the host side.
		switch {
		case targetPort != 0:
			svc.Ports = append(svc.Ports, PortMapping{
				HostPort: port, ContainerPort: targetPort, Protocol: protocol})
		case port != 0:
			svc.Ports = append(svc.Ports, PortMapping{
				HostPort: nodePort, ContainerPort: port, Protocol: protocol})
		}
	}
	return svc
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// intField tolerates the int-or-string ambiguity of manifest port fields.
// Named targetPorts cannot be resolved without the pod spec and read as 0.
func intField(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

func stringMap(m map[string]any) map[string]string {
	out := map[string]string{}
	for k, v := range m {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
