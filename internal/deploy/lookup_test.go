package deploy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComposeOpenPortsAndImages(t *testing.T) {
	cfg := &ComposeConfig{
		Deployments: []ComposeDeployment{
			{
				Name:    "cache",
				Aliases: []string{"redis"},
				Image:   []string{"redis:7"},
				Ports: []PortMapping{
					{HostPort: 6379, ContainerPort: 6379},
					{ContainerPort: 16379, Protocol: "TCP"},
				},
			},
		},
	}

	assert.Equal(t, []string{"6379:6379", "16379/TCP"}, cfg.OpenPorts("cache"))
	assert.Equal(t, []string{"redis:7"}, cfg.Images("cache"))
	assert.Equal(t, []string{"redis:7"}, cfg.Images("redis"), "aliases resolve too")

	assert.Nil(t, cfg.OpenPorts("unknown"))
	assert.Nil(t, cfg.Images("unknown"))
}

func TestKubernetesOpenPortsPrefersServiceResources(t *testing.T) {
	cfg := &KubernetesConfig{
		Services: []KubeService{
			{
				Metadata: KubeMetadata{Labels: map[string]string{"app": "orders"}},
				Ports:    []PortMapping{{HostPort: 30080, ContainerPort: 8080}},
			},
		},
		Deployments: []KubeDeployment{
			{
				Metadata: KubeMetadata{ObjectName: "orders"},
				Template: &KubePod{Containers: []KubeContainer{
					{Name: "orders", Image: "orders:latest", Ports: []PortMapping{{ContainerPort: 9090}}},
				}},
			},
		},
	}

	assert.Equal(t, []string{"30080:8080"}, cfg.OpenPorts("orders"))
	assert.Equal(t, []string{"orders:latest"}, cfg.Images("orders"))
}

func TestKubernetesOpenPortsFallsBackToContainers(t *testing.T) {
	cfg := &KubernetesConfig{
		Pods: []KubePod{
			{
				Metadata: KubeMetadata{ObjectName: "worker-pod"},
				Containers: []KubeContainer{
					{Name: "worker", Ports: []PortMapping{{ContainerPort: 7070}}},
				},
			},
		},
	}

	// Pod metadata does not match, container name does.
	assert.Equal(t, []string{"7070"}, cfg.OpenPorts("worker"))
	assert.Empty(t, cfg.OpenPorts("nothing"))
}
