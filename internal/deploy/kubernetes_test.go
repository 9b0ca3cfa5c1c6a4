package deploy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archlens/archlens/internal/types"
)

const sampleManifest = `
apiVersion: v1
kind: Service
metadata:
  name: cart-svc
spec:
  selector:
    app: cart
  ports:
    - port: 8080
      targetPort: 7070
      protocol: TCP
      appProtocol: grpc
    - port: 9090
      nodePort: 30090
---
apiVersion: apps/v1
kind: Deployment
metadata:
  name: cart
spec:
  replicas: 2
  template:
    metadata:
      labels:
        app: cart
    spec:
      containers:
        - name: server
          image: cartservice:v1
          ports:
            - containerPort: 7070
          env:
            - name: REDIS_ADDR
              value: "redis-cart:6379"
---
apiVersion: v1
kind: ConfigMap
metadata:
  name: ignored
data:
  k: v
---
apiVersion: v1
kind: Service
metadata:
  generateName: ext-
spec:
  type: ExternalName
  externalName: payments.example.com
`

func TestParseKubernetes(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cart.yaml", sampleManifest)

	cfg, err := ParseKubernetes(path)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, types.DeployKubernetes, cfg.ConfigType())

	require.Len(t, cfg.Services, 2)
	svc := cfg.Services[0]
	assert.Equal(t, "cart-svc", svc.Metadata.Name())
	assert.Equal(t, "default", svc.Metadata.Namespace)
	assert.Equal(t, map[string]string{"app": "cart"}, svc.Selector)
	assert.Equal(t, []PortMapping{
		{HostPort: 8080, ContainerPort: 7070, Protocol: "TCPgrpc"},
		{HostPort: 30090, ContainerPort: 9090},
	}, svc.Ports)

	ext := cfg.Services[1]
	assert.Equal(t, "ext-", ext.Metadata.Name())
	assert.Equal(t, "ExternalName", ext.Type)
	assert.Equal(t, "payments.example.com", ext.ExternalName)
	assert.Nil(t, ext.Ports)

	require.Len(t, cfg.Deployments, 1)
	dep := cfg.Deployments[0]
	assert.Equal(t, "cart", dep.Metadata.Name())
	assert.Equal(t, 2, dep.Replicas)
	require.NotNil(t, dep.Template)
	require.Len(t, dep.Template.Containers, 1)
	ctr := dep.Template.Containers[0]
	assert.Equal(t, "cartservice:v1", ctr.Image)
	assert.Equal(t, []PortMapping{{ContainerPort: 7070}}, ctr.Ports)
	assert.Equal(t, map[string]string{"REDIS_ADDR": "redis-cart:6379"}, ctr.Environment)

	// the pod template's labels make the deployment findable by app name.
	assert.True(t, dep.Template.Metadata.Matches("cart"))
	assert.False(t, dep.Template.Metadata.Matches("checkout"))
}

func TestParseKubernetesNoRecognizedKinds(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cm.yaml", `
kind: ConfigMap
metadata:
  name: only-config
data:
  k: v
`)
	cfg, err := ParseKubernetes(path)
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestKubeMetadataName(t *testing.T) {
	m := KubeMetadata{GeneratedName: "gen-"}
	assert.Equal(t, "gen-", m.Name())
	m.ObjectName = "explicit"
	assert.Equal(t, "explicit", m.Name())
	assert.True(t, m.Matches("gen-"))
	assert.False(t, m.Matches(""))
}
