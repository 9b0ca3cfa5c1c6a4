package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archlens/archlens/internal/types"
)

func TestInterfacePropsPrebuilt(t *testing.T) {
	rec := &types.AnalysisRecord{
		ServiceName: "redis",
		IsPrebuilt:  true,
		Prebuilt: &types.PrebuiltAnalysis{ServiceAnalysis: types.ServiceAnalysis{
			Ports: []types.PortInfo{
				{Port: "6379", Protocol: "RESP"},
				{Port: "16379"},
			},
		}},
	}

	props := interfaceProps(rec)
	require.Len(t, props, 2)
	assert.Equal(t, map[string]any{"port": "6379", "protocol": "RESP"}, props[0])
	assert.Equal(t, map[string]any{"port": "16379"}, props[1])
}

func TestInterfacePropsMatchesPassiveInteraction(t *testing.T) {
	rec := &types.AnalysisRecord{
		ServiceName: "api",
		NonPrebuilt: &types.NonPrebuiltAnalysis{
			ServiceAnalysis: types.ServiceAnalysis{
				Ports: []types.PortInfo{{Port: "8080", Protocol: "TCP"}},
			},
			Interactions: []types.DataInteraction{
				{
					Type:            types.InteractionActive,
					InteractionType: "HTTP",
					Details:         map[string]any{"port": float64(8080), "host": "other"},
				},
				{
					Type:            types.InteractionPassive,
					InteractionType: "HTTP",
					Details:         map[string]any{"port": float64(8080), "url": "/v1", "empty": nil},
				},
			},
		},
	}

	props := interfaceProps(rec)
	require.Len(t, props, 1)
	// The passive interaction's type replaces the deploy-config protocol and
	// its details ride along, minus the port and null values.
	assert.Equal(t, map[string]any{"port": "8080", "protocol": "HTTP", "url": "/v1"}, props[0])
}

func TestInterfacePropsAdoptsPortlessInteraction(t *testing.T) {
	rec := &types.AnalysisRecord{
		ServiceName: "worker",
		NonPrebuilt: &types.NonPrebuiltAnalysis{
			ServiceAnalysis: types.ServiceAnalysis{
				Ports: []types.PortInfo{{Port: "9090"}},
			},
			Interactions: []types.DataInteraction{{
				Type:            types.InteractionPassive,
				InteractionType: "gRPC",
				Details:         map[string]any{"method": "Process"},
			}},
		},
	}

	props := interfaceProps(rec)
	require.Len(t, props, 1)
	assert.Equal(t, map[string]any{"port": "9090", "protocol": "gRPC", "method": "Process"}, props[0])
}

func TestInterfacePropsOneNodePerMatchingInteraction(t *testing.T) {
	rec := &types.AnalysisRecord{
		ServiceName: "api",
		NonPrebuilt: &types.NonPrebuiltAnalysis{
			ServiceAnalysis: types.ServiceAnalysis{
				Ports: []types.PortInfo{{Port: "8080", Protocol: "TCP"}},
			},
			Interactions: []types.DataInteraction{
				{
					Type:            types.InteractionPassive,
					InteractionType: "HTTP",
					Details:         map[string]any{"port": float64(8080), "url": "/orders"},
				},
				{
					Type:            types.InteractionPassive,
					InteractionType: "WebSocket",
					Details:         map[string]any{"port": float64(8080), "url": "/events"},
				},
			},
		},
	}

	props := interfaceProps(rec)
	require.Len(t, props, 2)
	assert.Equal(t, map[string]any{"port": "8080", "protocol": "HTTP", "url": "/orders"}, props[0])
	assert.Equal(t, map[string]any{"port": "8080", "protocol": "WebSocket", "url": "/events"}, props[1])
}

func TestInterfacePropsUnmatchedPortStaysBare(t *testing.T) {
	rec := &types.AnalysisRecord{
		ServiceName: "api",
		NonPrebuilt: &types.NonPrebuiltAnalysis{
			ServiceAnalysis: types.ServiceAnalysis{
				Ports: []types.PortInfo{{Port: "8443"}},
			},
			Interactions: []types.DataInteraction{{
				Type:    types.InteractionPassive,
				Details: map[string]any{"port": "8080"},
			}},
		},
	}

	props := interfaceProps(rec)
	require.Len(t, props, 1)
	assert.Equal(t, map[string]any{"port": "8443"}, props[0])
}
