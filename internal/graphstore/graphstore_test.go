package graphstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name: "basic ok",
			cfg:  Config{URI: "bolt://localhost:7687", AuthType: AuthBasic, Username: "neo4j", Password: "pw"},
		},
		{
			name: "neo4j scheme with policy",
			cfg:  Config{URI: "neo4j+s://db.example.com?policy=eu", AuthType: AuthBearer, BearerToken: "tok"},
		},
		{
			name: "auth type casing is tolerated",
			cfg:  Config{URI: "bolt://localhost", AuthType: "BASIC", Username: "u", Password: "p"},
		},
		{
			name:    "bad scheme",
			cfg:     Config{URI: "http://localhost:7687", AuthType: AuthBasic, Username: "u", Password: "p"},
			wantErr: "invalid neo4j uri",
		},
		{
			name:    "basic without password",
			cfg:     Config{URI: "bolt://localhost", AuthType: AuthBasic, Username: "u"},
			wantErr: "requires username and password",
		},
		{
			name:    "kerberos without ticket",
			cfg:     Config{URI: "bolt://localhost", AuthType: AuthKerberos},
			wantErr: "requires a ticket",
		},
		{
			name:    "unknown auth",
			cfg:     Config{URI: "bolt://localhost", AuthType: "certificate"},
			wantErr: "unsupported neo4j auth type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
