// Package graphstore persists the discovered dependency graph: one Project
// node per run, Service nodes attached to it, and the Interface nodes each
// service exposes.
package graphstore

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/config"
)

// <SCHEME>://<HOST>[:<PORT>[?policy=<POLICY-NAME>]]
var uriRe = regexp.MustCompile(`^((?:neo4j|bolt)(?:\+(?:s|ssc))?)://([a-zA-Z0-9.\-_]+|\[[0-9a-f:]+\])(?::(\d{1,5}))?(?:\?policy=(.*?))?$`)

// AuthType selects the neo4j authentication scheme.
type AuthType string

const (
	AuthBasic    AuthType = "basic"
	AuthKerberos AuthType = "kerberos"
	AuthBearer   AuthType = "bearer"
)

// Config is the neo4j connection config.
type Config struct {
	URI      string   `yaml:"uri"`
	AuthType AuthType `yaml:"auth_type"`
	Database string   `yaml:"database"`

	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	KerberosTicket string `yaml:"kerberos_ticket"`
	BearerToken    string `yaml:"bearer_token"`
}

// Validate checks the URI shape and that the selected auth scheme has its
// credentials.
func (c *Config) Validate() error {
	if !uriRe.MatchString(c.URI) {
		return fmt.Errorf("invalid neo4j uri %q", c.URI)
	}
	switch AuthType(strings.ToLower(string(c.AuthType))) {
	case AuthBasic:
		if c.Username == "" || c.Password == "" {
			return fmt.Errorf("basic auth requires username and password")
		}
	case AuthKerberos:
		if c.KerberosTicket == "" {
			return fmt.Errorf("kerberos auth requires a ticket")
		}
	case AuthBearer:
		if c.BearerToken == "" {
			return fmt.Errorf("bearer auth requires a token")
		}
	default:
		return fmt.Errorf("unsupported neo4j auth type %q", c.AuthType)
	}
	return nil
}

func (c *Config) token() neo4j.AuthToken {
	switch AuthType(strings.ToLower(string(c.AuthType))) {
	case AuthKerberos:
		return neo4j.KerberosAuth(c.KerberosTicket)
	case AuthBearer:
		return neo4j.BearerAuth(c.BearerToken)
	default:
		return neo4j.BasicAuth(c.Username, c.Password, "")
	}
}

// ServiceNode is one service in the graph.
type ServiceNode struct {
	Name        string
	Description string
	Type        string
}

// Graph is the dependency-graph sink the pipeline writes to.
type Graph interface {
	// InitCollection ensures the run's Project node exists.
	InitCollection(ctx context.Context) error

	// ResetCollection removes the run's Project node and everything
	// attached to it.
	ResetCollection(ctx context.Context) error

	// UpsertService attaches a Service node to the Project node.
	UpsertService(ctx context.Context, svc ServiceNode) error

	// UpsertInterface attaches an exposed Interface node to a service.
	// props must carry at least a "port" entry.
	UpsertInterface(ctx context.Context, serviceName string, props map[string]any) error

	Close(ctx context.Context) error
}

// Neo4jGraph is the neo4j implementation of Graph.
type Neo4jGraph struct {
	driver     neo4j.DriverWithContext
	database   string
	collection string
}

var _ Graph = (*Neo4jGraph)(nil)

// Connect dials neo4j, verifies connectivity, and scopes the graph to the
// given collection (the run's project identifier).
func Connect(ctx context.Context, cfg Config, collection string) (*Neo4jGraph, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, cfg.token(), func(c *config.Config) {
		c.SocketConnectTimeout = 5 * time.Second
		c.SocketKeepalive = true
	})
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("connecting to neo4j at %s: %w", cfg.URI, err)
	}

	database := cfg.Database
	if database == "" {
		database = "neo4j"
	}
	return &Neo4jGraph{driver: driver, database: database, collection: collection}, nil
}

func (g *Neo4jGraph) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}

func (g *Neo4jGraph) run(ctx context.Context, statement string, params map[string]any) ([]*neo4j.Record, error) {
	slog.Debug("cypher to execute", "statement", statement)
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: g.database})
	defer session.Close(ctx)

	result, err := session.Run(ctx, statement, params)
	if err != nil {
		return nil, fmt.Errorf("running cypher: %w", err)
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("collecting cypher results: %w", err)
	}
	return records, nil
}

func (g *Neo4jGraph) InitCollection(ctx context.Context) error {
	records, err := g.run(ctx,
		`MATCH (p:Project {identifier: $identifier}) RETURN p`,
		map[string]any{"identifier": g.collection})
	if err != nil {
		return err
	}
	if len(records) == 0 {
		slog.Info("project node not found, creating one", "identifier", g.collection)
		_, err = g.run(ctx,
			`CREATE (p:Project {identifier: $identifier})`,
			map[string]any{"identifier": g.collection})
		return err
	}
	slog.Info("project node already exists, using existing one", "identifier", g.collection)
	return nil
}

func (g *Neo4jGraph) ResetCollection(ctx context.Context) error {
	params := map[string]any{"identifier": g.collection}

	statements := []string{
		// Interfaces hanging off this project's services go first.
		`MATCH (s:Service)-[:BELONGS_TO]->(:Project {identifier: $identifier}),
		       (s)-[r:EXPOSES]->(i:Interface)
		 DELETE r, i`,
		`MATCH (s:Service)-[r:BELONGS_TO]->(:Project {identifier: $identifier})
		 DELETE s, r`,
		`MATCH (p:Project {identifier: $identifier}) DELETE p`,
	}
	for _, stmt := range statements {
		if _, err := g.run(ctx, stmt, params); err != nil {
			return err
		}
	}
	slog.Info("project graph reset", "identifier", g.collection)
	return nil
}

func (g *Neo4jGraph) UpsertService(ctx context.Context, svc ServiceNode) error {
	_, err := g.run(ctx,
		`MATCH (p:Project {identifier: $identifier})
		 MERGE (s:Service {name: $name})-[:BELONGS_TO]->(p)
		 SET s.description = $description, s.type = $type`,
		map[string]any{
			"identifier":  g.collection,
			"name":        svc.Name,
			"description": svc.Description,
			"type":        svc.Type,
		})
	return err
}

func (g *Neo4jGraph) UpsertInterface(ctx context.Context, serviceName string, props map[string]any) error {
	if _, ok := props["port"]; !ok {
		return fmt.Errorf("interface for %s has no port", serviceName)
	}
	_, err := g.run(ctx,
		`MATCH (s:Service {name: $service})-[:BELONGS_TO]->(:Project {identifier: $identifier})
		 CREATE (i:Interface $props)<-[:EXPOSES]-(s)`,
		map[string]any{
			"identifier": g.collection,
			"service":    serviceName,
			"props":      props,
		})
	return err
}
