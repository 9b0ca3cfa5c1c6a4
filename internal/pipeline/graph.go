package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/archlens/archlens/internal/graphstore"
	"github.com/archlens/archlens/internal/types"
)

// buildGraph materializes the analysis records as a dependency graph: one
// Service node per record, one Interface node per exposed port. The run's
// collection is rebuilt from scratch every time.
func (p *Pipeline) buildGraph(ctx context.Context, records []types.AnalysisRecord) error {
	if err := p.graph.ResetCollection(ctx); err != nil {
		return fmt.Errorf("resetting collection: %w", err)
	}
	if err := p.graph.InitCollection(ctx); err != nil {
		return fmt.Errorf("initializing collection: %w", err)
	}

	for i := range records {
		rec := &records[i]
		base := rec.Base()
		if base == nil {
			continue
		}
		if err := p.graph.UpsertService(ctx, graphstore.ServiceNode{
			Name:        rec.ServiceName,
			Description: base.Analysis,
			Type:        base.Type,
		}); err != nil {
			return fmt.Errorf("service %s: %w", rec.ServiceName, err)
		}

		for _, props := range interfaceProps(rec) {
			if err := p.graph.UpsertInterface(ctx, rec.ServiceName, props); err != nil {
				return fmt.Errorf("service %s: %w", rec.ServiceName, err)
			}
		}
		slog.Info("graphed service", "service", rec.ServiceName)
	}
	return nil
}

// interfaceProps derives the Interface node properties for each open port.
// Non-prebuilt ports are enriched with the details of the passive
// interactions behind them: interactions with a matching port, or ones with
// no port at all, which are taken to describe this port. Each matching
// interaction becomes its own Interface node; a port without any match
// stays a bare node.
func interfaceProps(rec *types.AnalysisRecord) []map[string]any {
	base := rec.Base()
	var out []map[string]any

	if rec.IsPrebuilt {
		for _, port := range base.Ports {
			props := map[string]any{"port": port.Port.String()}
			if port.Protocol != "" {
				props["protocol"] = port.Protocol
			}
			out = append(out, props)
		}
		return out
	}

	var passive []types.DataInteraction
	if rec.NonPrebuilt != nil {
		for _, it := range rec.NonPrebuilt.Interactions {
			if it.Type == types.InteractionPassive {
				passive = append(passive, it)
			}
		}
	}

	for _, port := range base.Ports {
		matched := false
		for i := range passive {
			if p := passive[i].Port(); p != port.Port.String() && p != "" {
				continue
			}
			matched = true

			props := map[string]any{"port": port.Port.String()}
			if port.Protocol != "" {
				props["protocol"] = port.Protocol
			}
			if passive[i].InteractionType != "" {
				props["protocol"] = passive[i].InteractionType
			}
			for k, v := range passive[i].Details {
				if k == "port" || v == nil {
					continue
				}
				props[k] = v
			}
			out = append(out, props)
		}

		if !matched {
			props := map[string]any{"port": port.Port.String()}
			if port.Protocol != "" {
				props["protocol"] = port.Protocol
			}
			out = append(out, props)
		}
	}
	return out
}
