package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/archlens/archlens/internal/agent"
	"github.com/archlens/archlens/internal/deploy"
	"github.com/archlens/archlens/internal/runner"
	"github.com/archlens/archlens/internal/types"
	"github.com/archlens/archlens/internal/vectorstore"
)

// ragSegmentSize caps how many file briefs go into one summarization call
// when the retrieved context is too large to hand to the model at once.
const ragSegmentSize = 20

const ragSeparator = "----------------"

// findDataInteractions analyzes every service: prebuilt services by image
// and port lookup, non-prebuilt services by RAG over the embedded file
// briefs plus a validation pass that normalizes hosts and ports.
func (p *Pipeline) findDataInteractions(ctx context.Context, result *types.IdentifyServiceResult, configs []deploy.Config) ([]types.AnalysisRecord, error) {
	var records []types.AnalysisRecord
	if loadCached(p, stageFindInteractions, p.reuse.FindDataInteractions, &records) {
		if err := checkRecords(records); err == nil {
			return records, nil
		}
		records = nil
	}

	records, err := runner.MapOrdered(ctx, result.Services, p.concurrency, func(ctx context.Context, svc types.IdentifiedService) (types.AnalysisRecord, bool, error) {
		rec, err := p.analyzeService(ctx, svc, configs)
		if err != nil {
			return types.AnalysisRecord{}, false, fmt.Errorf("service %s: %w", svc.Name, err)
		}
		return rec, true, nil
	})
	if err != nil {
		return nil, err
	}
	if err := checkRecords(records); err != nil {
		return nil, err
	}

	saveCached(p, stageFindInteractions, records)
	return records, nil
}

func checkRecords(records []types.AnalysisRecord) error {
	for i := range records {
		if err := records[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) analyzeService(ctx context.Context, svc types.IdentifiedService, configs []deploy.Config) (types.AnalysisRecord, error) {
	ports := openPortStrings(configs, svc.Name)
	if svc.Prebuilt {
		return p.analyzePrebuilt(ctx, svc, imageStrings(configs, svc.Name), ports)
	}
	return p.analyzeNonPrebuilt(ctx, svc, ports)
}

// analyzePrebuilt classifies a third-party image by name and deploy-config
// ports alone; no source exists to retrieve.
func (p *Pipeline) analyzePrebuilt(ctx context.Context, svc types.IdentifiedService, images, ports []string) (types.AnalysisRecord, error) {
	slog.Info("analyzing prebuilt service", "service", svc.Name, "images", images)

	var analysis types.PrebuiltAnalysis
	if _, err := p.extractor.Extract(ctx, analyzePrebuiltPrompt(images, ports), &analysis); err != nil {
		return types.AnalysisRecord{}, err
	}
	analysis.ServiceName = svc.Name

	return types.AnalysisRecord{
		ServiceName: svc.Name,
		IsPrebuilt:  true,
		Prebuilt:    &analysis,
	}, nil
}

// analyzeNonPrebuilt retrieves the service's file briefs, asks for the full
// interaction analysis, then runs the normalization pass over the answer.
func (p *Pipeline) analyzeNonPrebuilt(ctx context.Context, svc types.IdentifiedService, ports []string) (types.AnalysisRecord, error) {
	slog.Info("analyzing non-prebuilt service", "service", svc.Name)

	briefs, err := p.retrieveBriefs(ctx, svc)
	if err != nil {
		return types.AnalysisRecord{}, err
	}

	raw, err := p.extractor.Extract(ctx, analyzeNonPrebuiltPrompt(svc.Name, ports, briefs), nil)
	if err != nil {
		return types.AnalysisRecord{}, err
	}

	var analysis types.NonPrebuiltAnalysis
	if _, err := p.extractor.Extract(ctx, validateInteractionsPrompt(svc.Name, raw), &analysis); err != nil {
		return types.AnalysisRecord{}, err
	}
	analysis.ServiceName = svc.Name

	return types.AnalysisRecord{
		ServiceName: svc.Name,
		IsPrebuilt:  false,
		NonPrebuilt: &analysis,
	}, nil
}

// retrieveBriefs assembles the RAG context for one service: every embedded
// brief of the service, config files force-included even when the similarity
// ranking missed them, condensed in segments when the whole set is too big.
func (p *Pipeline) retrieveBriefs(ctx context.Context, svc types.IdentifiedService) (string, error) {
	filter := map[string]string{vectorstore.FieldServiceName: svc.Name}
	count, err := p.store.GetDataCount(ctx, filter)
	if err != nil {
		return "", err
	}
	if count == 0 {
		return "", fmt.Errorf("no embedded briefs for service %q", svc.Name)
	}

	docs, err := p.store.RetrieveData(ctx, queryVectorDBPrompt, count, filter, "mmr")
	if err != nil {
		return "", err
	}

	docs, err = p.includeConfigs(ctx, svc, docs)
	if err != nil {
		return "", err
	}

	formatted := make([]string, len(docs))
	for i, doc := range docs {
		formatted[i] = formatBrief(doc)
	}

	if len(formatted) <= ragSegmentSize {
		return strings.Join(formatted, ""), nil
	}
	return p.condenseBriefs(ctx, svc, formatted)
}

// includeConfigs appends briefs of the service's config files that exist in
// the store but did not make the retrieval ranking.
func (p *Pipeline) includeConfigs(ctx context.Context, svc types.IdentifiedService, docs []vectorstore.Document) ([]vectorstore.Document, error) {
	present := make(map[string]bool, len(docs))
	for _, doc := range docs {
		present[doc.Filepath] = true
	}

	for _, cfg := range svc.Configs {
		if present[cfg] {
			continue
		}
		filter := map[string]string{
			vectorstore.FieldServiceName: svc.Name,
			vectorstore.FieldFilepath:    cfg,
		}
		extra, err := p.store.RetrieveData(ctx, "", 1, filter, "")
		if err != nil {
			return nil, err
		}
		if len(extra) == 0 {
			slog.Debug("config file has no embedded brief", "service", svc.Name, "path", cfg)
			continue
		}
		docs = append(docs, extra[0])
		present[cfg] = true
	}
	return docs, nil
}

// condenseBriefs shrinks an oversized brief set segment by segment through
// the summarization prompt, preserving relative order.
func (p *Pipeline) condenseBriefs(ctx context.Context, svc types.IdentifiedService, formatted []string) (string, error) {
	var segments []string
	for start := 0; start < len(formatted); start += ragSegmentSize {
		end := min(start+ragSegmentSize, len(formatted))
		segments = append(segments, strings.Join(formatted[start:end], ""))
	}
	slog.Info("condensing retrieved briefs", "service", svc.Name, "segments", len(segments))

	brief := fmt.Sprintf("Briefs of key files in the microservice %q, one block per file.", svc.Name)
	keyTopics := "ports, APIs, controllers, routes exposed to external services; files and code segments communicating with external services"

	summaries, err := runner.MapOrdered(ctx, segments, p.concurrency, func(ctx context.Context, segment string) (string, bool, error) {
		summary, err := p.extractor.Extract(ctx, agent.SummarizePrompt(brief, segment, keyTopics), nil)
		if err != nil {
			return "", false, err
		}
		return summary, true, nil
	})
	if err != nil {
		return "", err
	}
	return strings.Join(summaries, "\n"+ragSeparator+"\n"), nil
}

// formatBrief renders one retrieved document the way the analysis prompt
// expects it.
func formatBrief(doc vectorstore.Document) string {
	return fmt.Sprintf("%s\nFILENAME: `%s`\nBRIEF:\n```\n%s\n```\n", ragSeparator, doc.Filepath, doc.Text)
}
