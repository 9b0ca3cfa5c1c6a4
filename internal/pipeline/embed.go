package pipeline

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"unicode/utf8"

	"github.com/archlens/archlens/internal/fswalk"
	"github.com/archlens/archlens/internal/runid"
	"github.com/archlens/archlens/internal/runner"
	"github.com/archlens/archlens/internal/types"
	"github.com/archlens/archlens/internal/vectorstore"
)

// documentID derives the stable vector-store id of one file brief. The id is
// content-addressed by run, path and service, so re-running a stage finds
// the records it wrote before.
func documentID(id runid.ID, relPath, serviceName string) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("[%s]_[%s]_[%s]", id, relPath, serviceName)))
	return hex.EncodeToString(sum[:])
}

// embedServices interprets every source file of every non-prebuilt service
// and stores the briefs in the vector store. Files already present are
// skipped when the reuse toggle is set, otherwise re-interpreted in place.
func (p *Pipeline) embedServices(ctx context.Context, result *types.IdentifyServiceResult, centerName string) error {
	services := result.NonPrebuilt()
	if len(services) == 0 {
		slog.Info("all services are prebuilt, nothing to embed")
		return nil
	}

	// Config files the center distributed to other services; they get
	// embedded under their consumers, not under the center itself.
	publicConfigs := make(map[string]bool)
	if centerName != "" {
		for _, svc := range result.Services {
			for _, cfg := range svc.Configs {
				publicConfigs[fswalk.AbsolutePath(p.projectLoc, cfg)] = true
			}
		}
	}

	for _, svc := range services {
		exclude := map[string]bool(nil)
		if svc.Name == centerName {
			exclude = publicConfigs
		}
		if err := p.embedService(ctx, svc, exclude); err != nil {
			return fmt.Errorf("service %s: %w", svc.Name, err)
		}
	}
	return nil
}

func (p *Pipeline) embedService(ctx context.Context, svc types.IdentifiedService, exclude map[string]bool) error {
	sourceDir := fswalk.AbsolutePath(p.projectLoc, svc.SourceDir)
	tree, files, err := fswalk.TreeWithRoot(sourceDir, svc.SourceDir)
	if err != nil {
		return fmt.Errorf("walking source directory: %w", err)
	}
	files = gatherFiles(p.projectLoc, files, svc.Configs, exclude)
	p.printer.Info("Interpreting %d file(s) of service %s", len(files), p.printer.Highlight(svc.Name))

	docs, err := runner.Map(ctx, files, p.concurrency, func(ctx context.Context, file string) (vectorstore.Document, bool, error) {
		return p.interpretFile(ctx, tree, svc, file)
	})
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}

	if _, err := p.store.AddData(ctx, docs); err != nil {
		return err
	}
	slog.Info("embedded file briefs", "service", svc.Name, "count", len(docs))
	return nil
}

// gatherFiles merges the walked source files with the service's config
// files, deduplicated. The exclude set only filters the walked files: a
// config the service itself claims is embedded even when it is also
// distributed to other services.
func gatherFiles(projectLoc string, files, configs []string, exclude map[string]bool) []string {
	seen := make(map[string]bool, len(files)+len(configs))
	var out []string
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			out = append(out, path)
		}
	}
	for _, f := range files {
		if exclude[f] {
			continue
		}
		add(f)
	}
	for _, c := range configs {
		add(fswalk.AbsolutePath(projectLoc, c))
	}
	return out
}

// interpretFile produces the vector-store document for one source file, or
// skips it: already-embedded files under the reuse toggle, empty files, and
// binary files all drop out of the batch.
func (p *Pipeline) interpretFile(ctx context.Context, dirTree string, svc types.IdentifiedService, file string) (vectorstore.Document, bool, error) {
	var none vectorstore.Document
	relPath := fswalk.RelativePath(p.projectLoc, file)
	id := documentID(p.runID, relPath, svc.Name)

	count, err := p.store.GetDataCount(ctx, map[string]string{vectorstore.FilterID: id})
	if err != nil {
		return none, false, err
	}
	if count > 0 {
		if p.reuse.EmbedCodes {
			slog.Debug("brief already embedded", "path", relPath)
			return none, false, nil
		}
		if err := p.store.DeleteData(ctx, []string{id}); err != nil {
			return none, false, err
		}
	}

	raw, err := os.ReadFile(file)
	if err != nil {
		return none, false, err
	}
	content := string(raw)
	if len(content) == 0 || !utf8.ValidString(content) {
		slog.Debug("skipping unreadable file", "path", relPath)
		return none, false, nil
	}

	brief, err := p.extractor.Extract(ctx, interpretCodePrompt(dirTree, relPath, content, svc.Configs), nil)
	if err != nil {
		return none, false, err
	}

	return vectorstore.Document{
		ID:          id,
		Text:        brief,
		Filepath:    relPath,
		ServiceName: svc.Name,
		CodeContent: content,
	}, true, nil
}
