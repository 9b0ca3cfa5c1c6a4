// Package console renders user-facing progress output. Diagnostics go to
// slog; everything here is what an operator watches during a run.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/archlens/archlens/internal/types"
)

const banner = `
                     __    __
  ____ ______________/ /_  / /__  ____  _____
 / __ ` + "`" + `/ ___/ ___/ __  / / / _ \/ __ \/ ___/
/ /_/ / /  / /__/ / / / / /  __/ / / (__  )
\__,_/_/   \___/_/ /_/_/_/\___/_/ /_/____/
`

// Printer writes stage-by-stage progress. The zero value is not usable;
// construct with New.
type Printer struct {
	out   io.Writer
	stage int

	red     func(a ...interface{}) string
	blue    func(a ...interface{}) string
	yellow  func(a ...interface{}) string
	green   func(a ...interface{}) string
	magenta func(a ...interface{}) string
}

// New builds a printer writing to stdout.
func New() *Printer {
	return NewWithWriter(os.Stdout)
}

// NewWithWriter builds a printer writing to out; tests pass a buffer.
func NewWithWriter(out io.Writer) *Printer {
	return &Printer{
		out:     out,
		red:     color.New(color.FgRed).SprintFunc(),
		blue:    color.New(color.FgBlue, color.Bold).SprintFunc(),
		yellow:  color.New(color.FgYellow).SprintFunc(),
		green:   color.New(color.FgGreen).SprintFunc(),
		magenta: color.New(color.FgMagenta).SprintFunc(),
	}
}

// Banner prints the start-of-run banner.
func (p *Printer) Banner() {
	fmt.Fprintln(p.out, p.red(banner))
}

// RunInfo prints the parsed run parameters.
func (p *Printer) RunInfo(runID, target, chatModel, embdModel, vectorHost, graphURI string) {
	fmt.Fprintf(p.out, "%s\n", p.blue("Parsed analysis config:"))
	fmt.Fprintf(p.out, "  %s %s\n", p.yellow("Current running ID:"), runID)
	fmt.Fprintf(p.out, "  %s %s\n", p.yellow("Target:"), target)
	fmt.Fprintf(p.out, "  %s CHAT(%s), EMBD(%s)\n", p.yellow("Models:"), chatModel, embdModel)
	fmt.Fprintf(p.out, "  %s %s\n", p.yellow("VectorDB:"), vectorHost)
	if graphURI != "" {
		fmt.Fprintf(p.out, "  %s %s\n", p.yellow("GraphDB:"), graphURI)
	}
}

// Stage prints the next numbered stage header.
func (p *Printer) Stage(msg string) {
	p.stage++
	fmt.Fprintf(p.out, "%s\n", p.blue(fmt.Sprintf("Stage %d. %s", p.stage, msg)))
}

// Info prints a plain progress line.
func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Highlight wraps a value in the emphasis color.
func (p *Printer) Highlight(v any) string {
	return p.magenta(fmt.Sprint(v))
}

// Services prints the validated identification result.
func (p *Printer) Services(result *types.ValidatedResult, configCenter string) {
	fmt.Fprintf(p.out, "%s %s\n", p.yellow("Modifications from LLM:"), result.Modification)

	fmt.Fprintf(p.out, "%s\n", p.yellow("Deploy configuration files observed from project:"))
	for _, cfg := range result.ValidatedResult.DeployConfigs {
		fmt.Fprintf(p.out, "  %s\n", p.magenta(fmt.Sprintf("%s (type: %s)", cfg.Path, cfg.Type)))
	}

	fmt.Fprintf(p.out, "%s\n", p.yellow("Service instances observed from project:"))
	for _, svc := range result.ValidatedResult.Services {
		line := "  " + p.magenta(svc.Name)
		if !svc.Prebuilt {
			line += " " + p.green("("+svc.SourceDir+")")
		}
		if svc.Name == configCenter && configCenter != "" {
			line += " [MARKED_AS_CONFIG_CENTER]"
		}
		fmt.Fprintln(p.out, line)
	}
}

// Analysis prints one service's interaction analysis.
func (p *Printer) Analysis(rec *types.AnalysisRecord) {
	base := rec.Base()
	fmt.Fprintf(p.out, "%s %s:\n", p.yellow("LLM analysis of service"), p.magenta(base.ServiceName))

	var header []string
	if base.Service != "" {
		header = append(header, fmt.Sprintf("%s %s", p.yellow("Service:"), base.Service))
	}
	if base.Type != "" {
		header = append(header, fmt.Sprintf("%s %s", p.yellow("Type:"), base.Type))
	}
	if len(header) > 0 {
		fmt.Fprintf(p.out, "  %s\n", strings.Join(header, ", "))
	}

	if len(base.Ports) > 0 {
		var ports []string
		for _, port := range base.Ports {
			if port.Protocol != "" {
				ports = append(ports, fmt.Sprintf("%s(%s)", port.Port.String(), port.Protocol))
			} else {
				ports = append(ports, port.Port.String())
			}
		}
		fmt.Fprintf(p.out, "  %s %s\n", p.yellow("Open Ports:"), strings.Join(ports, ", "))
	}

	if rec.NonPrebuilt != nil {
		if len(rec.NonPrebuilt.Languages) > 0 {
			fmt.Fprintf(p.out, "  %s %s\n", p.yellow("Used language:"), strings.Join(rec.NonPrebuilt.Languages, ", "))
		}
		if len(rec.NonPrebuilt.Interactions) > 0 {
			fmt.Fprintf(p.out, "  %s\n", p.yellow("Observed data interactions:"))
			for _, i := range rec.NonPrebuilt.Interactions {
				fmt.Fprintf(p.out, "  - %s\n", i.String())
			}
		}
	}

	fmt.Fprintf(p.out, "  %s %s\n", p.yellow("Analysis message:"), base.Analysis)
}

