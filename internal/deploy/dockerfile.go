package deploy

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"

	"github.com/archlens/archlens/internal/fswalk"
)

var (
	fromRe = regexp.MustCompile(`^(\S+)(?: (?i:AS) (\S+))?$`)
	argRe  = regexp.MustCompile(`\$\{(\S+?)\}`)
)

// dockerfileInstruction is one logical instruction after joining backslash
// continuations.
type dockerfileInstruction struct {
	keyword string
	value   string
}

func scanDockerfile(raw []byte) []dockerfileInstruction {
	var out []dockerfileInstruction
	var pending string
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if pending == "" && (trimmed == "" || strings.HasPrefix(trimmed, "#")) {
			continue
		}
		if strings.HasSuffix(trimmed, "\\") {
			pending += strings.TrimSuffix(trimmed, "\\") + " "
			continue
		}
		full := strings.TrimSpace(pending + trimmed)
		pending = ""
		keyword, value, found := strings.Cut(full, " ")
		if !found {
			continue
		}
		out = append(out, dockerfileInstruction{
			keyword: strings.ToUpper(keyword),
			value:   strings.TrimSpace(value),
		})
	}
	return out
}

// parseEnvInstruction handles both ENV forms: "ENV key=val key2=val2" and the
// legacy "ENV key value".
func parseEnvInstruction(value string) map[string]string {
	if !strings.Contains(value, "=") {
		k, v, found := strings.Cut(value, " ")
		if !found {
			return nil
		}
		return map[string]string{k: strings.TrimSpace(v)}
	}
	envs, err := godotenv.Unmarshal(strings.ReplaceAll(value, " ", "\n"))
	if err != nil || len(envs) == 0 {
		// Quoted values with spaces defeat the split; fall back to a
		// single-pair read.
		k, v, found := strings.Cut(value, "=")
		if !found {
			return nil
		}
		return map[string]string{k: strings.Trim(v, `"'`)}
	}
	return envs
}

// loadBuildContext parses the Dockerfile referenced by the build section and
// folds its EXPOSE, ENV, and FROM information into the deployment. Must not
// be called on a merged deployment.
func (d *ComposeDeployment) loadBuildContext() error {
	if d.Build == nil {
		return nil
	}

	context := fswalk.AbsolutePath(d.ConfigDir, d.Build.Context)
	dockerfile := d.Build.Dockerfile
	if dockerfile == "" {
		dockerfile = "Dockerfile"
	}
	path := fswalk.AbsolutePath(context, dockerfile)

	slog.Debug("parsing dockerfile", "path", path)
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading dockerfile: %w", err)
	}

	instructions := scanDockerfile(raw)

	args := map[string]string{}
	envs := map[string]string{}
	var ports []PortMapping
	var fromValues []string

	for _, ins := range instructions {
		switch ins.keyword {
		case "ARG":
			if parsed, err := godotenv.Unmarshal(ins.value); err == nil {
				for k, v := range parsed {
					args[k] = v
				}
			}
		case "ENV":
			for k, v := range parseEnvInstruction(ins.value) {
				envs[k] = v
			}
		case "EXPOSE":
			for _, tok := range strings.Fields(ins.value) {
				expanded, err := ParseExpose(tok)
				if err != nil {
					return err
				}
				ports = append(ports, expanded...)
			}
		case "FROM":
			fromValues = append(fromValues, ins.value)
		}
	}

	if len(envs) != 0 {
		if d.Environment == nil {
			d.Environment = envs
		} else {
			for k, v := range envs {
				d.Environment[k] = v
			}
		}
	}

	images := resolveBaseImages(fromValues, args)
	if len(images) != 0 {
		d.Image = append(images, d.Image...)
	}

	if len(ports) != 0 {
		d.Ports = append(d.Ports, ports...)
	}
	return nil
}

// resolveBaseImages returns the FROM images that are real bases, dropping
// build-stage aliases: a stage image referenced later only through its AS
// name is an intermediate, not something the service runs.
func resolveBaseImages(fromValues []string, args map[string]string) []string {
	substitute := func(s string) string {
		return argRe.ReplaceAllStringFunc(s, func(ref string) string {
			name := argRe.FindStringSubmatch(ref)[1]
			return args[name]
		})
	}

	var bases, aliases, plain []string
	for _, v := range fromValues {
		m := fromRe.FindStringSubmatch(strings.TrimSpace(v))
		if m == nil {
			continue
		}
		if m[2] != "" {
			bases = append(bases, substitute(m[1]))
			aliases = append(aliases, substitute(m[2]))
		} else {
			plain = append(plain, m[1])
		}
	}

	for i := len(bases) - 1; i >= 0; i-- {
		aliased := false
		for _, a := range aliases {
			if bases[i] == a {
				aliased = true
				break
			}
		}
		if !aliased {
			plain = append(plain, bases[i])
		}
	}
	return plain
}
