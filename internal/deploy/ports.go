// Package deploy parses deployment manifests (docker-compose files,
// Dockerfiles, Kubernetes resources) into a normalized form the analysis
// stages can consume.
package deploy

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// Host IP prefixes are matched and discarded.
	portMappingRe = regexp.MustCompile(`^(?:\d{1,3}(?:\.\d{1,3}){3}:)?(?:(\d{1,5})(?:-(\d{1,5}))?)(?::(?:(\d{1,5})(?:-(\d{1,5}))?)(?:/(tcp|udp))?)?$`)
	portExposeRe  = regexp.MustCompile(`^(?:(\d{1,5})(?:-(\d{1,5}))?)(?:/(tcp|udp))?$`)
	hostsRe       = regexp.MustCompile(`^([\w.-]+)(?:=|:)((?:\d{1,3}(?:\.\d{1,3}){3})|\[?(?:[a-fA-F0-9:]+)\]?)$`)
)

// PortMapping is a single host-to-container port binding. HostPort is 0 when
// the port is only exposed inside the network. Protocol is upper-cased and
// empty when unspecified.
type PortMapping struct {
	HostPort      int    `json:"host_port,omitempty"`
	ContainerPort int    `json:"container_port"`
	Protocol      string `json:"protocol,omitempty"`
}

func (p PortMapping) String() string {
	s := strconv.Itoa(p.ContainerPort)
	if p.HostPort != 0 {
		s = strconv.Itoa(p.HostPort) + ":" + s
	}
	if p.Protocol != "" {
		s += "/" + p.Protocol
	}
	return s
}

func checkPort(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: %w", raw, err)
	}
	if n < 1 || n > 65535 {
		return 0, fmt.Errorf("port %d out of range", n)
	}
	return n, nil
}

// ParsePortMapping expands one compose "ports" entry into its explicit
// mappings. Ranges are expanded pairwise; a host range mapped onto a single
// container port binds every host port to that container port.
func ParsePortMapping(entry string) ([]PortMapping, error) {
	m := portMappingRe.FindStringSubmatch(strings.TrimSpace(entry))
	if m == nil {
		return nil, fmt.Errorf("unrecognized port mapping %q", entry)
	}
	hostStart, hostEnd, ctrStart, ctrEnd := m[1], m[2], m[3], m[4]
	protocol := strings.ToUpper(m[5])

	var out []PortMapping
	switch {
	// A bare port exposes a container port with no host binding.
	case hostStart != "" && hostEnd == "" && ctrStart == "" && ctrEnd == "":
		p, err := checkPort(hostStart)
		if err != nil {
			return nil, err
		}
		out = append(out, PortMapping{ContainerPort: p, Protocol: protocol})

	// Bare range, same treatment.
	case hostStart != "" && hostEnd != "" && ctrStart == "" && ctrEnd == "":
		lo, err := checkPort(hostStart)
		if err != nil {
			return nil, err
		}
		hi, err := checkPort(hostEnd)
		if err != nil {
			return nil, err
		}
		for p := lo; p <= hi; p++ {
			out = append(out, PortMapping{ContainerPort: p, Protocol: protocol})
		}

	// host:container
	case hostStart != "" && hostEnd == "" && ctrStart != "" && ctrEnd == "":
		hp, err := checkPort(hostStart)
		if err != nil {
			return nil, err
		}
		cp, err := checkPort(ctrStart)
		if err != nil {
			return nil, err
		}
		out = append(out, PortMapping{HostPort: hp, ContainerPort: cp, Protocol: protocol})

	// hostRange:containerRange, widths must agree.
	case hostStart != "" && hostEnd != "" && ctrStart != "" && ctrEnd != "":
		hLo, err := checkPort(hostStart)
		if err != nil {
			return nil, err
		}
		hHi, err := checkPort(hostEnd)
		if err != nil {
			return nil, err
		}
		cLo, err := checkPort(ctrStart)
		if err != nil {
			return nil, err
		}
		cHi, err := checkPort(ctrEnd)
		if err != nil {
			return nil, err
		}
		if hHi-hLo != cHi-cLo {
			return nil, fmt.Errorf("port range widths differ in %q", entry)
		}
		for hLo <= hHi && cLo <= cHi {
			out = append(out, PortMapping{HostPort: hLo, ContainerPort: cLo, Protocol: protocol})
			hLo++
			cLo++
		}

	// hostRange:container binds several host ports to one container port.
	case hostStart != "" && hostEnd != "" && ctrStart != "" && ctrEnd == "":
		lo, err := checkPort(hostStart)
		if err != nil {
			return nil, err
		}
		hi, err := checkPort(hostEnd)
		if err != nil {
			return nil, err
		}
		cp, err := checkPort(ctrStart)
		if err != nil {
			return nil, err
		}
		for p := lo; p <= hi; p++ {
			out = append(out, PortMapping{HostPort: p, ContainerPort: cp, Protocol: protocol})
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("port mapping %q produced no ports", entry)
	}
	return out, nil
}

// ParseExpose expands a Dockerfile EXPOSE token or compose "expose" entry.
func ParseExpose(entry string) ([]PortMapping, error) {
	m := portExposeRe.FindStringSubmatch(strings.TrimSpace(entry))
	if m == nil {
		return nil, fmt.Errorf("unrecognized expose entry %q", entry)
	}
	protocol := strings.ToUpper(m[3])

	lo, err := checkPort(m[1])
	if err != nil {
		return nil, err
	}
	if m[2] == "" {
		return []PortMapping{{ContainerPort: lo, Protocol: protocol}}, nil
	}
	hi, err := checkPort(m[2])
	if err != nil {
		return nil, err
	}
	if hi < lo {
		return nil, fmt.Errorf("descending expose range %q", entry)
	}
	var out []PortMapping
	for p := lo; p <= hi; p++ {
		out = append(out, PortMapping{ContainerPort: p, Protocol: protocol})
	}
	return out, nil
}
