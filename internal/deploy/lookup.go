package deploy

// OpenPorts returns the rendered port mappings of the named service.
func (c *ComposeConfig) OpenPorts(serviceName string) []string {
	d := c.DeploymentFor(serviceName)
	if d == nil {
		return nil
	}
	out := make([]string, 0, len(d.Ports))
	for _, p := range d.Ports {
		out = append(out, p.String())
	}
	return out
}

// Images returns the image references of the named service, build-stage base
// images included.
func (c *ComposeConfig) Images(serviceName string) []string {
	d := c.DeploymentFor(serviceName)
	if d == nil {
		return nil
	}
	return d.Image
}

// OpenPorts collects port mappings for the named service from matching
// Service resources and, failing that, from matching pod containers.
func (c *KubernetesConfig) OpenPorts(serviceName string) []string {
	var out []string
	for _, svc := range c.Services {
		if !svc.Metadata.Matches(serviceName) {
			continue
		}
		for _, p := range svc.Ports {
			out = append(out, p.String())
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, ctr := range c.containersFor(serviceName) {
		for _, p := range ctr.Ports {
			out = append(out, p.String())
		}
	}
	return out
}

// Images returns the container images of pods associated with the named
// service.
func (c *KubernetesConfig) Images(serviceName string) []string {
	var out []string
	for _, ctr := range c.containersFor(serviceName) {
		if ctr.Image != "" {
			out = append(out, ctr.Image)
		}
	}
	return out
}

// containersFor matches standalone pods and deployment templates by resource
// metadata first, then by individual container name.
func (c *KubernetesConfig) containersFor(serviceName string) []KubeContainer {
	var out []KubeContainer
	collect := func(pod *KubePod, matched bool) {
		if pod == nil {
			return
		}
		for _, ctr := range pod.Containers {
			if matched || ctr.Name == serviceName {
				out = append(out, ctr)
			}
		}
	}
	for i := range c.Pods {
		pod := &c.Pods[i]
		collect(pod, pod.Metadata.Matches(serviceName))
	}
	for i := range c.Deployments {
		dep := &c.Deployments[i]
		matched := dep.Metadata.Matches(serviceName)
		if !matched && dep.Template != nil {
			matched = dep.Template.Metadata.Matches(serviceName)
		}
		collect(dep.Template, matched)
	}
	return out
}
