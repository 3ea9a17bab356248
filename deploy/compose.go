// Package deploy loads the Compose topology the server is shipped with and
// checks it against the layout the web client and the server expect.
package deploy

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/go-redis/redis/v8"
	"gopkg.in/yaml.v3"
)

// Compose is the subset of a Compose file the deployment uses.
type Compose struct {
	Version  string              `yaml:"version,omitempty"`
	Services map[string]*Service `yaml:"services"`
	Networks map[string]*Network `yaml:"networks,omitempty"`
}

// Service is a Compose service.
type Service struct {
	Image       string      `yaml:"image,omitempty"`
	Build       *Build      `yaml:"build,omitempty"`
	Ports       []string    `yaml:"ports,omitempty"`
	Expose      []string    `yaml:"expose,omitempty"`
	Environment Environment `yaml:"environment,omitempty"`
	Restart     string      `yaml:"restart,omitempty"`
	Networks    []string    `yaml:"networks,omitempty"`
	DependsOn   []string    `yaml:"depends_on,omitempty"`
}

// Network is a Compose network.
type Network struct {
	Driver string `yaml:"driver,omitempty"`
}

// Build accepts both the short form (a context string) and the long form.
type Build struct {
	Context    string `yaml:"context"`
	Dockerfile string `yaml:"dockerfile,omitempty"`
}

func (b *Build) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		b.Context = value.Value
		return nil
	}
	type plain Build
	return value.Decode((*plain)(b))
}

// Environment accepts both the list form (KEY=VALUE) and the map form.
type Environment map[string]string

func (e *Environment) UnmarshalYAML(value *yaml.Node) error {
	environment := Environment{}
	switch value.Kind {
	case yaml.SequenceNode:
		var entries []string
		if err := value.Decode(&entries); err != nil {
			return err
		}
		for _, entry := range entries {
			key, val, _ := strings.Cut(entry, "=")
			environment[key] = val
		}
	case yaml.MappingNode:
		var entries map[string]string
		if err := value.Decode(&entries); err != nil {
			return err
		}
		for key, val := range entries {
			environment[key] = val
		}
	default:
		return fmt.Errorf("line %d: environment must be a list or a map", value.Line)
	}
	*e = environment
	return nil
}

// LoadCompose parses the Compose file at path.
func LoadCompose(path string) (*Compose, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCompose(data)
}

// ParseCompose parses Compose file content.
func ParseCompose(data []byte) (*Compose, error) {
	compose := &Compose{}
	if err := yaml.Unmarshal(data, compose); err != nil {
		return nil, fmt.Errorf("parse compose file: %w", err)
	}
	return compose, nil
}

// Service names of the deployment.
const (
	ServiceFrontend = "frontend"
	ServiceBackend  = "backend"
	ServiceRedis    = "redis"
)

// ValidationError lists every problem found in a Compose file.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid compose file: " + strings.Join(e.Problems, "; ")
}

type validator struct {
	problems []string
}

func (v *validator) addf(format string, args ...interface{}) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

// Validate checks that the file declares exactly the frontend, backend and
// redis services on one network, with their port mappings and one
// environment variable each.
func (c *Compose) Validate() error {
	v := &validator{}

	names := make([]string, 0, len(c.Services))
	for name := range c.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	if strings.Join(names, ",") != "backend,frontend,redis" {
		v.addf("services must be backend, frontend and redis, got %v", names)
	}

	if frontend := c.Services[ServiceFrontend]; frontend != nil {
		v.validateBuilt(ServiceFrontend, frontend)
		v.validatePublished(ServiceFrontend, frontend, "80")
		if value, ok := v.validateSingleVariable(ServiceFrontend, frontend, "BACKEND_URL"); ok {
			v.validateBackendURL(value)
		}
	}

	if backend := c.Services[ServiceBackend]; backend != nil {
		v.validateBuilt(ServiceBackend, backend)
		v.validatePublished(ServiceBackend, backend, "5000")
		if backend.Restart != "on-failure" {
			v.addf("backend: restart must be on-failure, got %q", backend.Restart)
		}
		if value, ok := v.validateSingleVariable(ServiceBackend, backend, "REDIS_URL"); ok {
			v.validateRedisURL(value)
		}
	}

	if cache := c.Services[ServiceRedis]; cache != nil {
		if cache.Image == "" || cache.Build != nil {
			v.addf("redis: must run a pre-built image")
		}
		if len(cache.Ports) > 0 {
			v.addf("redis: port 6379 must stay internal, got ports %v", cache.Ports)
		}
		if len(cache.Expose) != 1 || cache.Expose[0] != "6379" {
			v.addf("redis: must expose 6379, got %v", cache.Expose)
		}
		if value, ok := v.validateSingleVariable(ServiceRedis, cache, "ALLOW_EMPTY_PASSWORD"); ok && value != "yes" {
			v.addf("redis: ALLOW_EMPTY_PASSWORD must be yes, got %q", value)
		}
	}

	v.validateNetwork(c)

	if len(v.problems) > 0 {
		return &ValidationError{Problems: v.problems}
	}
	return nil
}

func (v *validator) validateBuilt(name string, service *Service) {
	if service.Build == nil || service.Build.Context == "" {
		v.addf("%s: must be built from source", name)
	}
}

// validatePublished checks that containerPort is published on the same
// host port and that nothing else is.
func (v *validator) validatePublished(name string, service *Service, containerPort string) {
	if len(service.Ports) != 1 {
		v.addf("%s: must publish exactly port %s, got %v", name, containerPort, service.Ports)
		return
	}
	mapping := strings.TrimSuffix(service.Ports[0], "/tcp")
	parts := strings.Split(mapping, ":")
	host, container := parts[0], parts[len(parts)-1]
	if len(parts) == 3 {
		host = parts[1]
	}
	if host != containerPort || container != containerPort {
		v.addf("%s: must publish %s:%s, got %s", name, containerPort, containerPort, service.Ports[0])
	}
}

func (v *validator) validateSingleVariable(name string, service *Service, variable string) (string, bool) {
	value, ok := service.Environment[variable]
	if !ok || len(service.Environment) != 1 {
		keys := make([]string, 0, len(service.Environment))
		for key := range service.Environment {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		v.addf("%s: environment must be exactly %s, got %v", name, variable, keys)
		return "", false
	}
	return value, true
}

func (v *validator) validateBackendURL(value string) {
	parsed, err := url.Parse(value)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		v.addf("frontend: BACKEND_URL %q is not an http url", value)
		return
	}
	if parsed.Port() != "5000" {
		v.addf("frontend: BACKEND_URL %q must target port 5000", value)
	}
}

func (v *validator) validateRedisURL(value string) {
	options, err := redis.ParseURL(value)
	if err != nil {
		v.addf("backend: REDIS_URL %q: %v", value, err)
		return
	}
	host, port, err := net.SplitHostPort(options.Addr)
	if err != nil || host != ServiceRedis || port != "6379" {
		v.addf("backend: REDIS_URL %q must target %s:6379", value, ServiceRedis)
	}
}

// validateNetwork checks that every service joins the same single network,
// or that all of them use the default one.
func (v *validator) validateNetwork(c *Compose) {
	if len(c.Networks) > 1 {
		v.addf("must declare at most one network, got %d", len(c.Networks))
		return
	}

	var shared string
	for _, name := range []string{ServiceFrontend, ServiceBackend, ServiceRedis} {
		service := c.Services[name]
		if service == nil {
			continue
		}
		network := "default"
		switch len(service.Networks) {
		case 0:
		case 1:
			network = service.Networks[0]
		default:
			v.addf("%s: must join one network, got %v", name, service.Networks)
			continue
		}
		if network != "default" {
			if _, ok := c.Networks[network]; !ok {
				v.addf("%s: network %s is not declared", name, network)
			}
		}
		if shared == "" {
			shared = network
		} else if network != shared {
			v.addf("%s: joins %s while other services join %s", name, network, shared)
		}
	}
}
