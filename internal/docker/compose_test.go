package docker_test

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

type ComposeFile struct {
	Services map[string]Service `yaml:"services"`
	Volumes  map[string]any     `yaml:"volumes"`
	Networks map[string]Network `yaml:"networks"`
}

type Network struct {
	Driver string `yaml:"driver"`
}

type Service struct {
	Image       string         `yaml:"image"`
	Build       *Build         `yaml:"build"`
	Ports       []string       `yaml:"ports"`
	Environment []string       `yaml:"environment"`
	DependsOn   map[string]any `yaml:"depends_on"`
	Volumes     []string       `yaml:"volumes"`
	Healthcheck *Healthcheck   `yaml:"healthcheck"`
	Restart     string         `yaml:"restart"`
	Command     string         `yaml:"command"`
	Networks    []string       `yaml:"networks"`
}

type Build struct {
	Context string `yaml:"context"`
}

type Healthcheck struct {
	Test        []string `yaml:"test"`
	Interval    string   `yaml:"interval"`
	Timeout     string   `yaml:"timeout"`
	Retries     int      `yaml:"retries"`
	StartPeriod string   `yaml:"start_period"`
}

func projectRoot() string {
	_, filename, _, _ := runtime.Caller(0)
	// From internal/docker/ go up 2 levels to the project root
	return filepath.Join(filepath.Dir(filename), "..", "..")
}

func readCompose(t *testing.T) ComposeFile {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(projectRoot(), "docker-compose.yml"))
	if err != nil {
		t.Fatalf("failed to read docker-compose.yml: %v", err)
	}
	var compose ComposeFile
	if err := yaml.Unmarshal(data, &compose); err != nil {
		t.Fatalf("failed to parse docker-compose.yml: %v", err)
	}
	return compose
}

func assertPortMapping(t *testing.T, ports []string, expected string) {
	t.Helper()
	for _, p := range ports {
		if p == expected {
			return
		}
	}
	t.Errorf("expected port mapping %s, got %v", expected, ports)
}

func TestDockerComposeHasAllServices(t *testing.T) {
	compose := readCompose(t)

	for _, name := range []string{"server", "redis"} {
		if _, ok := compose.Services[name]; !ok {
			t.Errorf("missing service: %s", name)
		}
	}
	if len(compose.Services) != 2 {
		t.Errorf("expected 2 services, got %d", len(compose.Services))
	}
}

func TestServerService(t *testing.T) {
	server := readCompose(t).Services["server"]

	if server.Build == nil || server.Build.Context != "." {
		t.Error("server build context should be .")
	}
	assertPortMapping(t, server.Ports, "8080:8080")

	if _, ok := server.DependsOn["redis"]; !ok {
		t.Error("server should depend on redis")
	}
	if server.Healthcheck == nil {
		t.Error("server should have a healthcheck")
	}

	hasRedisAddr := false
	for _, env := range server.Environment {
		if strings.Contains(env, "REDIS_ADDR=redis:6379") {
			hasRedisAddr = true
		}
	}
	if !hasRedisAddr {
		t.Error("server should have REDIS_ADDR=redis:6379 environment variable")
	}
}

func TestRedisService(t *testing.T) {
	redis := readCompose(t).Services["redis"]

	if !strings.HasPrefix(redis.Image, "redis:") {
		t.Errorf("redis image should be redis:*, got %s", redis.Image)
	}
	assertPortMapping(t, redis.Ports, "6379:6379")

	if redis.Healthcheck == nil {
		t.Error("redis should have a healthcheck")
	}

	hasDataVolume := false
	for _, v := range redis.Volumes {
		if strings.Contains(v, "redis-data") {
			hasDataVolume = true
		}
	}
	if !hasDataVolume {
		t.Error("redis should mount a persistent data volume")
	}
}

func TestRedisVolumeDefined(t *testing.T) {
	compose := readCompose(t)
	if _, ok := compose.Volumes["redis-data"]; !ok {
		t.Error("redis-data volume should be defined at the top level")
	}
}

func TestRedisMemoryLimit(t *testing.T) {
	redis := readCompose(t).Services["redis"]
	if !strings.Contains(redis.Command, "--maxmemory") {
		t.Error("redis should have a maxmemory setting for local development")
	}
	if !strings.Contains(redis.Command, "--maxmemory-policy") {
		t.Error("redis should have a maxmemory-policy setting")
	}
}

func TestRestartPolicies(t *testing.T) {
	compose := readCompose(t)
	for name, svc := range compose.Services {
		if svc.Restart != "unless-stopped" {
			t.Errorf("service %s should have restart: unless-stopped, got %q", name, svc.Restart)
		}
	}
}

func TestNetworkDefined(t *testing.T) {
	compose := readCompose(t)
	net, ok := compose.Networks["officechat"]
	if !ok {
		t.Fatal("officechat network should be defined at the top level")
	}
	if net.Driver != "bridge" {
		t.Errorf("officechat network driver should be bridge, got %q", net.Driver)
	}
}

func TestAllServicesOnNetwork(t *testing.T) {
	compose := readCompose(t)
	for name, svc := range compose.Services {
		found := false
		for _, n := range svc.Networks {
			if n == "officechat" {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("service %s should be on officechat network", name)
		}
	}
}

func TestDockerfileContent(t *testing.T) {
	data, err := os.ReadFile(filepath.Join(projectRoot(), "Dockerfile"))
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)

	if !strings.Contains(content, "FROM golang:") {
		t.Error("should use golang base image")
	}
	if !strings.Contains(content, "AS builder") {
		t.Error("should use multi-stage build")
	}
	if !strings.Contains(content, "EXPOSE 8080") {
		t.Error("should expose port 8080")
	}
}

func TestDockerignoreExcludesGit(t *testing.T) {
	data, err := os.ReadFile(filepath.Join(projectRoot(), ".dockerignore"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), ".git") {
		t.Error(".dockerignore should exclude .git")
	}
}
