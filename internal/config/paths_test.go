package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToServerPath(t *testing.T) {
	mapped := ProjectsConfig{BasePath: "/data/projects", HostPrefix: "/Users/dev/src/"}
	tests := []struct {
		name string
		cfg  ProjectsConfig
		in   string
		want string
	}{
		{"under host prefix", mapped, "/Users/dev/src/api", "/data/projects/api"},
		{"nested under host prefix", mapped, "/Users/dev/src/team/api", "/data/projects/team/api"},
		{"prefix itself", mapped, "/Users/dev/src", "/data/projects"},
		{"outside prefix uses base name", mapped, "/opt/work/api", "/data/projects/api"},
		{"prefix must match whole elements", mapped, "/Users/dev/srcs/api", "/data/projects/api"},
		{"no base path leaves path", ProjectsConfig{}, "/opt/work/api/", "/opt/work/api"},
		{"no host prefix uses base name", ProjectsConfig{BasePath: "/data"}, "/Users/dev/src/api", "/data/api"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.ToServerPath(tt.in))
		})
	}
}

func TestToHostPath(t *testing.T) {
	mapped := ProjectsConfig{BasePath: "/data/projects", HostPrefix: "/Users/dev/src"}
	tests := []struct {
		name string
		cfg  ProjectsConfig
		in   string
		want string
	}{
		{"under base path", mapped, "/data/projects/api/main.go", "/Users/dev/src/api/main.go"},
		{"outside base path", mapped, "/tmp/api/main.go", "/tmp/api/main.go"},
		{"relative path", mapped, "api/main.go", "api/main.go"},
		{"no mapping", ProjectsConfig{}, "/data/projects/api", "/data/projects/api"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.ToHostPath(tt.in))
		})
	}
}

func TestPathMappingRoundTrip(t *testing.T) {
	p := ProjectsConfig{BasePath: "/data/projects", HostPrefix: "/Users/dev/src"}
	host := "/Users/dev/src/team/api"
	assert.Equal(t, host, p.ToHostPath(p.ToServerPath(host)))
}
