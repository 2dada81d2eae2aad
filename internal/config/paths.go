package config

import (
	"path/filepath"
	"strings"
)

// ToServerPath maps a path as the caller sent it to where this server sees
// it. Paths under HostPrefix keep their relative part below BasePath;
// anything else is assumed to be mounted under BasePath by its last
// element. With no BasePath the path is returned cleaned.
func (p ProjectsConfig) ToServerPath(hostPath string) string {
	if p.BasePath == "" {
		return filepath.Clean(hostPath)
	}
	if rel, ok := under(hostPath, p.HostPrefix); ok {
		return filepath.Join(p.BasePath, rel)
	}
	return filepath.Join(p.BasePath, filepath.Base(hostPath))
}

// ToHostPath is the reverse of ToServerPath for paths below BasePath.
// Other paths are returned unchanged.
func (p ProjectsConfig) ToHostPath(serverPath string) string {
	if p.BasePath == "" || p.HostPrefix == "" {
		return serverPath
	}
	if rel, ok := under(serverPath, p.BasePath); ok {
		return filepath.Join(p.HostPrefix, rel)
	}
	return serverPath
}

// under reports whether path is prefix or below it, and returns the
// remainder. It matches whole path elements only.
func under(path, prefix string) (string, bool) {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return "", false
	}
	if path == prefix {
		return "", true
	}
	if strings.HasPrefix(path, prefix+"/") {
		return strings.TrimLeft(path[len(prefix):], "/"), true
	}
	return "", false
}
