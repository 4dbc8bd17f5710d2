package crawl

import (
	"net"
	"net/url"
	"path"
	"strings"

	"github.com/fwojciec/minisearch"
)

// NormalizeURL returns the canonical form of an http(s) URL used for
// deduplication: lowercase scheme and host, no default port, no fragment,
// and "/" for an empty path.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", minisearch.Errorf(minisearch.EINVALID, "invalid URL %q: %v", rawURL, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", minisearch.Errorf(minisearch.EINVALID, "unsupported URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", minisearch.Errorf(minisearch.EINVALID, "URL %q has no host", rawURL)
	}

	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		u.Host = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		u.Host = "[" + host + "]"
	} else {
		u.Host = host
	}

	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "" {
		u.Path = "/"
		u.RawPath = ""
	}
	return u.String(), nil
}

// scopePrefix derives the preferred path prefix from a seed path: the seed
// itself when it names a directory, otherwise its parent directory.
func scopePrefix(seedPath string) string {
	if seedPath == "" || seedPath == "/" {
		return "/"
	}
	if strings.HasSuffix(seedPath, "/") {
		return seedPath
	}
	if strings.Contains(path.Base(seedPath), ".") {
		return path.Dir(seedPath) + "/"
	}
	return seedPath + "/"
}

// inScope reports whether p falls under prefix on a path segment boundary.
func inScope(p, prefix string) bool {
	if prefix == "" || prefix == "/" {
		return true
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return strings.HasPrefix(p, prefix) || p == strings.TrimSuffix(prefix, "/")
}
