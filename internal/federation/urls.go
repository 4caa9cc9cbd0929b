package federation

import (
	"fmt"
	"net/url"
)

// URLs builds the IRIs a pod exposes. Host may carry a port.
type URLs struct {
	Scheme string
	Host   string
}

func NewURLs(scheme, host string) URLs {
	if scheme == "" {
		scheme = "https"
	}
	return URLs{Scheme: scheme, Host: host}
}

func (u URLs) base() string {
	return u.Scheme + "://" + u.Host
}

func (u URLs) Actor() string {
	return u.base() + "/actor"
}

func (u URLs) KeyID() string {
	return u.Actor() + "#main-key"
}

func (u URLs) Inbox() string {
	return u.base() + "/inbox"
}

func (u URLs) Account(name string) string {
	return u.base() + "/accounts/" + name
}

func (u URLs) Video(uuid string) string {
	return u.base() + "/videos/watch/" + uuid
}

func (u URLs) Activity(id string) string {
	return u.base() + "/activities/" + id
}

// ForHost returns the URLs of another pod, assuming it uses the same scheme.
func (u URLs) ForHost(host string) URLs {
	return URLs{Scheme: u.Scheme, Host: host}
}

// HostOf returns the host[:port] of an IRI.
func HostOf(iri string) (string, error) {
	parsed, err := url.Parse(iri)
	if err != nil {
		return "", fmt.Errorf("parsing IRI %q: %w", iri, err)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("IRI %q has no host", iri)
	}
	return parsed.Host, nil
}
