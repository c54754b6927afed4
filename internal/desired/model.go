package desired

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	DefaultAlgorithm = "HS256"
	routeNameFormat  = "%s-route-%d"
)

// Document is one desired-state snapshot.
type Document struct {
	Services  []Service  `json:"services,omitempty"`
	Consumers []Consumer `json:"consumers,omitempty"`
}

// Service is a backend target with its routes and service-scoped plugins.
type Service struct {
	Name           string     `json:"name"`
	URL            string     `json:"url,omitempty"`
	UpstreamURL    string     `json:"upstream_url,omitempty"`
	Retries        *int       `json:"retries,omitempty"`
	ConnectTimeout *int       `json:"connect_timeout,omitempty"`
	ReadTimeout    *int       `json:"read_timeout,omitempty"`
	WriteTimeout   *int       `json:"write_timeout,omitempty"`
	Routes         []Route    `json:"routes,omitempty"`
	Plugins        []Plugin   `json:"plugins,omitempty"`
	URIs           StringList `json:"uris,omitempty"`
	StripURI       *bool      `json:"strip_uri,omitempty"`
}

// TargetURL prefers the legacy upstream_url when both are set.
func (s Service) TargetURL() string {
	if s.UpstreamURL != "" {
		return s.UpstreamURL
	}
	return s.URL
}

// EffectiveRoutes returns the declared routes, or the single implicit route
// built from legacy uris/strip_uri when no routes are declared.
func (s Service) EffectiveRoutes() []Route {
	if len(s.Routes) > 0 || s.URIs == nil {
		return s.Routes
	}
	strip := true
	if s.StripURI != nil {
		strip = *s.StripURI
	}
	return []Route{{Paths: s.URIs, StripPath: &strip}}
}

// Route is a request-matching rule.
type Route struct {
	Name          string     `json:"name,omitempty"`
	Paths         StringList `json:"paths,omitempty"`
	URIs          StringList `json:"uris,omitempty"`
	StripPath     *bool      `json:"strip_path,omitempty"`
	StripURI      *bool      `json:"strip_uri,omitempty"`
	PreserveHost  *bool      `json:"preserve_host,omitempty"`
	Hosts         StringList `json:"hosts,omitempty"`
	Methods       StringList `json:"methods,omitempty"`
	Protocols     StringList `json:"protocols,omitempty"`
	RegexPriority *int       `json:"regex_priority,omitempty"`
}

// ResolvedName is the explicit name, or "<service>-route-<index>" from the
// route's position in the service's list. Positional names are only stable
// while the list keeps its order and length: removing or reordering an
// earlier unnamed route renames every unnamed route after it.
func (r Route) ResolvedName(service string, index int) string {
	if strings.TrimSpace(r.Name) != "" {
		return r.Name
	}
	return fmt.Sprintf(routeNameFormat, service, index)
}

// Plugin is a free-form plugin document: name, config and possibly dotted
// "config.<path>" keys.
type Plugin map[string]any

func (p Plugin) Name() string {
	name, _ := p["name"].(string)
	return name
}

type State string

const (
	StatePresent State = "present"
	StateAbsent  State = "absent"
)

// Consumer is an identity principal with groups, one JWT credential and
// optional per-service rate limits.
type Consumer struct {
	Username               string      `json:"username"`
	State                  State       `json:"state,omitempty"`
	Groups                 []string    `json:"groups,omitempty"`
	CredentialAlgorithm    string      `json:"credential_algorithm,omitempty"`
	CredentialISS          *string     `json:"credential_iss,omitempty"`
	CredentialRSAPublicKey *string     `json:"credential_rsa_public_key,omitempty"`
	Key                    string      `json:"key,omitempty"`
	Secret                 string      `json:"secret,omitempty"`
	PrintCredentials       Flag        `json:"print_credentials,omitempty"`
	RateLimits             []RateLimit `json:"rate_limits,omitempty"`
}

func (c Consumer) EffectiveState() State {
	if c.State == "" {
		return StatePresent
	}
	return c.State
}

func (c Consumer) Algorithm() string {
	if strings.TrimSpace(c.CredentialAlgorithm) == "" {
		return DefaultAlgorithm
	}
	return c.CredentialAlgorithm
}

// Issuer defaults to the username.
func (c Consumer) Issuer() string {
	if c.CredentialISS != nil {
		return *c.CredentialISS
	}
	return c.Username
}

// RateLimit is a consumer-scoped rate-limiting plugin for one service. The
// service is named by "service" or the legacy "api" key; every key other
// than service/api/state is plugin payload.
type RateLimit map[string]any

func (r RateLimit) Service() string {
	if s, _ := r["service"].(string); s != "" {
		return s
	}
	s, _ := r["api"].(string)
	return s
}

func (r RateLimit) State() State {
	s, _ := r["state"].(string)
	if s == "" {
		return StatePresent
	}
	return State(s)
}

// Payload returns the plugin fields without the selector keys.
func (r RateLimit) Payload() map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		switch k {
		case "service", "api", "state":
			continue
		}
		out[k] = v
	}
	return out
}

// Flag is switched on by the key being present. Only an explicit false or
// null leaves it off, so "yes", 1 or an empty string all enable it.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "false", "null":
		*f = false
	default:
		*f = true
	}
	return nil
}

// StringList accepts either a JSON list of strings or a single string.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*l = nil
		return nil
	}

	var list []string
	if err := json.Unmarshal(trimmed, &list); err == nil {
		if list == nil {
			list = []string{}
		}
		*l = list
		return nil
	}

	var single string
	if err := json.Unmarshal(trimmed, &single); err == nil {
		*l = StringList{single}
		return nil
	}

	return fmt.Errorf("unsupported string list value: %s", string(trimmed))
}
