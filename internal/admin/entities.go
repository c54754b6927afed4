package admin

// Ref is a foreign-key reference as the admin API renders it.
type Ref struct {
	ID string `json:"id"`
}

type Service struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	URL            string `json:"url,omitempty"`
	Protocol       string `json:"protocol,omitempty"`
	Host           string `json:"host,omitempty"`
	Port           int    `json:"port,omitempty"`
	Path           string `json:"path,omitempty"`
	Retries        *int   `json:"retries,omitempty"`
	ConnectTimeout *int   `json:"connect_timeout,omitempty"`
	ReadTimeout    *int   `json:"read_timeout,omitempty"`
	WriteTimeout   *int   `json:"write_timeout,omitempty"`
}

type Route struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Paths         []string `json:"paths,omitempty"`
	Hosts         []string `json:"hosts,omitempty"`
	Methods       []string `json:"methods,omitempty"`
	Protocols     []string `json:"protocols,omitempty"`
	StripPath     *bool    `json:"strip_path,omitempty"`
	PreserveHost  *bool    `json:"preserve_host,omitempty"`
	RegexPriority *int     `json:"regex_priority,omitempty"`
	Service       *Ref     `json:"service,omitempty"`
}

type Plugin struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Config     map[string]any `json:"config,omitempty"`
	Enabled    *bool          `json:"enabled,omitempty"`
	Service    *Ref           `json:"service,omitempty"`
	Route      *Ref           `json:"route,omitempty"`
	Consumer   *Ref           `json:"consumer,omitempty"`
	ConsumerID string         `json:"consumer_id,omitempty"`
}

// ConsumerRef returns the owning consumer id, from either the current
// reference shape or the legacy consumer_id field.
func (p Plugin) ConsumerRef() string {
	if p.Consumer != nil && p.Consumer.ID != "" {
		return p.Consumer.ID
	}
	return p.ConsumerID
}

type Consumer struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	CustomID string `json:"custom_id,omitempty"`
}

type JWTCredential struct {
	ID           string `json:"id"`
	Algorithm    string `json:"algorithm"`
	Key          string `json:"key"`
	Secret       string `json:"secret,omitempty"`
	RSAPublicKey string `json:"rsa_public_key,omitempty"`
	Issuer       string `json:"iss,omitempty"`
	Consumer     *Ref   `json:"consumer,omitempty"`
}

// ResolvedIssuer is the explicit iss when reported, else the key the gateway
// derives it from.
func (c JWTCredential) ResolvedIssuer() string {
	if c.Issuer != "" {
		return c.Issuer
	}
	return c.Key
}

type ACL struct {
	ID       string `json:"id"`
	Group    string `json:"group"`
	Consumer *Ref   `json:"consumer,omitempty"`
}
