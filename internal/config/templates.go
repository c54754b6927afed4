package config

import (
	"fmt"
	"os"
	"strings"
)

// Template returns a starter file: "config" for the run configuration,
// "services" or "consumers" for desired-state documents.
func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "config":
		return configTemplate, nil
	case "services":
		return servicesTemplate, nil
	case "consumers":
		return consumersTemplate, nil
	default:
		return "", fmt.Errorf("unknown template kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("file already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const configTemplate = `admin_url = "http://localhost:8001"
# admin_token = ""
# admin_ca_file = "/etc/gatewaysync/admin-ca.pem"
# admin_cert_file = ""
# admin_key_file = ""
# admin_tls_skip_verify = false
request_timeout = "10s"
max_attempts = 5
backoff_initial = "1s"
backoff_multiplier = 2.0

services_page_size = 1000
routes_page_size = 100
plugins_page_size = 100
credentials_page_size = 100
acls_page_size = 1000
global_plugins_page_size = 1000

anonymous_consumer = "portal_anonymous"
anonymous_group = "portal_anonymous"

# metrics_addr = "127.0.0.1:9464"
# pushgateway_url = "http://localhost:9091"
skip_fixup = false
`

const servicesTemplate = `services:
  - name: orders
    url: http://orders.internal:8080
    retries: 3
    routes:
      - name: orders-public
        paths: ["/orders"]
        methods: [GET, POST]
    plugins:
      - name: jwt
      - name: acl
        config.allow: [orders-readers]
      - name: rate-limiting
        config.minute: 60
`

const consumersTemplate = `consumers:
  - username: portal
    groups: [orders-readers]
    credential_algorithm: HS256
    # print_credentials: true   # any value other than false logs key and secret
    rate_limits:
      - service: orders
        config.minute: 10
  - username: retired-client
    state: absent
`
