package normalize

import "strings"

// AnonymousToken is the consumer and ACL group that unauthenticated traffic
// falls back to. It only carries read-only groups on the gateway.
const AnonymousToken = "portal_anonymous"

// Policy is the anonymous-bypass rule shared by the jwt and acl rules and the
// post-reconciliation ACL fixup.
type Policy struct {
	AnonymousConsumer string
	AnonymousGroup    string
}

func DefaultPolicy() Policy {
	return Policy{
		AnonymousConsumer: AnonymousToken,
		AnonymousGroup:    AnonymousToken,
	}
}

// WithDefaults fills blank fields from DefaultPolicy.
func (p Policy) WithDefaults() Policy {
	def := DefaultPolicy()
	if strings.TrimSpace(p.AnonymousConsumer) == "" {
		p.AnonymousConsumer = def.AnonymousConsumer
	}
	if strings.TrimSpace(p.AnonymousGroup) == "" {
		p.AnonymousGroup = def.AnonymousGroup
	}
	return p
}

// EnsureAllowed appends the anonymous group to a non-empty allow list that
// lacks it. The input slice is never modified. An empty list is returned
// unchanged: an ACL without an allow list is deny-only and must stay that way.
func (p Policy) EnsureAllowed(allow []any) ([]any, bool) {
	if len(allow) == 0 || p.Allows(allow) {
		return allow, false
	}
	out := make([]any, 0, len(allow)+1)
	out = append(out, allow...)
	out = append(out, p.AnonymousGroup)
	return out, true
}

// Allows reports whether the allow list already contains the anonymous group.
func (p Policy) Allows(allow []any) bool {
	for _, v := range allow {
		if s, ok := v.(string); ok && s == p.AnonymousGroup {
			return true
		}
	}
	return false
}
