package reconcile

import (
	"context"
	"fmt"

	"github.com/danmuck/gatewaysync/internal/admin"
	"github.com/danmuck/gatewaysync/internal/desired"
	"github.com/danmuck/gatewaysync/internal/diff"
	"github.com/danmuck/gatewaysync/internal/normalize"
	"github.com/golang-jwt/jwt/v5"
)

// SyncConsumers removes absent consumers, then converges each present one:
// record, ACL groups, one JWT credential and declared rate limits.
func (r *Reconciler) SyncConsumers(ctx context.Context, consumers []desired.Consumer) (Summary, error) {
	sum := newSummary()
	r.log.Info().Int("desired", len(consumers)).Msg("reconciling consumers")

	for _, c := range consumers {
		if c.EffectiveState() != desired.StateAbsent {
			continue
		}
		_, found, err := admin.Lookup[admin.Consumer](ctx, r.client, admin.ConsumerPath(c.Username))
		if err != nil {
			return sum, fmt.Errorf("look up consumer %q: %w", c.Username, err)
		}
		if !found {
			continue
		}
		r.log.Info().Str("consumer", c.Username).Msg("deleting consumer")
		err = r.client.Delete(ctx, admin.ConsumerPath(c.Username))
		sum.record(KindConsumer, ActionDelete, err)
		if err != nil {
			return sum, fmt.Errorf("delete consumer %q: %w", c.Username, err)
		}
	}

	for _, c := range consumers {
		if c.EffectiveState() != desired.StatePresent {
			continue
		}
		consumer, err := r.ensureConsumer(ctx, c, &sum)
		if err != nil {
			return sum, err
		}
		r.syncGroups(ctx, c, &sum)

		cred, err := r.resolveCredential(ctx, c, &sum)
		if err != nil {
			return sum, fmt.Errorf("jwt credential for consumer %q: %w", c.Username, err)
		}
		r.announceCredential(c, cred)

		if c.RateLimits != nil {
			if err := r.syncRateLimits(ctx, consumer, c.RateLimits, &sum); err != nil {
				return sum, err
			}
		}
	}
	return sum, nil
}

func (r *Reconciler) ensureConsumer(ctx context.Context, c desired.Consumer, sum *Summary) (admin.Consumer, error) {
	existing, found, err := admin.Lookup[admin.Consumer](ctx, r.client, admin.ConsumerPath(c.Username))
	if err != nil {
		return admin.Consumer{}, fmt.Errorf("look up consumer %q: %w", c.Username, err)
	}
	if found {
		return existing, nil
	}

	r.log.Info().Str("consumer", c.Username).Msg("adding consumer")
	resp, err := r.client.Post(ctx, admin.ConsumersPath(), map[string]any{"username": c.Username})
	sum.record(KindConsumer, ActionCreate, err)
	if err != nil {
		return admin.Consumer{}, fmt.Errorf("create consumer %q: %w", c.Username, err)
	}
	var created admin.Consumer
	if err := resp.Decode(&created); err != nil {
		return admin.Consumer{}, err
	}
	return created, nil
}

// syncGroups is best effort: listing and mutation failures are logged.
func (r *Reconciler) syncGroups(ctx context.Context, c desired.Consumer, sum *Summary) {
	log := r.log.With().Str("consumer", c.Username).Logger()

	observed, err := admin.List[admin.ACL](ctx, r.client, admin.ConsumerACLsPath(c.Username), r.limits.ACLs)
	if err != nil {
		log.Warn().Err(err).Msg("could not list acl groups, treating as none")
		observed = []admin.ACL{}
	}
	groups := c.Groups
	if groups == nil {
		groups = []string{}
	}

	plan := diff.Compute(groups, observed, diff.Identity[string], func(a admin.ACL) string { return a.Group })
	log.Info().
		Strs("required", groups).
		Int("existing", len(observed)).
		Msg("syncing acl groups")

	for _, group := range plan.Create {
		log.Info().Str("group", group).Msg("adding group")
		_, err := r.client.Post(ctx, admin.ConsumerACLsPath(c.Username), map[string]any{"group": group})
		sum.record(KindACL, ActionCreate, err)
		if err != nil {
			log.Error().Str("group", group).Err(err).Msg("group add failed")
		}
	}
	for _, acl := range plan.Delete {
		target := acl.ID
		if target == "" {
			target = acl.Group
		}
		log.Info().Str("group", acl.Group).Msg("deleting group")
		err := r.client.Delete(ctx, admin.ConsumerACLPath(c.Username, target))
		sum.record(KindACL, ActionDelete, err)
		if err != nil {
			log.Error().Str("group", acl.Group).Err(err).Msg("group delete failed")
		}
	}
}

// resolveCredential patches the credential matching (algorithm, issuer) or
// creates one. The issuer is never sent: the gateway derives it from key, so
// matching uses the same value create sends as key.
func (r *Reconciler) resolveCredential(ctx context.Context, c desired.Consumer, sum *Summary) (admin.JWTCredential, error) {
	algorithm := c.Algorithm()
	issuer := credentialKey(c)
	path := admin.ConsumerJWTPath(c.Username)
	log := r.log.With().
		Str("consumer", c.Username).
		Str("algorithm", algorithm).
		Str("iss", issuer).
		Logger()

	creds, err := admin.List[admin.JWTCredential](ctx, r.client, path, r.limits.Credentials)
	if err != nil {
		return admin.JWTCredential{}, err
	}

	for _, cred := range creds {
		if cred.Algorithm != algorithm || cred.ResolvedIssuer() != issuer {
			continue
		}
		log.Info().Str("id", cred.ID).Msg("updating jwt credential")
		resp, err := r.client.Patch(ctx, admin.ConsumerJWTCredentialPath(c.Username, cred.ID), credentialPatch(c, cred))
		sum.record(KindJWT, ActionUpdate, err)
		if err != nil {
			return admin.JWTCredential{}, err
		}
		var updated admin.JWTCredential
		if err := resp.Decode(&updated); err != nil {
			return admin.JWTCredential{}, err
		}
		return updated, nil
	}

	body := credentialCreate(c)
	log.Info().Interface("payload", body).Msg("creating jwt credential")
	resp, err := r.client.Post(ctx, path, body)
	if err == nil {
		sum.record(KindJWT, ActionCreate, nil)
		var created admin.JWTCredential
		if err := resp.Decode(&created); err != nil {
			return admin.JWTCredential{}, err
		}
		return created, nil
	}
	if !admin.IsConflict(err) {
		sum.record(KindJWT, ActionCreate, err)
		return admin.JWTCredential{}, err
	}

	log.Warn().Msg("jwt credential already exists, fetching existing credential")
	creds, lerr := admin.List[admin.JWTCredential](ctx, r.client, path, r.limits.Credentials)
	if lerr != nil {
		sum.record(KindJWT, ActionCreate, lerr)
		return admin.JWTCredential{}, lerr
	}
	key, _ := body["key"].(string)
	if cred, ok := pickConflicting(creds, key, algorithm); ok {
		return cred, nil
	}
	sum.record(KindJWT, ActionCreate, err)
	return admin.JWTCredential{}, err
}

// credentialPatch sends key, secret and rsa_public_key only, falling back to
// the stored values for anything the consumer does not declare.
func credentialPatch(c desired.Consumer, existing admin.JWTCredential) map[string]any {
	rsa := existing.RSAPublicKey
	if c.CredentialRSAPublicKey != nil {
		rsa = *c.CredentialRSAPublicKey
	}
	key := existing.Key
	if c.Key != "" {
		key = c.Key
	}
	secret := existing.Secret
	if c.Secret != "" {
		secret = c.Secret
	}
	return map[string]any{
		"rsa_public_key": rsa,
		"key":            key,
		"secret":         secret,
	}
}

// credentialKey is the explicit key when given, else the issuer.
func credentialKey(c desired.Consumer) string {
	if c.Key != "" {
		return c.Key
	}
	return c.Issuer()
}

func credentialCreate(c desired.Consumer) map[string]any {
	body := map[string]any{
		"algorithm": c.Algorithm(),
		"key":       credentialKey(c),
	}
	if c.Secret != "" {
		body["secret"] = c.Secret
	}
	if c.CredentialRSAPublicKey != nil {
		body["rsa_public_key"] = *c.CredentialRSAPublicKey
	}
	return body
}

// pickConflicting prefers the credential with the requested key, then the
// first with the same algorithm, then any.
func pickConflicting(creds []admin.JWTCredential, key, algorithm string) (admin.JWTCredential, bool) {
	for _, cred := range creds {
		if cred.Key == key {
			return cred, true
		}
	}
	for _, cred := range creds {
		if cred.Algorithm == algorithm {
			return cred, true
		}
	}
	if len(creds) > 0 {
		return creds[0], true
	}
	return admin.JWTCredential{}, false
}

func (r *Reconciler) announceCredential(c desired.Consumer, cred admin.JWTCredential) {
	if cred.Algorithm == jwt.SigningMethodHS256.Alg() {
		token, err := PreviewToken(cred)
		if err != nil {
			r.log.Warn().Str("consumer", c.Username).Err(err).Msg("could not sign preview token")
		} else {
			r.log.Info().Str("consumer", c.Username).Str("token", token).Msg("jwt token")
		}
	}
	if c.PrintCredentials {
		r.log.Info().
			Str("consumer", c.Username).
			Str("key", cred.Key).
			Str("secret", cred.Secret).
			Msg("credentials")
	}
}

// PreviewToken signs {"iss": key} with the credential secret. Only HS256
// credentials carry a usable shared secret.
func PreviewToken(cred admin.JWTCredential) (string, error) {
	if cred.Algorithm != jwt.SigningMethodHS256.Alg() {
		return "", fmt.Errorf("preview token: unsupported algorithm %q", cred.Algorithm)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"iss": cred.Key})
	return token.SignedString([]byte(cred.Secret))
}

// syncRateLimits converges one consumer-scoped rate-limiting plugin per entry
// against the instance that consumer already owns on the named service. A
// service the consumer does not mention keeps whatever it has there.
func (r *Reconciler) syncRateLimits(ctx context.Context, consumer admin.Consumer, limits []desired.RateLimit, sum *Summary) error {
	for _, rl := range limits {
		service := rl.Service()
		log := r.log.With().Str("consumer", consumer.Username).Str("service", service).Logger()
		path := admin.ServicePluginsPath(service)

		plugins, err := admin.List[admin.Plugin](ctx, r.client, path, r.limits.Plugins)
		if err != nil {
			return fmt.Errorf("list plugins for service %q: %w", service, err)
		}
		owned := make([]admin.Plugin, 0, 1)
		for _, p := range plugins {
			if p.Name == normalize.PluginRateLimiting && p.ConsumerRef() == consumer.ID {
				owned = append(owned, p)
			}
		}

		var want []desired.RateLimit
		if rl.State() == desired.StatePresent {
			want = []desired.RateLimit{rl}
		}
		plan := diff.Compute(want, owned,
			func(desired.RateLimit) string { return normalize.PluginRateLimiting },
			func(p admin.Plugin) string { return p.Name },
		)

		for _, entry := range plan.Create {
			log.Info().Msg("adding rate limit")
			_, err := r.client.Post(ctx, path, r.rateLimitPayload(entry, consumer.ID))
			sum.record(KindRateLimit, ActionCreate, err)
			if err != nil {
				return fmt.Errorf("create rate limit for consumer %q on %q: %w", consumer.Username, service, err)
			}
		}
		for _, m := range plan.Update {
			log.Info().Msg("updating rate limit")
			_, err := r.client.Patch(ctx, admin.ServicePluginPath(service, m.Observed.ID), r.rateLimitPayload(m.Desired, consumer.ID))
			sum.record(KindRateLimit, ActionUpdate, err)
			if err != nil {
				return fmt.Errorf("update rate limit for consumer %q on %q: %w", consumer.Username, service, err)
			}
		}
		for _, p := range plan.Delete {
			log.Info().Msg("deleting rate limit")
			err := r.client.Delete(ctx, admin.ServicePluginPath(service, p.ID))
			sum.record(KindRateLimit, ActionDelete, err)
			if err != nil {
				return fmt.Errorf("delete rate limit for consumer %q on %q: %w", consumer.Username, service, err)
			}
		}
	}
	return nil
}

func (r *Reconciler) rateLimitPayload(rl desired.RateLimit, consumerID string) map[string]any {
	body := rl.Payload()
	body["name"] = normalize.PluginRateLimiting
	body = r.normalizer.Normalize(body)
	body["consumer"] = map[string]any{"id": consumerID}
	return body
}
