// Package reconcile converges a gateway's admin API onto a desired-state
// document.
//
// Every entity type is diffed by identity against a fresh listing and the
// resulting partitions are applied sequentially. Nothing is cached between
// runs, so a rerun with the same document finishes whatever a failed run left
// undone.
package reconcile

import (
	"errors"
	"sort"

	"github.com/danmuck/gatewaysync/internal/admin"
	"github.com/danmuck/gatewaysync/internal/normalize"
	"github.com/danmuck/gatewaysync/internal/observability"
	"github.com/rs/zerolog"
)

const (
	KindService   = "service"
	KindRoute     = "route"
	KindPlugin    = "plugin"
	KindConsumer  = "consumer"
	KindACL       = "acl"
	KindJWT       = "jwt"
	KindRateLimit = "rate_limit"

	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Limits are the page ceilings used for each listing.
type Limits struct {
	Services      int
	Routes        int
	Plugins       int
	Credentials   int
	ACLs          int
	GlobalPlugins int
}

func DefaultLimits() Limits {
	return Limits{
		Services:      1000,
		Routes:        100,
		Plugins:       100,
		Credentials:   100,
		ACLs:          1000,
		GlobalPlugins: 1000,
	}
}

func (l Limits) withDefaults() Limits {
	def := DefaultLimits()
	fill := func(v *int, d int) {
		if *v <= 0 {
			*v = d
		}
	}
	fill(&l.Services, def.Services)
	fill(&l.Routes, def.Routes)
	fill(&l.Plugins, def.Plugins)
	fill(&l.Credentials, def.Credentials)
	fill(&l.ACLs, def.ACLs)
	fill(&l.GlobalPlugins, def.GlobalPlugins)
	return l
}

type Options struct {
	Limits Limits
	Policy normalize.Policy
	Logger zerolog.Logger
}

// Reconciler applies desired state through one admin client. It is not safe
// for concurrent runs against the same gateway.
type Reconciler struct {
	client     *admin.Client
	normalizer normalize.Normalizer
	limits     Limits
	log        zerolog.Logger
}

func New(client *admin.Client, opts Options) *Reconciler {
	return &Reconciler{
		client:     client,
		normalizer: normalize.New(opts.Policy),
		limits:     opts.Limits.withDefaults(),
		log:        opts.Logger,
	}
}

// Counts tallies the mutations attempted for one entity kind.
type Counts struct {
	Created int
	Updated int
	Deleted int
	Failed  int
}

// Summary collects per-kind counts for the final run log line.
type Summary struct {
	Kinds map[string]Counts
}

func newSummary() Summary {
	return Summary{Kinds: make(map[string]Counts)}
}

// Get returns the counts for kind, zero when nothing was attempted.
func (s Summary) Get(kind string) Counts {
	return s.Kinds[kind]
}

func (s *Summary) record(kind, action string, err error) {
	if s.Kinds == nil {
		s.Kinds = make(map[string]Counts)
	}
	c := s.Kinds[kind]
	if err != nil {
		c.Failed++
	} else {
		switch action {
		case ActionCreate:
			c.Created++
		case ActionUpdate:
			c.Updated++
		case ActionDelete:
			c.Deleted++
		}
	}
	s.Kinds[kind] = c
	observability.RecordChange(kind, action, err == nil)
}

func (s Summary) MarshalZerologObject(e *zerolog.Event) {
	kinds := make([]string, 0, len(s.Kinds))
	for k := range s.Kinds {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		c := s.Kinds[k]
		e.Dict(k, zerolog.Dict().
			Int("created", c.Created).
			Int("updated", c.Updated).
			Int("deleted", c.Deleted).
			Int("failed", c.Failed))
	}
}

// degradable reports whether a failed listing may be treated as empty. A
// ceiling breach never is: an empty view would hide entities from the diff
// just as a truncated one would.
func degradable(err error) bool {
	return !errors.Is(err, admin.ErrPageCeilingExceeded)
}
