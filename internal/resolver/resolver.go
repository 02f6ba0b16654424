// Package resolver discovers the caller's public IPv4 and IPv6 addresses.
//
// Each family has a primary and a secondary echo endpoint. The secondary is
// only asked when the primary fails, so a family costs at most two lookups
// per call. A family whose endpoints both fail is simply left out of the
// result.
package resolver

import (
	"context"
	"fmt"
	"net/netip"

	"grimm.is/dynwall/internal/brand"
	"grimm.is/dynwall/internal/config"
	"grimm.is/dynwall/internal/logging"
	"grimm.is/dynwall/internal/metrics"
)

// Source looks up the caller's address at one echo endpoint.
type Source interface {
	Lookup(ctx context.Context) (netip.Addr, error)
	String() string
}

type warnKey struct {
	family Family
	tier   Tier
}

// Resolver is not safe for concurrent use; it belongs to one poll loop.
type Resolver struct {
	sources map[Family][2]Source
	warned  map[warnKey]struct{}
	logger  *logging.Logger
	metrics *metrics.Registry
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for detection warnings.
func WithLogger(l *logging.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a resolver over explicit primary/secondary sources.
func New(sources map[Family][2]Source, opts ...Option) *Resolver {
	r := &Resolver{
		sources: sources,
		warned:  make(map[warnKey]struct{}),
		logger:  logging.WithComponent("resolver"),
		metrics: metrics.Get(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewTrace creates a resolver over Cloudflare's HTTP trace endpoints.
func NewTrace(opts ...Option) *Resolver {
	sources := make(map[Family][2]Source, 2)
	for _, f := range []Family{IPv4, IPv6} {
		client := HTTPClientForFamily(f)
		urls := TraceEndpoints[f]
		var pair [2]Source
		for i, u := range urls {
			pair[i] = &TraceSource{URL: u, Client: client, UserAgent: brand.UserAgent(brand.Version)}
		}
		sources[f] = pair
	}
	return New(sources, opts...)
}

// NewDNS creates a resolver over Cloudflare's whoami DNS names.
func NewDNS(opts ...Option) *Resolver {
	sources := make(map[Family][2]Source, 2)
	for _, f := range []Family{IPv4, IPv6} {
		servers := DNSServers[f]
		sources[f] = [2]Source{NewDNSSource(servers[0], f), NewDNSSource(servers[1], f)}
	}
	return New(sources, opts...)
}

// ForDetection picks the resolver for a config detection mode.
func ForDetection(detection string, opts ...Option) *Resolver {
	if detection == config.DetectionDNS {
		return NewDNS(opts...)
	}
	return NewTrace(opts...)
}

// Resolve returns the address of every enabled family that could be
// detected, IPv4 first. It never fails; undetected families are absent.
func (r *Resolver) Resolve(ctx context.Context, families []Family) AddressSet {
	enabled := make(map[Family]bool, len(families))
	for _, f := range families {
		enabled[f] = true
	}

	var set AddressSet
	for _, f := range []Family{IPv4, IPv6} {
		if !enabled[f] {
			continue
		}
		if addr, ok := r.resolveFamily(ctx, f); ok {
			set = append(set, addr)
		}
	}
	return set
}

func (r *Resolver) resolveFamily(ctx context.Context, f Family) (netip.Addr, bool) {
	tiers, ok := r.sources[f]
	if !ok {
		return netip.Addr{}, false
	}

	for i, src := range tiers {
		if src == nil {
			continue
		}
		tier := Tier(i)
		addr, err := r.lookup(ctx, f, src)
		r.metrics.RecordResolve(f.String(), tier.String(), err)
		if err == nil {
			r.logger.Debug("Address detected", "family", f.Label(), "via", src.String(), "address", addr.String())
			return addr, true
		}
		r.warnOnce(f, tier, src, tiers, err)
	}
	return netip.Addr{}, false
}

func (r *Resolver) lookup(ctx context.Context, f Family, src Source) (netip.Addr, error) {
	addr, err := src.Lookup(ctx)
	if err != nil {
		return netip.Addr{}, err
	}
	if f == IPv4 {
		addr = addr.Unmap()
	}
	if !f.Matches(addr) {
		return netip.Addr{}, fmt.Errorf("%s endpoint returned non-%s address %s", f.Label(), f.Label(), addr)
	}
	return addr, nil
}

// warnOnce logs a failed tier at warn level the first time it fails and at
// debug level afterwards.
func (r *Resolver) warnOnce(f Family, tier Tier, src Source, tiers [2]Source, err error) {
	key := warnKey{family: f, tier: tier}
	log := r.logger.Warn
	if _, seen := r.warned[key]; seen {
		log = r.logger.Debug
	} else {
		r.warned[key] = struct{}{}
	}

	if tier == Primary && tiers[Secondary] != nil {
		log(fmt.Sprintf("%s not detected via %s, trying %s", f.Label(), src, tiers[Secondary]), "error", err)
		return
	}
	log(fmt.Sprintf("%s not detected via %s. Verify your ISP or DNS provider isn't blocking Cloudflare's IPs.", f.Label(), src), "error", err)
}

// Warned reports whether the failure warning for (family, tier) was
// already emitted.
func (r *Resolver) Warned(f Family, tier Tier) bool {
	_, ok := r.warned[warnKey{family: f, tier: tier}]
	return ok
}
