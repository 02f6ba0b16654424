// Package reconcile keeps remote firewall rule filters in line with the
// detected address set.
package reconcile

import (
	"context"
	"strings"

	"grimm.is/dynwall/internal/cloudflare"
	"grimm.is/dynwall/internal/config"
	"grimm.is/dynwall/internal/logging"
	"grimm.is/dynwall/internal/metrics"
	"grimm.is/dynwall/internal/resolver"
)

// FilterAPI is the part of the rule management API the reconciler needs.
// Both calls report failure as false after logging the cause.
type FilterAPI interface {
	FirewallRule(ctx context.Context, t config.Target) (*cloudflare.Filter, bool)
	UpdateFilter(ctx context.Context, t config.Target, f cloudflare.Filter) bool
}

// Reconciler writes the desired expression to each target's filter.
type Reconciler struct {
	api     FilterAPI
	logger  *logging.Logger
	metrics *metrics.Registry
}

// New creates a Reconciler. A nil logger uses the default component logger.
func New(api FilterAPI, logger *logging.Logger) *Reconciler {
	if logger == nil {
		logger = logging.WithComponent("reconcile")
	}
	return &Reconciler{
		api:     api,
		logger:  logger,
		metrics: metrics.Get(),
	}
}

// Expression builds the filter expression matching any address in addrs.
// An empty set yields an empty expression.
func Expression(addrs resolver.AddressSet) string {
	clauses := make([]string, 0, len(addrs))
	for _, a := range addrs {
		clauses = append(clauses, "(ip.src eq "+a.String()+")")
	}
	return strings.Join(clauses, " or ")
}

// Reconcile processes targets in order. A target whose rule cannot be
// fetched or updated is skipped and the rest still run. It returns false
// only when there is nothing to reconcile.
func (r *Reconciler) Reconcile(ctx context.Context, targets []config.Target, addrs resolver.AddressSet) bool {
	if len(targets) == 0 {
		r.logger.Error("No firewall rules configured, add at least one cloudflare entry")
		return false
	}

	desired := Expression(addrs)
	seen := make(map[string]struct{}, len(targets))

	for _, t := range targets {
		key := t.String()
		if _, dup := seen[key]; dup {
			r.logger.Debug("Skipping duplicate target", "target", key)
			r.metrics.Reconciles.WithLabelValues("skipped").Inc()
			continue
		}
		seen[key] = struct{}{}

		r.metrics.Reconciles.WithLabelValues(r.reconcileTarget(ctx, t, desired)).Inc()
	}
	return true
}

func (r *Reconciler) reconcileTarget(ctx context.Context, t config.Target, desired string) string {
	filter, ok := r.api.FirewallRule(ctx, t)
	if !ok {
		r.logger.Error("No firewall rule found, verify your configured zone_id and rule_id",
			"zone_id", t.ZoneID, "rule_id", t.RuleID)
		return "failed"
	}

	if filter.Expression == desired {
		r.logger.Debug("Rule up to date", "target", t.String(), "expression", desired)
		return "unchanged"
	}

	update := cloudflare.Filter{ID: filter.ID, Expression: desired, Paused: filter.Paused}
	if !r.api.UpdateFilter(ctx, t, update) {
		return "failed"
	}

	r.metrics.RuleUpdates.WithLabelValues(t.ZoneID, t.RuleID).Inc()
	r.logger.Info("Updating rule", "target", t.String(), "expression", desired)
	return "updated"
}
