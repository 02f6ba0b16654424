package cloudflare

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"grimm.is/dynwall/internal/config"
)

// ruleEnvelope is the subset of GET /zones/{zone}/firewall/rules/{rule}
// that matters here. Pointers distinguish absent fields from zero values.
type ruleEnvelope struct {
	Result *struct {
		Filter *struct {
			ID         *string `json:"id"`
			Expression *string `json:"expression"`
			Paused     bool    `json:"paused"`
		} `json:"filter"`
	} `json:"result"`
}

// ruleResponse decodes a firewall rule and rejects payloads without a
// usable filter, so Do reports them as ErrMalformed.
type ruleResponse struct {
	Filter Filter
}

func (r *ruleResponse) UnmarshalJSON(data []byte) error {
	var env ruleEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	switch {
	case env.Result == nil:
		return errors.New("missing result")
	case env.Result.Filter == nil:
		return errors.New("missing result.filter")
	case env.Result.Filter.ID == nil || *env.Result.Filter.ID == "":
		return errors.New("missing result.filter.id")
	case env.Result.Filter.Expression == nil:
		return errors.New("missing result.filter.expression")
	}
	f := env.Result.Filter
	r.Filter = Filter{ID: *f.ID, Expression: *f.Expression, Paused: f.Paused}
	return nil
}

// FirewallRule fetches the filter behind a target's firewall rule.
// ok is false when the rule could not be fetched or had no usable filter;
// the reason has already been logged.
func (c *Client) FirewallRule(ctx context.Context, t config.Target) (*Filter, bool) {
	var rule ruleResponse
	if !c.Call(ctx, http.MethodGet, RulePath(t.ZoneID, t.RuleID), t.Authentication, nil, &rule) {
		return nil, false
	}
	return &rule.Filter, true
}

// UpdateFilter replaces the filter with f. ID and paused state are sent
// back unchanged; only the expression is expected to differ.
func (c *Client) UpdateFilter(ctx context.Context, t config.Target, f Filter) bool {
	return c.Call(ctx, http.MethodPut, FilterPath(t.ZoneID, f.ID), t.Authentication, f, nil)
}
