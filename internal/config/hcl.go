package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// hclDocument keeps a, aaaa and delay as raw expressions so that a missing
// attribute (null) and a mistyped one can both be reported as warnings
// instead of decode errors.
type hclDocument struct {
	A     hcl.Expression `hcl:"a,optional"`
	AAAA  hcl.Expression `hcl:"aaaa,optional"`
	Delay hcl.Expression `hcl:"delay,optional"`

	Cloudflare []Target `hcl:"cloudflare,block"`

	Detection     string `hcl:"detection,optional"`
	GeoIPDB       string `hcl:"geoip_db,optional"`
	MetricsListen string `hcl:"metrics_listen,optional"`
	LogLevel      string `hcl:"log_level,optional"`
	LogJSON       bool   `hcl:"log_json,optional"`
}

// LoadHCL loads config from HCL bytes
func LoadHCL(data []byte, filename string) (*LoadResult, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("HCL parse error: %s", diags.Error())
	}

	var raw hclDocument
	if diags := gohcl.DecodeBody(file.Body, nil, &raw); diags.HasErrors() {
		return nil, fmt.Errorf("HCL decode error: %s", diags.Error())
	}

	doc := document{
		Cloudflare:    raw.Cloudflare,
		Detection:     raw.Detection,
		GeoIPDB:       raw.GeoIPDB,
		MetricsListen: raw.MetricsListen,
		LogLevel:      raw.LogLevel,
		LogJSON:       raw.LogJSON,
	}
	var err error
	if doc.A, err = exprValue(raw.A); err != nil {
		return nil, fmt.Errorf("a: %w", err)
	}
	if doc.AAAA, err = exprValue(raw.AAAA); err != nil {
		return nil, fmt.Errorf("aaaa: %w", err)
	}
	if doc.Delay, err = exprValue(raw.Delay); err != nil {
		return nil, fmt.Errorf("delay: %w", err)
	}
	return finish("hcl", doc)
}

// exprValue evaluates a literal expression into a plain Go value
// (bool, float64 or string). Null yields nil. Other types are returned as
// their type name, which normalize treats as invalid.
func exprValue(expr hcl.Expression) (any, error) {
	if expr == nil {
		return nil, nil
	}
	v, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%s", diags.Error())
	}
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}
	switch v.Type() {
	case cty.Bool:
		return v.True(), nil
	case cty.Number:
		f, _ := v.AsBigFloat().Float64()
		return f, nil
	case cty.String:
		return v.AsString(), nil
	}
	return v.Type().FriendlyName(), nil
}
