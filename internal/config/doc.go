// Package config loads the dynwall configuration file.
//
// # Overview
//
// The same document can be written as JSON (config.json), HCL (config.hcl)
// or YAML (config.yaml). Every format decodes into a format-neutral document
// which is then normalized into a [Config]:
//   - a / aaaa: enable IPv4 / IPv6 detection. Missing or non-boolean values
//     enable both and produce a warning.
//   - delay: poll interval in seconds. Missing or non-integer values fall
//     back to 300; anything below 30 is raised to 30. Both produce warnings.
//   - cloudflare: the rule targets to keep in sync.
//
// Warnings never fail a load. They are returned in [LoadResult.Warnings] for
// the caller to log.
//
// # Example (HCL)
//
//	a     = true
//	aaaa  = false
//	delay = 120
//
//	cloudflare {
//	  zone_id = "023e105f4ecef8ad9ca31a8372d0c353"
//	  rule_id = "372e67954025e0ba6aaa6d586b9e0b60"
//
//	  authentication {
//	    api_token = "..."
//	  }
//	}
package config
