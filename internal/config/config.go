// Package config loads the YAML description of upstream lists that
// cmd/upstreamctl (and any embedder) feeds to the upstream package.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/go-upstream/pool/upstream"
)

// Config is the top-level document: a named set of upstream lists.
type Config struct {
	Lists map[string]*ListConfig `yaml:"lists"`
}

// ListConfig describes one upstream list: its rotation policy, limit
// overrides, and the upstream specification strings to parse.
type ListConfig struct {
	Policy    string       `yaml:"policy"`
	Limits    *LimitConfig `yaml:"limits"`
	Upstreams []string     `yaml:"upstreams"`
}

// LimitConfig mirrors upstream.Limits in YAML-friendly, string-duration
// form.
type LimitConfig struct {
	MaxErrors       int     `yaml:"max_errors"`
	ErrorTime       string  `yaml:"error_time"`
	ReviveTime      string  `yaml:"revive_time"`
	ReviveJitter    float64 `yaml:"revive_jitter"`
	DNSTimeout      string  `yaml:"dns_timeout"`
	DNSRetransmits  int     `yaml:"dns_retransmits"`
	LazyResolveTime string  `yaml:"lazy_resolve_time"`
}

// Load reads and parses a YAML config file from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// policyByName maps the YAML policy string to an upstream.Policy, the
// same prefixes ParseLine recognizes inline.
var policyByName = map[string]upstream.Policy{
	"":             upstream.PolicyUndef,
	"random":       upstream.PolicyRandom,
	"round-robin":  upstream.PolicyRoundRobin,
	"master-slave": upstream.PolicyMasterSlave,
	"hash":         upstream.PolicyHash,
	"sequential":   upstream.PolicySequential,
}

// BuildList creates an upstream.List against ctx from lc, parsing every
// upstream specification string and applying the configured policy and
// limit overrides.
func BuildList(ctx *upstream.Context, lc *ListConfig, defaultPort uint16) (*upstream.List, error) {
	list := upstream.NewList(ctx)

	if p, ok := policyByName[lc.Policy]; ok && p != upstream.PolicyUndef {
		list.SetRotation(p)
	} else if lc.Policy != "" {
		return nil, fmt.Errorf("config: unknown policy %q", lc.Policy)
	}

	if lc.Limits != nil {
		lim, err := lc.Limits.toLimits()
		if err != nil {
			return nil, err
		}
		list.SetLimits(lim)
	}

	for _, spec := range lc.Upstreams {
		if !upstream.ParseLine(list, spec, defaultPort, nil) {
			return nil, fmt.Errorf("config: no upstream accepted from %q", spec)
		}
	}

	return list, nil
}

func (lc *LimitConfig) toLimits() (upstream.Limits, error) {
	lim := upstream.DefaultLimits()
	lim.MaxErrors = nonZeroInt(lc.MaxErrors, lim.MaxErrors)
	lim.ReviveJitter = nonZeroFloat(lc.ReviveJitter, lim.ReviveJitter)
	lim.DNSRetransmits = nonZeroInt(lc.DNSRetransmits, lim.DNSRetransmits)

	var err error
	if lim.ErrorTime, err = parseDurationOr(lc.ErrorTime, lim.ErrorTime); err != nil {
		return lim, err
	}
	if lim.ReviveTime, err = parseDurationOr(lc.ReviveTime, lim.ReviveTime); err != nil {
		return lim, err
	}
	if lim.DNSTimeout, err = parseDurationOr(lc.DNSTimeout, lim.DNSTimeout); err != nil {
		return lim, err
	}
	if lim.LazyResolveTime, err = parseDurationOr(lc.LazyResolveTime, lim.LazyResolveTime); err != nil {
		return lim, err
	}
	return lim, nil
}

func parseDurationOr(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	return time.ParseDuration(s)
}

func nonZeroInt(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}

func nonZeroFloat(v, fallback float64) float64 {
	if v == 0 {
		return fallback
	}
	return v
}
