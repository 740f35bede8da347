// Package config builds caches from declarative YAML documents.
//
// A document declares named templates and named caches. A cache may
// reference a template to inherit its settings, overriding any of them
// locally, except the key and value types: once a template declares a
// type, every cache built from it must keep that type or fail fast.
//
//	templates:
//	  short-lived:
//	    key-type: string
//	    capacity: 1000
//	    expiry:
//	      policy: write
//	      duration: 5m
//
//	caches:
//	  sessions:
//	    template: short-lived
//	    value-type: bytes
//
// Types are named through a registry seeded with the Go builtins.
// Custom types join via RegisterType before parsing.
package config

import (
	"bytes"
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bjaus/hoard"
)

// File is a parsed configuration document.
type File struct {
	Templates map[string]Spec `yaml:"templates"`
	Caches    map[string]Spec `yaml:"caches"`
}

// Spec declares a single cache or template. Zero fields inherit from
// the referenced template, or fall back to engine defaults.
type Spec struct {
	Template   string  `yaml:"template"`
	KeyType    string  `yaml:"key-type"`
	ValueType  string  `yaml:"value-type"`
	Capacity   int     `yaml:"capacity"`
	Shards     int     `yaml:"shards"`
	Eviction   string  `yaml:"eviction"`
	Expiry     *Expiry `yaml:"expiry"`
	CopyValues *bool   `yaml:"copy-values"`
}

// Expiry selects an expiration policy. Policy is one of "none",
// "write", or "access"; the latter two require a positive duration.
type Expiry struct {
	Policy   string   `yaml:"policy"`
	Duration Duration `yaml:"duration"`
}

// Duration decodes YAML scalars such as "30s" or "5m" through
// time.ParseDuration.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(v)
	return nil
}

// Parse decodes a YAML document. Unknown fields are rejected so typos
// surface at parse time rather than as silently ignored settings.
func Parse(data []byte) (*File, error) {
	var f File
	if err := unmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &f, nil
}

// Load reads and parses a YAML document from disk.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Resolve merges the named cache with its template, if any. Settings
// declared on the cache win, except key-type and value-type, which
// must agree with the template when both declare them.
func (f *File) Resolve(alias string) (Spec, error) {
	spec, ok := f.Caches[alias]
	if !ok {
		return Spec{}, fmt.Errorf("cache %q is not declared", alias)
	}
	if spec.Template == "" {
		return spec, nil
	}
	tpl, ok := f.Templates[spec.Template]
	if !ok {
		return Spec{}, fmt.Errorf("cache %q references unknown template %q", alias, spec.Template)
	}
	if tpl.Template != "" {
		return Spec{}, fmt.Errorf("template %q must not reference another template", spec.Template)
	}
	if tpl.KeyType != "" && spec.KeyType != "" && tpl.KeyType != spec.KeyType {
		return Spec{}, fmt.Errorf("template %q declares key type %q, cache %q declares %q",
			spec.Template, tpl.KeyType, alias, spec.KeyType)
	}
	if tpl.ValueType != "" && spec.ValueType != "" && tpl.ValueType != spec.ValueType {
		return Spec{}, fmt.Errorf("template %q declares value type %q, cache %q declares %q",
			spec.Template, tpl.ValueType, alias, spec.ValueType)
	}
	if spec.KeyType == "" {
		spec.KeyType = tpl.KeyType
	}
	if spec.ValueType == "" {
		spec.ValueType = tpl.ValueType
	}
	if spec.Capacity == 0 {
		spec.Capacity = tpl.Capacity
	}
	if spec.Shards == 0 {
		spec.Shards = tpl.Shards
	}
	if spec.Eviction == "" {
		spec.Eviction = tpl.Eviction
	}
	if spec.Expiry == nil {
		spec.Expiry = tpl.Expiry
	}
	if spec.CopyValues == nil {
		spec.CopyValues = tpl.CopyValues
	}
	return spec, nil
}

// Build constructs the named cache. Keys and values are declared as
// any at compile time and enforced at runtime against the configured
// types, so a string-keyed cache rejects int keys on first use.
func (f *File) Build(alias string) (*hoard.Cache[any, any], error) {
	spec, err := f.Resolve(alias)
	if err != nil {
		return nil, err
	}
	opts, err := spec.options(alias)
	if err != nil {
		return nil, err
	}
	return hoard.NewCache(opts...), nil
}

func (s Spec) options(alias string) ([]hoard.Option[any, any], error) {
	var opts []hoard.Option[any, any]

	if s.KeyType != "" {
		kt, err := keyType(s.KeyType)
		if err != nil {
			return nil, fmt.Errorf("cache %q: %w", alias, err)
		}
		opts = append(opts, hoard.WithKeyType[any, any](kt))
	}
	if s.ValueType != "" {
		vt, err := valueType(s.ValueType)
		if err != nil {
			return nil, fmt.Errorf("cache %q: %w", alias, err)
		}
		opts = append(opts, hoard.WithValueType[any, any](vt))
	}

	opts = append(opts, hoard.WithCapacity[any, any](s.Capacity))
	if s.Shards > 0 {
		opts = append(opts, hoard.WithShards[any, any](s.Shards))
	}

	switch s.Eviction {
	case "", "lru":
		opts = append(opts, hoard.WithEvictionPrioritizer(hoard.EvictLRU[any, any]()))
	case "lfu":
		opts = append(opts, hoard.WithEvictionPrioritizer(hoard.EvictLFU[any, any]()))
	case "fifo":
		opts = append(opts, hoard.WithEvictionPrioritizer(hoard.EvictFIFO[any, any]()))
	default:
		return nil, fmt.Errorf("cache %q: unknown eviction policy %q", alias, s.Eviction)
	}

	if s.Expiry != nil {
		switch s.Expiry.Policy {
		case "", "none":
			opts = append(opts, hoard.WithExpiry[any, any](hoard.NoExpiry()))
		case "write":
			if s.Expiry.Duration <= 0 {
				return nil, fmt.Errorf("cache %q: expiry policy %q requires a positive duration", alias, s.Expiry.Policy)
			}
			opts = append(opts, hoard.WithExpiry[any, any](hoard.ExpireAfterWrite(time.Duration(s.Expiry.Duration))))
		case "access":
			if s.Expiry.Duration <= 0 {
				return nil, fmt.Errorf("cache %q: expiry policy %q requires a positive duration", alias, s.Expiry.Policy)
			}
			opts = append(opts, hoard.WithExpiry[any, any](hoard.ExpireAfterAccess(time.Duration(s.Expiry.Duration))))
		default:
			return nil, fmt.Errorf("cache %q: unknown expiry policy %q", alias, s.Expiry.Policy)
		}
	}

	if s.CopyValues != nil && *s.CopyValues {
		if s.ValueType != "bytes" {
			return nil, fmt.Errorf("cache %q: copy-values requires value-type bytes, got %q", alias, s.ValueType)
		}
		opts = append(opts, hoard.WithValueCopier[any, any](func(v any) any {
			b, ok := v.([]byte)
			if !ok {
				return v
			}
			return append([]byte(nil), b...)
		}))
	}

	return opts, nil
}

// Manager builds every declared cache and registers each under its
// alias. On any failure the caches built so far are closed and the
// error is returned.
func (f *File) Manager() (*hoard.Manager, error) {
	m := hoard.NewManager()
	aliases := make([]string, 0, len(f.Caches))
	for alias := range f.Caches {
		aliases = append(aliases, alias)
	}
	slices.Sort(aliases)
	for _, alias := range aliases {
		c, err := f.Build(alias)
		if err != nil {
			_ = m.Close()
			return nil, err
		}
		if err := m.Register(alias, c); err != nil {
			_ = c.Close()
			_ = m.Close()
			return nil, err
		}
	}
	return m, nil
}

func unmarshalStrict(data []byte, v any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(v)
}
