package compiler

import (
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/catom/internal/atom"
)

// Option configures compilation.
type Option func(*config)

type config struct {
	registry *atom.Registry
	typeOpts []atom.TypeOption
}

// WithRegistry defines the compiled types in r instead of a new registry.
func WithRegistry(r *atom.Registry) Option {
	return func(c *config) { c.registry = r }
}

// WithTypeOptions appends opts to every compiled type, after the options
// derived from the schema.
func WithTypeOptions(opts ...atom.TypeOption) Option {
	return func(c *config) { c.typeOpts = append(c.typeOpts, opts...) }
}

// CompileString compiles schema source. filename is used in positions.
func CompileString(src, filename string, opts ...Option) (*atom.Registry, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileTypes(v, opts...)
}

// CompileFile loads a .cue file, or every .cue file of a directory, and
// compiles it.
func CompileFile(path string, opts ...Option) (*atom.Registry, error) {
	v, err := Load(path)
	if err != nil {
		return nil, err
	}
	return CompileTypes(v, opts...)
}

// Load builds the CUE value of a file or of the package in a directory.
func Load(path string) (cue.Value, error) {
	info, err := os.Stat(path)
	if err != nil {
		return cue.Value{}, fmt.Errorf("schema not found: %w", err)
	}
	ctx := cuecontext.New()
	if !info.IsDir() {
		src, err := os.ReadFile(path)
		if err != nil {
			return cue.Value{}, fmt.Errorf("reading schema: %w", err)
		}
		v := ctx.CompileBytes(src, cue.Filename(path))
		if err := v.Err(); err != nil {
			return cue.Value{}, formatCUEError(err)
		}
		return v, nil
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: path})
	if len(instances) == 0 {
		return cue.Value{}, fmt.Errorf("no CUE instances in %s", path)
	}
	if err := instances[0].Err; err != nil {
		return cue.Value{}, formatCUEError(err)
	}
	v := ctx.BuildInstance(instances[0])
	if err := v.Err(); err != nil {
		return cue.Value{}, formatCUEError(err)
	}
	return v, nil
}

type typeDecl struct {
	name    string
	value   cue.Value
	extends string
	opts    []atom.TypeOption
}

// CompileTypes compiles the "types" struct of v. Base types are defined
// before their subtypes regardless of source order; an @extends cycle is a
// CompileError.
func CompileTypes(v cue.Value, opts ...Option) (*atom.Registry, error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.registry == nil {
		cfg.registry = atom.NewRegistry()
	}

	typesVal := v.LookupPath(cue.ParsePath("types"))
	if !typesVal.Exists() {
		return nil, &CompileError{Field: "types", Message: "no types declared", Pos: v.Pos()}
	}
	iter, err := typesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var order []string
	decls := make(map[string]*typeDecl)
	for iter.Next() {
		d, err := parseTypeDecl(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		order = append(order, d.name)
		decls[d.name] = d
	}

	c := &typeCompiler{cfg: cfg, decls: decls, state: make(map[string]int)}
	for _, name := range order {
		if _, err := c.define(name, nil); err != nil {
			return nil, err
		}
	}
	return cfg.registry, nil
}

func parseTypeDecl(name string, v cue.Value) (*typeDecl, error) {
	if v.IncompleteKind() != cue.StructKind {
		return nil, &CompileError{Field: "types." + name, Message: "a type must be a struct", Pos: v.Pos()}
	}
	d := &typeDecl{name: name, value: v}
	for _, attr := range v.Attributes(cue.DeclAttr) {
		switch attr.Name() {
		case "extends":
			base, err := attr.String(0)
			if err != nil || base == "" {
				return nil, &CompileError{Field: "types." + name, Message: "@extends needs a type name", Pos: v.Pos()}
			}
			d.extends = base
		case "type":
			for i := range attr.NumArgs() {
				key, _ := attr.Arg(i)
				switch key {
				case "eager":
					d.opts = append(d.opts, atom.WithEagerDefaults(true))
				case "dynamic":
					d.opts = append(d.opts, atom.WithDynamicAttributes(true))
				default:
					return nil, &CompileError{
						Field:   "types." + name,
						Message: fmt.Sprintf("unknown @type flag %q", key),
						Pos:     v.Pos(),
					}
				}
			}
		}
	}
	return d, nil
}

const (
	unvisited = iota
	visiting
	done
)

type typeCompiler struct {
	cfg   *config
	decls map[string]*typeDecl
	state map[string]int
}

func (c *typeCompiler) define(name string, chain []string) (*atom.Type, error) {
	d, ok := c.decls[name]
	if !ok {
		if t, ok := c.cfg.registry.Lookup(name); ok {
			return t, nil
		}
		return nil, &CompileError{Field: "types", Message: fmt.Sprintf("unknown base type %q", name)}
	}
	switch c.state[name] {
	case done:
		t, _ := c.cfg.registry.Lookup(name)
		return t, nil
	case visiting:
		path := append(chain, name)
		return nil, &CompileError{
			Field:   "types." + name,
			Message: "@extends cycle: " + strings.Join(path, " -> "),
			Pos:     d.value.Pos(),
		}
	}
	c.state[name] = visiting

	var opts []atom.TypeOption
	if d.extends != "" {
		base, err := c.define(d.extends, append(chain, name))
		if err != nil {
			return nil, err
		}
		opts = append(opts, atom.Extends(base))
	}
	opts = append(opts, d.opts...)

	fields, err := d.value.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for fields.Next() {
		member := fields.Label()
		m, err := compileMember(fields.Value())
		if err != nil {
			if ce, ok := err.(*CompileError); ok && !strings.HasPrefix(ce.Field, "types.") {
				ce.Field = fmt.Sprintf("types.%s.%s", name, member)
			}
			return nil, err
		}
		opts = append(opts, atom.Field(member, m))
	}
	opts = append(opts, c.cfg.typeOpts...)

	t, err := c.cfg.registry.Define(name, opts...)
	if err != nil {
		return nil, &CompileError{
			Field:   "types." + name,
			Message: err.Error(),
			Pos:     d.value.Pos(),
			Err:     err,
		}
	}
	c.state[name] = done
	return t, nil
}
