package compiler

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"cuelang.org/go/cue"

	"github.com/roach88/catom/internal/atom"
	"github.com/roach88/catom/internal/typeset"
)

type memberAttr struct {
	readonly bool
	constant bool
	required bool
	strict   bool
	set      bool
	enum     bool
	rng      bool

	enumItems []string
	low, high *int
	eq        *atom.Equality
	del       *atom.DelattrMode
}

func parseMemberAttr(v cue.Value) (memberAttr, error) {
	var a memberAttr
	bad := func(format string, args ...any) error {
		return &CompileError{Field: "@member", Message: fmt.Sprintf(format, args...), Pos: v.Pos()}
	}
	for _, attr := range v.Attributes(cue.FieldAttr) {
		if attr.Name() != "member" {
			continue
		}
		for i := range attr.NumArgs() {
			key, val := attr.Arg(i)
			switch key {
			case "readonly":
				a.readonly = true
			case "constant":
				a.constant = true
			case "required":
				a.required = true
			case "strict":
				a.strict = true
			case "set":
				a.set = true
			case "enum":
				a.enum = true
				if val != "" {
					a.enumItems = strings.Split(val, "|")
				}
			case "range":
				a.rng = true
			case "low", "high":
				n, err := strconv.Atoi(val)
				if err != nil {
					return a, bad("%s bound %q is not an integer", key, val)
				}
				a.rng = true
				if key == "low" {
					a.low = &n
				} else {
					a.high = &n
				}
			case "eq":
				eq, ok := atom.ParseEquality(val)
				if !ok {
					return a, bad("unknown equality %q", val)
				}
				a.eq = &eq
			case "delete":
				mode, ok := parseDelete(val)
				if !ok {
					return a, bad("unknown delete mode %q", val)
				}
				a.del = &mode
			default:
				return a, bad("unknown flag %q", key)
			}
		}
	}
	if a.constant && a.readonly {
		return a, bad("constant and readonly are exclusive")
	}
	if a.enum && a.rng {
		return a, bad("enum and range are exclusive")
	}
	return a, nil
}

func parseDelete(s string) (atom.DelattrMode, bool) {
	switch s {
	case "slot":
		return atom.DelattrSlot, true
	case "forbid":
		return atom.DelattrForbidden, true
	case "default":
		return atom.DelattrResetDefault, true
	}
	return 0, false
}

// compileMember builds the member for one schema field.
func compileMember(v cue.Value) (*atom.Member, error) {
	a, err := parseMemberAttr(v)
	if err != nil {
		return nil, err
	}

	kind := v.IncompleteKind()
	nullable := kind != cue.TopKind && kind&cue.NullKind != 0
	base := kind
	if nullable {
		base = kind &^ cue.NullKind
	}

	var opts []atom.MemberOption
	if nullable {
		opts = append(opts, atom.Nillable())
	}
	if a.strict {
		opts = append(opts, atom.Strict())
	}
	if a.readonly {
		opts = append(opts, atom.ReadOnly())
	}
	if a.eq != nil {
		opts = append(opts, atom.WithEquality(*a.eq))
	}
	if a.del != nil {
		opts = append(opts, atom.WithDelattr(*a.del))
	}
	if doc := docText(v); doc != "" {
		opts = append(opts, atom.WithMetadata("doc", doc))
	}

	def, hasDef, err := defaultOf(v, base)
	if err != nil {
		return nil, err
	}
	if a.constant {
		if !hasDef {
			return nil, &CompileError{Field: "@member", Message: "a constant needs a concrete value", Pos: v.Pos()}
		}
		return atom.Constant(def, opts...), nil
	}

	withDefault := opts
	switch {
	case a.required:
		withDefault = append(opts[:len(opts):len(opts)], atom.WithDefault(atom.Required()))
	case hasDef:
		withDefault = append(opts[:len(opts):len(opts)], atom.WithDefault(staticDefault(a.set, def)))
	}

	switch {
	case a.enum:
		items, err := enumItems(v, base, a.enumItems)
		if err != nil {
			return nil, err
		}
		return atom.Enum(items, withDefault...), nil
	case a.rng:
		if base != cue.IntKind {
			return nil, &CompileError{Field: "@member", Message: "range needs an int field", Pos: v.Pos()}
		}
		return atom.Range(a.low, a.high, withDefault...), nil
	}

	switch base {
	case cue.ListKind:
		item, err := itemMember(v.LookupPath(cue.MakePath(cue.AnyIndex)))
		if err != nil {
			return nil, err
		}
		if a.set {
			return atom.Set(item, withDefault...), nil
		}
		return atom.List(item, withDefault...), nil
	case cue.StructKind:
		val, err := itemMember(v.LookupPath(cue.MakePath(cue.AnyString)))
		if err != nil {
			return nil, err
		}
		return atom.Dict(atom.Str(), val, withDefault...), nil
	}
	if a.set {
		return nil, &CompileError{Field: "@member", Message: "set needs a list field", Pos: v.Pos()}
	}

	switch base {
	case cue.StringKind:
		return atom.Str(withDefault...), nil
	case cue.IntKind:
		return atom.Int(withDefault...), nil
	case cue.FloatKind, cue.NumberKind:
		return atom.Float(withDefault...), nil
	case cue.BoolKind:
		return atom.Bool(withDefault...), nil
	case cue.BytesKind:
		return atom.Bytes(withDefault...), nil
	case cue.TopKind:
		return atom.Value(withDefault...), nil
	case cue.BottomKind:
		return nil, &CompileError{Field: "type", Message: "field has no usable type", Pos: v.Pos()}
	}
	if base&(cue.ListKind|cue.StructKind) != 0 {
		return atom.Value(withDefault...), nil
	}

	// Several scalar kinds become a Typed member over their Go types. Typed
	// derives its default from nullability, so a CUE default is dropped.
	if a.required {
		opts = withDefault
	}
	var types []reflect.Type
	for _, k := range []cue.Kind{cue.StringKind, cue.IntKind, cue.FloatKind, cue.BoolKind, cue.BytesKind} {
		if base&k != 0 {
			types = append(types, goType(k))
		}
	}
	if nullable {
		return atom.Typed(typeset.Nullable(types...), opts...), nil
	}
	return atom.Typed(typeset.Of(types...), opts...), nil
}

func goType(k cue.Kind) reflect.Type {
	switch k {
	case cue.StringKind:
		return typeset.TypeOf[string]()
	case cue.IntKind:
		return typeset.TypeOf[int]()
	case cue.FloatKind:
		return typeset.TypeOf[float64]()
	case cue.BoolKind:
		return typeset.TypeOf[bool]()
	}
	return typeset.TypeOf[[]byte]()
}

// itemMember builds the element member of a list or the value member of a
// pattern struct. A missing pattern means any value.
func itemMember(v cue.Value) (*atom.Member, error) {
	if !v.Exists() {
		return atom.Value(), nil
	}
	return compileMember(v)
}

// defaultOf returns the marked default of v, or v itself when it is
// concrete. Empty list and struct defaults count as no default.
func defaultOf(v cue.Value, base cue.Kind) (any, bool, error) {
	d, ok := v.Default()
	if !ok {
		if !v.IsConcrete() {
			return nil, false, nil
		}
		d = v
	}
	if err := d.Validate(cue.Concrete(true)); err != nil {
		return nil, false, nil
	}
	x, err := decode(d)
	if err != nil {
		return nil, false, err
	}
	switch c := x.(type) {
	case []any:
		if len(c) == 0 {
			return nil, false, nil
		}
	case map[any]any:
		if len(c) == 0 {
			return nil, false, nil
		}
	}
	if n, ok := x.(int); ok && (base == cue.FloatKind || base == cue.NumberKind) {
		x = float64(n)
	}
	return x, true, nil
}

func staticDefault(set bool, v any) atom.Default {
	switch x := v.(type) {
	case []any:
		if set {
			return atom.DefaultSet(x...)
		}
		return atom.DefaultList(x...)
	case map[any]any:
		return atom.DefaultDict(x)
	}
	return atom.DefaultValue(v)
}

// decode converts a concrete CUE value to the Go value a member stores.
func decode(v cue.Value) (any, error) {
	switch v.Kind() {
	case cue.NullKind:
		return nil, nil
	case cue.BoolKind:
		return v.Bool()
	case cue.IntKind:
		n, err := v.Int64()
		return int(n), err
	case cue.FloatKind, cue.NumberKind:
		return v.Float64()
	case cue.StringKind:
		return v.String()
	case cue.BytesKind:
		return v.Bytes()
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		items := []any{}
		for iter.Next() {
			x, err := decode(iter.Value())
			if err != nil {
				return nil, err
			}
			items = append(items, x)
		}
		return items, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		entries := map[any]any{}
		for iter.Next() {
			x, err := decode(iter.Value())
			if err != nil {
				return nil, err
			}
			entries[iter.Label()] = x
		}
		return entries, nil
	}
	return nil, &CompileError{Field: "default", Message: fmt.Sprintf("unsupported value kind %v", v.Kind()), Pos: v.Pos()}
}

// enumItems reads the items of an enum either from the attribute or from
// the concrete disjuncts of v.
func enumItems(v cue.Value, base cue.Kind, listed []string) ([]any, error) {
	var items []any
	if len(listed) > 0 {
		for _, s := range listed {
			x, err := parseItem(base, strings.TrimSpace(s))
			if err != nil {
				return nil, &CompileError{Field: "@member", Message: err.Error(), Pos: v.Pos()}
			}
			items = append(items, x)
		}
		return items, nil
	}
	op, args := v.Expr()
	if op != cue.OrOp {
		return nil, &CompileError{Field: "@member", Message: "enum needs items or a disjunction of values", Pos: v.Pos()}
	}
	for _, arg := range args {
		if !arg.IsConcrete() {
			continue
		}
		x, err := decode(arg)
		if err != nil {
			return nil, err
		}
		items = append(items, x)
	}
	if len(items) == 0 {
		return nil, &CompileError{Field: "@member", Message: "enum disjunction has no concrete values", Pos: v.Pos()}
	}
	return items, nil
}

func parseItem(base cue.Kind, s string) (any, error) {
	switch base {
	case cue.IntKind:
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("enum item %q is not an int", s)
		}
		return n, nil
	case cue.FloatKind, cue.NumberKind:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("enum item %q is not a number", s)
		}
		return f, nil
	}
	return s, nil
}

func docText(v cue.Value) string {
	var parts []string
	for _, cg := range v.Doc() {
		if t := strings.TrimSpace(cg.Text()); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}
