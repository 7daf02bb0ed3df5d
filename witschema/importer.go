package witschema

import (
	stderrors "errors"
	"io"
	"strconv"

	"go.bytecodealliance.org/wit"
	"go.hasen.dev/generic"

	"github.com/wippyai/schemabuf/errors"
	"github.com/wippyai/schemabuf/layout"
)

// Importer converts WIT types to layouts. Each type definition is
// imported once, so layouts referenced from several places share the
// same node and the same compiled functions. The zero value is ready to
// use. Not safe for concurrent use.
type Importer struct {
	defs    map[*wit.TypeDef]layout.Layout
	skipped []string

	// SkipUnimplemented makes ImportResolve leave out types that have no
	// layout (64-bit numbers, floats, flags, handles and anything built
	// from them) instead of failing.
	SkipUnimplemented bool
}

func NewImporter() *Importer {
	return &Importer{}
}

// Import returns the layout for t.
func (im *Importer) Import(t wit.Type) (layout.Layout, error) {
	return im.importType(t, nil)
}

// ImportResolve imports every named type definition of res. Types are
// keyed by name; when two interfaces define the same name, the later one
// is only reachable by its qualified "interface.name" key, which is
// registered for every interface-owned type.
func (im *Importer) ImportResolve(res *wit.Resolve) (map[string]layout.Layout, error) {
	out := make(map[string]layout.Layout)
	for _, td := range res.TypeDefs {
		if td.Name == nil {
			continue
		}
		name := *td.Name

		l, err := im.importType(td, []string{name})
		if err != nil {
			if im.SkipUnimplemented && stderrors.Is(err, errors.ErrUnimplementedLayout) {
				im.skipped = append(im.skipped, name)
				continue
			}
			return nil, err
		}
		if _, dup := out[name]; !dup {
			out[name] = l
		}
		if owner := ownerName(td.Owner); owner != "" {
			out[owner+"."+name] = l
		}
	}
	return out, nil
}

// Skipped returns the names left out by ImportResolve.
func (im *Importer) Skipped() []string {
	return im.skipped
}

// DecodeJSON reads the JSON form of a resolved WIT package, as printed by
// wasm-tools component wit --json.
func DecodeJSON(r io.Reader) (*wit.Resolve, error) {
	res, err := wit.DecodeJSON(r)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseImport, errors.KindInvalidData, err, "decode WIT JSON")
	}
	return res, nil
}

func ownerName(owner wit.TypeOwner) string {
	switch o := owner.(type) {
	case *wit.Interface:
		if o.Name != nil {
			return *o.Name
		}
	case *wit.World:
		return o.Name
	}
	return ""
}

func (im *Importer) importType(t wit.Type, path []string) (layout.Layout, error) {
	switch t := t.(type) {
	case wit.Bool:
		return layout.Bool, nil
	case wit.U8:
		return layout.Uint8, nil
	case wit.S8:
		return layout.Int8, nil
	case wit.U16:
		return layout.Uint16, nil
	case wit.S16:
		return layout.Int16, nil
	case wit.U32:
		return layout.Uint32, nil
	case wit.S32:
		return layout.Int32, nil
	case wit.Char:
		return layout.Uint32, nil
	case wit.String:
		return layout.String, nil
	case wit.U64, wit.S64, wit.F32, wit.F64:
		return nil, unimplemented(path, "%T has no layout kind", t)
	case *wit.TypeDef:
		return im.importTypeDef(t, path)
	case nil:
		return nil, errors.New(errors.PhaseImport, errors.KindInvalidLayout).
			Path(path...).
			Detail("missing type").
			Build()
	default:
		return nil, unimplemented(path, "unsupported WIT type: %T", t)
	}
}

func (im *Importer) importTypeDef(td *wit.TypeDef, path []string) (layout.Layout, error) {
	generic.InitMap(&im.defs)
	if l, ok := im.defs[td]; ok {
		return l, nil
	}

	name := "anonymous"
	if td.Name != nil {
		name = *td.Name
	}

	var (
		l   layout.Layout
		err error
	)
	switch kind := td.Kind.(type) {
	case *wit.Record:
		fields := make([]layout.Field, 0, len(kind.Fields))
		for _, f := range kind.Fields {
			ft, err := im.importType(f.Type, appendPath(path, f.Name))
			if err != nil {
				return nil, err
			}
			fields = append(fields, layout.Field{Name: f.Name, Layout: ft})
		}
		l, err = structOf(name, path, fields)
	case *wit.Tuple:
		fields := make([]layout.Field, 0, len(kind.Types))
		for i, t := range kind.Types {
			member := strconv.Itoa(i)
			ft, err := im.importType(t, appendPath(path, member))
			if err != nil {
				return nil, err
			}
			fields = append(fields, layout.Field{Name: member, Layout: ft})
		}
		l, err = structOf(name, path, fields)
	case *wit.List:
		var elem layout.Layout
		if elem, err = im.importType(kind.Type, appendPath(path, "[]")); err == nil {
			l = &layout.Vector{Element: elem}
		}
	case *wit.Option:
		var elem layout.Layout
		if elem, err = im.importType(kind.Type, appendPath(path, "?")); err == nil {
			l = &layout.Optional{Element: elem}
		}
	case *wit.Enum:
		values := make([]any, len(kind.Cases))
		for i, c := range kind.Cases {
			values[i] = c.Name
		}
		l = &layout.Enum{Values: values}
	case *wit.Variant:
		alts := make([]*layout.Struct, 0, len(kind.Cases))
		for _, c := range kind.Cases {
			alt, err := im.alternative(c.Name, c.Type, path)
			if err != nil {
				return nil, err
			}
			alts = append(alts, alt)
		}
		l = &layout.Variant{Alternatives: alts}
	case *wit.Result:
		var ok, fail *layout.Struct
		if ok, err = im.alternative("ok", kind.OK, path); err != nil {
			return nil, err
		}
		if fail, err = im.alternative("error", kind.Err, path); err != nil {
			return nil, err
		}
		l = &layout.Variant{Alternatives: []*layout.Struct{ok, fail}}
	case *wit.Flags:
		err = unimplemented(path, "flags %s", name)
	case *wit.Own, *wit.Borrow:
		err = unimplemented(path, "resource handle %s", name)
	case wit.Type:
		l, err = im.importType(kind, path)
	default:
		err = unimplemented(path, "unsupported TypeDef kind: %T", kind)
	}
	if err != nil {
		return nil, err
	}

	im.defs[td] = l
	return l, nil
}

// alternative builds the struct for one variant case: a single "value"
// member, or no members when the case carries no payload.
func (im *Importer) alternative(tag string, t wit.Type, path []string) (*layout.Struct, error) {
	casePath := appendPath(path, tag)
	if t == nil {
		return (&layout.Struct{Name: tag}).WithTag(tag), nil
	}
	payload, err := im.importType(t, casePath)
	if err != nil {
		return nil, err
	}
	s, err := structOf(tag, casePath, []layout.Field{{Name: "value", Layout: payload}})
	if err != nil {
		return nil, err
	}
	return s.WithTag(tag), nil
}

func structOf(name string, path []string, fields []layout.Field) (*layout.Struct, error) {
	s, err := layout.StructOf(name, fields...)
	if err != nil {
		if le, ok := err.(*errors.Error); ok {
			cp := *le
			cp.Phase = errors.PhaseImport
			return nil, cp.WithPath(path...)
		}
		return nil, err
	}
	return s, nil
}

func unimplemented(path []string, detail string, args ...any) error {
	return errors.New(errors.PhaseImport, errors.KindUnimplementedLayout).
		Path(path...).
		Detail(detail, args...).
		Build()
}

func appendPath(path []string, segment string) []string {
	return append(append(make([]string, 0, len(path)+1), path...), segment)
}
