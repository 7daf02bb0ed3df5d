package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseCompile  Phase = "compile"  // layout compilation
	PhaseEncode   Phase = "encode"   // value to buffer
	PhaseDecode   Phase = "decode"   // buffer to value
	PhaseRegister Phase = "register" // schema registration
	PhaseSandbox  Phase = "sandbox"  // guest memory operations
	PhaseImport   Phase = "import"   // WIT import
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidLayout       Kind = "invalid_layout"
	KindUnimplementedLayout Kind = "unimplemented_layout"
	KindValueMismatch       Kind = "value_mismatch"
	KindInvalidData         Kind = "invalid_data"
	KindOutOfBounds         Kind = "out_of_bounds"
	KindOverflow            Kind = "overflow"
	KindFieldMissing        Kind = "field_missing"
	KindInvalidEnum         Kind = "invalid_enum"
	KindInvalidVariant      Kind = "invalid_variant"
	KindRegistration        Kind = "registration"
	KindCyclicDependency    Kind = "cyclic_dependency"
)

// isValueMismatch reports kinds that describe a value not conforming to its layout.
func (k Kind) isValueMismatch() bool {
	switch k {
	case KindValueMismatch, KindOverflow, KindFieldMissing, KindInvalidEnum, KindInvalidVariant:
		return true
	}
	return false
}

// Sentinels for errors.Is. They carry no phase and match any phase.
var (
	ErrInvalidLayout       = &Error{Kind: KindInvalidLayout}
	ErrUnimplementedLayout = &Error{Kind: KindUnimplementedLayout}
	ErrValueMismatch       = &Error{Kind: KindValueMismatch}
	ErrOutOfBounds         = &Error{Kind: KindOutOfBounds}
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	GoType string
	Layout string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" || e.Layout != "" {
		b.WriteString(": ")
		if e.GoType != "" && e.Layout != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", layout ")
			b.WriteString(e.Layout)
		} else if e.GoType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		} else {
			b.WriteString("layout ")
			b.WriteString(e.Layout)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.Layout != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. An empty target phase
// matches any phase, and a value_mismatch target also matches the more
// specific value kinds (overflow, field_missing, invalid_enum, invalid_variant).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase != "" && t.Phase != e.Phase {
		return false
	}
	if t.Kind == e.Kind {
		return true
	}
	return t.Kind == KindValueMismatch && e.Kind.isValueMismatch()
}

// WithPath returns a copy of the error with prefix prepended to its path.
func (e *Error) WithPath(prefix ...string) *Error {
	if len(prefix) == 0 {
		return e
	}
	cp := *e
	cp.Path = append(append(make([]string, 0, len(prefix)+len(e.Path)), prefix...), e.Path...)
	return &cp
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the member path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// Layout sets the layout description
func (b *Builder) Layout(l string) *Builder {
	b.err.Layout = l
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// InvalidLayout creates a compile-time error for a malformed layout node
func InvalidLayout(path []string, detail string, args ...any) *Error {
	return New(PhaseCompile, KindInvalidLayout).Path(path...).Detail(detail, args...).Build()
}

// UnimplementedLayout creates a compile-time error for a supported-in-principle
// but not implemented layout combination
func UnimplementedLayout(path []string, detail string, args ...any) *Error {
	return New(PhaseCompile, KindUnimplementedLayout).Path(path...).Detail(detail, args...).Build()
}

// ValueMismatch creates an encode error for a value that does not fit its layout
func ValueMismatch(path []string, goType, layout string) *Error {
	return &Error{
		Phase:  PhaseEncode,
		Kind:   KindValueMismatch,
		Path:   path,
		GoType: goType,
		Layout: layout,
	}
}

// FieldMissing creates a missing member error
func FieldMissing(phase Phase, path []string, fieldName string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindFieldMissing,
		Path:   path,
		Detail: fmt.Sprintf("required member %q not found", fieldName),
	}
}

// InvalidDiscriminant creates an invalid discriminant error for variants read from a buffer
func InvalidDiscriminant(phase Phase, path []string, disc uint32, count int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidVariant,
		Path:   path,
		Detail: fmt.Sprintf("discriminant %d out of range (%d alternatives)", disc, count),
		Value:  disc,
	}
}

// UnknownVariant creates an error for a variant value whose tag matches no alternative
func UnknownVariant(path []string, tag string) *Error {
	return &Error{
		Phase:  PhaseEncode,
		Kind:   KindInvalidVariant,
		Path:   path,
		Detail: fmt.Sprintf("no alternative with tag %q", tag),
		Value:  tag,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, path []string, value any, target string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Path:   path,
		Layout: target,
		Detail: fmt.Sprintf("value %v overflows %s", value, target),
		Value:  value,
	}
}

// InvalidEnum creates an invalid enum value error
func InvalidEnum(phase Phase, path []string, value any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidEnum,
		Path:   path,
		Layout: "enum",
		Detail: fmt.Sprintf("value %v is not a member of the enum", value),
		Value:  value,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Registration creates a registration error
func Registration(name string, detail string, args ...any) *Error {
	return &Error{
		Phase:  PhaseRegister,
		Kind:   KindRegistration,
		Path:   []string{name},
		Detail: fmt.Sprintf(detail, args...),
	}
}

// CyclicDependency creates an error describing a dependency chain that loops
func CyclicDependency(chain []string) *Error {
	return &Error{
		Phase:  PhaseRegister,
		Kind:   KindCyclicDependency,
		Detail: "detected cyclic dependency: " + strings.Join(chain, " -> "),
	}
}
