package vm

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/kolkov/narlie/internal/backend"
	"github.com/kolkov/narlie/internal/builtins"
	"github.com/kolkov/narlie/internal/host"
	"github.com/kolkov/narlie/internal/types"
)

// Format identifies the persisted artifact layout.
const Format = "narlie-bytecode/1"

// Linker rebinds a persisted function symbol to a callable.
type Linker func(symbol string) (backend.Callable, bool)

// NewLinker returns a Linker that resolves built-in function names first
// and host method symbols second. Either registry may be nil.
func NewLinker(fns *builtins.Registry, hosts *host.Registry) Linker {
	var methods map[string]*host.Method
	if hosts != nil {
		methods = hosts.Symbols()
	}
	return func(symbol string) (backend.Callable, bool) {
		if fns != nil {
			if f, ok := fns.Lookup(symbol); ok {
				return f, true
			}
		}
		if m, ok := methods[symbol]; ok {
			return m, true
		}
		return nil, false
	}
}

type artifact struct {
	Format  string      `json:"format"`
	ID      uuid.UUID   `json:"id"`
	Type    string      `json:"type"`
	Entry   string      `json:"entry,omitempty"`
	Consts  []constant  `json:"consts,omitempty"`
	Funcs   []string    `json:"funcs,omitempty"`
	Methods []codeEntry `json:"methods"`
}

type constant struct {
	Kind string   `json:"kind"`
	Bool *bool    `json:"bool,omitempty"`
	Int  *int64   `json:"int,omitempty"`
	Real *float64 `json:"real,omitempty"`
	Str  *string  `json:"str,omitempty"`
}

type codeEntry struct {
	Name   string   `json:"name"`
	Static bool     `json:"static,omitempty"`
	Locals int      `json:"locals"`
	Code   []Opcode `json:"code"`
}

func encodeConst(v types.Value) (constant, error) {
	c := constant{Kind: v.Kind().String()}
	switch v.Kind() {
	case types.KindNil:
	case types.KindBool:
		b := v.AsBool()
		c.Bool = &b
	case types.KindInt:
		n := v.AsInt()
		c.Int = &n
	case types.KindReal:
		f := v.AsReal()
		c.Real = &f
	case types.KindString:
		s := v.AsStr()
		c.Str = &s
	default:
		return c, fmt.Errorf("cannot persist %s constant", v.Kind())
	}
	return c, nil
}

func decodeConst(c constant) (types.Value, error) {
	kind, ok := types.ParseKind(c.Kind)
	if !ok {
		return types.Nil(), fmt.Errorf("unknown constant kind %q", c.Kind)
	}
	switch {
	case kind == types.KindNil:
		return types.Nil(), nil
	case kind == types.KindBool && c.Bool != nil:
		return types.Bool(*c.Bool), nil
	case kind == types.KindInt && c.Int != nil:
		return types.Int(*c.Int), nil
	case kind == types.KindReal && c.Real != nil:
		return types.Real(*c.Real), nil
	case kind == types.KindString && c.Str != nil:
		return types.Str(*c.Str), nil
	}
	return types.Nil(), fmt.Errorf("malformed %s constant", c.Kind)
}

// Encode writes the program to w as JSON.
func (p *Program) Encode(w io.Writer) error {
	a := artifact{
		Format: Format,
		ID:     p.ID,
		Type:   p.Type,
		Entry:  p.Entry,
	}
	for _, v := range p.Consts {
		c, err := encodeConst(v)
		if err != nil {
			return err
		}
		a.Consts = append(a.Consts, c)
	}
	for _, fn := range p.Funcs {
		a.Funcs = append(a.Funcs, fn.Symbol())
	}
	for _, m := range p.Methods {
		a.Methods = append(a.Methods, codeEntry{
			Name:   m.Name,
			Static: m.Static,
			Locals: m.NumLocals,
			Code:   m.Code,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(&a)
}

// Decode reads a program written by Encode, rebinding its functions
// with link.
func Decode(r io.Reader, link Linker) (*Program, error) {
	var a artifact
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("decoding program: %w", err)
	}
	if a.Format != Format {
		return nil, fmt.Errorf("unsupported program format %q", a.Format)
	}
	p := &Program{ID: a.ID, Type: a.Type, Entry: a.Entry}
	for _, c := range a.Consts {
		v, err := decodeConst(c)
		if err != nil {
			return nil, err
		}
		p.Consts = append(p.Consts, v)
	}
	for _, sym := range a.Funcs {
		fn, ok := link(sym)
		if !ok {
			return nil, fmt.Errorf("unresolved function %q", sym)
		}
		p.Funcs = append(p.Funcs, fn)
	}
	for _, m := range a.Methods {
		p.Methods = append(p.Methods, &Code{
			Name:      m.Name,
			Static:    m.Static,
			NumLocals: m.Locals,
			Code:      m.Code,
		})
	}
	if err := p.verify(); err != nil {
		return nil, err
	}
	return p, nil
}

// Save writes the program to path.
func (p *Program) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := p.Encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Load reads a program from path.
func Load(path string, link Linker) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f, link)
}
