package parser

import (
	"github.com/kolkov/narlie/internal/ast"
	"github.com/kolkov/narlie/internal/builtins"
	"github.com/kolkov/narlie/internal/host"
	"github.com/kolkov/narlie/internal/lexer"
	"github.com/kolkov/narlie/internal/token"
)

// Options configures a parser.
type Options struct {
	// Functions pre-populates the root scope. Nil uses builtins.Default().
	Functions *builtins.Registry

	// Host resolves host-bound calls. Nil disables host calls.
	Host host.Resolver

	// Namespaces searched for host types before any using form.
	Namespaces []string

	// Filename is reported in positions.
	Filename string
}

// Parser is a recursive descent parser for Narlie programs.
//
// Scope push opens a ListNode and scope pop closes it. An identifier
// naming a function that takes arguments, a virtual form or a control
// keyword opens a form that must be the first child of its scope; the
// form runs to the closing parenthesis of that scope.
type Parser struct {
	lexer  *lexer.Lexer
	opts   Options
	rewind *lexer.Token // One-token pushback, consulted before scanning
	depth  int          // Open parentheses

	scopes     *ast.Scopes
	namespaces []string
}

// New creates a parser for src.
func New(src []byte, opts Options) *Parser {
	if opts.Functions == nil {
		opts.Functions = builtins.Default()
	}
	p := &Parser{lexer: lexer.New(nil), opts: opts}
	p.Reset(src)
	return p
}

// Parse parses a Narlie program from source code.
func Parse(src string, opts Options) (*ast.Tree, error) {
	return New([]byte(src), opts).Parse()
}

// Reset prepares the parser for a new compilation unit. It clears the
// scope depth, the rewind slot and the scopes.
func (p *Parser) Reset(src []byte) {
	p.lexer.Reset(src)
	p.lexer.SetFilename(p.opts.Filename)
	p.rewind = nil
	p.depth = 0
	p.scopes = ast.NewScopes()
	p.namespaces = append([]string(nil), p.opts.Namespaces...)
}

// Parse parses the whole unit. The root is a ListNode whose scope holds
// the configured functions.
func (p *Parser) Parse() (*ast.Tree, error) {
	rootPos := token.Start(p.opts.Filename)
	root := ast.NewList(rootPos, p.scopes.New(ast.NoScope))
	for _, name := range p.opts.Functions.Names() {
		f, _ := p.opts.Functions.Lookup(name)
		p.scopes.DefineFunc(root.Scope(), f)
	}

	if err := p.parseScope(root); err != nil {
		return nil, err
	}
	return &ast.Tree{Root: root, Scopes: p.scopes, Namespaces: p.namespaces}, nil
}

// Namespaces returns the namespaces currently searched for host types.
func (p *Parser) Namespaces() []string {
	return p.namespaces
}

// -----------------------------------------------------------------------------
// Token handling
// -----------------------------------------------------------------------------

// next returns the rewound token if there is one, else scans a new one.
func (p *Parser) next() (lexer.Token, error) {
	if p.rewind != nil {
		tok := *p.rewind
		p.rewind = nil
		return tok, nil
	}
	return p.lexer.Scan()
}

func (p *Parser) unread(tok lexer.Token) {
	p.rewind = &tok
}

// -----------------------------------------------------------------------------
// Scopes
// -----------------------------------------------------------------------------

// parseScope parses children of owner until the closing parenthesis of
// owner's scope has been consumed, or until end of input for the root.
func (p *Parser) parseScope(owner ast.Branch) error {
	for {
		tok, err := p.next()
		if err != nil {
			return err
		}

		switch tok.Type {
		case token.Unknown:
			if p.depth != 0 || owner.Parent() != nil {
				return errorf(tok.Pos, "", MsgUnbalanced)
			}
			return nil

		case token.ScopePop:
			if p.depth == 0 {
				return errorf(tok.Pos, ")", MsgUnbalanced)
			}
			p.depth--
			return nil

		case token.ScopePush:
			p.depth++
			list := ast.NewList(tok.Pos, p.scopes.New(owner.Scope()))
			owner.Append(list)
			if err := p.parseScope(list); err != nil {
				return err
			}

		case token.Nil:
			owner.Append(ast.NewNil(tok.Pos))
		case token.Bool:
			owner.Append(ast.NewBool(tok.Pos, tok.Bool))
		case token.Int:
			owner.Append(ast.NewInt(tok.Pos, tok.Int))
		case token.Real:
			owner.Append(ast.NewReal(tok.Pos, tok.Real))
		case token.String:
			owner.Append(ast.NewStr(tok.Pos, tok.Value))

		case token.Ident:
			closed, err := p.parseIdent(owner, tok)
			if err != nil {
				return err
			}
			if closed {
				return nil
			}

		case token.If, token.For, token.While:
			return p.parseControl(owner, tok)

		case token.Define:
			return errorf(tok.Pos, tok.Value, MsgNotImplemented)

		default:
			return errorf(tok.Pos, tok.String(), "unexpected %s", tok.Type)
		}
	}
}

// openForm appends form as the first child of owner and parses its
// children. The form consumes the closing parenthesis of owner, so when
// owner is a list with a parent the list is spliced out and the form's
// scope re-parented to the list's parent scope.
func (p *Parser) openForm(owner, form ast.Branch, text string) error {
	if len(owner.Children()) != 0 {
		return errorf(form.Pos(), text, MsgFirstChild)
	}
	owner.Append(form)
	if err := p.parseScope(form); err != nil {
		return err
	}
	return p.trim(owner, form)
}

func (p *Parser) trim(owner, form ast.Branch) error {
	list, ok := owner.(*ast.ListNode)
	if !ok {
		return nil
	}
	parent, ok := list.Parent().(ast.Branch)
	if !ok {
		return nil
	}
	parent.Replace(list, form)
	return p.scopes.SetParent(form.Scope(), parent.Scope())
}

// -----------------------------------------------------------------------------
// Identifiers
// -----------------------------------------------------------------------------

// parseIdent handles an identifier token. It reports whether a form was
// opened, in which case owner's scope has been closed.
func (p *Parser) parseIdent(owner ast.Branch, tok lexer.Token) (bool, error) {
	name := tok.Value

	var fn *builtins.Function
	if b, _, ok := p.scopes.Lookup(owner.Scope(), name); ok && b.IsFunc() {
		fn = b.Func
	}

	switch {
	case fn != nil && !fn.RequiresArgs():
		owner.Append(ast.NewLeaf(tok.Pos, name, fn))
		return false, nil

	case fn != nil || token.IsVirtual(name):
		form := ast.NewCall(tok.Pos, name, fn, p.scopes.New(owner.Scope()))
		if err := p.openForm(owner, form, name); err != nil {
			return false, err
		}
		return true, p.finishCall(form)

	case len(owner.Children()) > 0:
		owner.Append(ast.NewLeaf(tok.Pos, name, nil))
		return false, nil
	}

	t, err := p.lookaheadHost(name)
	if err != nil {
		return false, err
	}
	if t == nil {
		owner.Append(ast.NewLeaf(tok.Pos, name, nil))
		return false, nil
	}

	form := ast.NewHostCall(tok.Pos, name, t, p.scopes.New(owner.Scope()))
	if err := p.openForm(owner, form, name); err != nil {
		return false, err
	}
	if m, ok := host.Unique(t, name, len(form.Children())); ok {
		form.Method = m
	}
	return true, nil
}

// lookaheadHost scans one more token. If it names a host type exposing a
// public static method called name, the type is returned and the token
// consumed; otherwise the token is pushed back.
func (p *Parser) lookaheadHost(name string) (*host.Type, error) {
	if p.opts.Host == nil {
		return nil, nil
	}
	tok, err := p.next()
	if err != nil {
		return nil, err
	}
	if tok.Type == token.Ident {
		if t, ok := p.opts.Host.LookupType(p.namespaces, tok.Value); ok && p.opts.Host.HasStaticMethod(t, name) {
			return t, nil
		}
	}
	p.unread(tok)
	return nil, nil
}

// finishCall validates a completed identifier call: arity for functions,
// dedicated rules for virtual forms.
func (p *Parser) finishCall(form *ast.IdNode) error {
	children := form.Children()

	if form.Func != nil {
		if err := form.Func.Arity.Check(len(children)); err != nil {
			return errorf(form.Pos(), form.ID, "%v", err)
		}
		return nil
	}

	switch form.ID {
	case token.Using:
		return p.finishUsing(form)
	case token.Let:
		return p.finishLet(form)
	case token.Set, token.Setf:
		return p.finishSet(form)
	}
	return errorf(form.Pos(), form.ID, "unknown form")
}

func (p *Parser) finishUsing(form *ast.IdNode) error {
	if len(form.Children()) == 0 {
		return errorf(form.Pos(), form.ID, "expects at least one namespace")
	}
	for _, c := range form.Children() {
		id, ok := c.(*ast.IdNode)
		if !ok || id.IsCall() {
			return errorf(c.Pos(), ast.String(c), "namespace must be an identifier")
		}
		p.namespaces = append(p.namespaces, id.ID)
	}
	return nil
}

// finishLet registers each binding in the scope enclosing the form.
func (p *Parser) finishLet(form *ast.IdNode) error {
	pairs, err := ast.LetPairs(form)
	if err != nil {
		return errorf(form.Pos(), form.ID, "%v", err)
	}
	target := p.scopes.Parent(form.Scope())
	for _, pair := range pairs {
		p.scopes.Define(target, &ast.Binding{
			Name:  pair.Name.ID,
			Value: pair.Value,
			Pos:   pair.Name.Pos(),
		})
	}
	return nil
}

func (p *Parser) finishSet(form *ast.IdNode) error {
	children := form.Children()
	if len(children) != 2 {
		return errorf(form.Pos(), form.ID, "expects exactly 2 children, got %d", len(children))
	}
	id, ok := children[0].(*ast.IdNode)
	if !ok || id.IsCall() {
		return errorf(children[0].Pos(), ast.String(children[0]), "set target must be an identifier")
	}
	if b, _, ok := p.scopes.Lookup(form.Scope(), id.ID); !ok || b.IsFunc() {
		return errorf(id.Pos(), id.ID, MsgUndefined)
	}
	form.ID = token.Set
	return nil
}

// -----------------------------------------------------------------------------
// Control constructs
// -----------------------------------------------------------------------------

func (p *Parser) parseControl(owner ast.Branch, tok lexer.Token) error {
	var tag ast.Control
	switch tok.Type {
	case token.If:
		tag = ast.If
	case token.For:
		tag = ast.For
	default:
		tag = ast.While
	}

	form := ast.NewControl(tok.Pos, tag, p.scopes.New(owner.Scope()))
	if err := p.openForm(owner, form, tok.Value); err != nil {
		return err
	}

	children := form.Children()
	n := len(children)
	switch tag {
	case ast.If:
		if n != 2 && n != 3 {
			return errorf(form.Pos(), tok.Value, "expects 2 or 3 children, got %d", n)
		}
	case ast.For:
		if n != 4 {
			return errorf(form.Pos(), tok.Value, "expects 4 children, got %d", n)
		}
		// Stored as (cond pre post body).
		form.SetChildren([]ast.Node{children[1], children[0], children[2], children[3]})
	case ast.While:
		if n != 2 {
			return errorf(form.Pos(), tok.Value, "expects 2 children, got %d", n)
		}
	}
	return nil
}
