package language

// ParseQuery tokenizes and parses an executable document.
func ParseQuery(text string) (*Document, error) {
	tokens, err := Tokenize(text)
	if err != nil {
		return nil, err
	}
	return Parse(tokens)
}

// Parse builds a Document from a token stream by recursive descent.
func Parse(tokens []Token) (*Document, error) {
	p := &parser{tokens: tokens}
	doc := &Document{}
	if p.eof() {
		return nil, syntaxErrorf(Location{}, "empty document")
	}
	for !p.eof() {
		tok := p.peek()
		switch {
		case tok.is(TokenPunctuator, "{"):
			set, err := p.parseSelectionSet()
			if err != nil {
				return nil, err
			}
			doc.Operations = append(doc.Operations, &OperationDefinition{
				Operation:    Query,
				SelectionSet: set,
				Location:     tok.Location,
			})
		case tok.is(TokenName, "query"), tok.is(TokenName, "mutation"):
			op, err := p.parseOperation()
			if err != nil {
				return nil, err
			}
			doc.Operations = append(doc.Operations, op)
		case tok.is(TokenName, "fragment"):
			frag, err := p.parseFragment()
			if err != nil {
				return nil, err
			}
			doc.Fragments = append(doc.Fragments, frag)
		case tok.is(TokenName, "subscription"):
			return nil, syntaxErrorf(tok.Location, "subscriptions are not supported")
		default:
			return nil, p.unexpected(tok)
		}
	}
	return doc, nil
}

// parser is the cursor shared by every grammar rule.
type parser struct {
	tokens []Token
	pos    int
}

func (p *parser) eof() bool { return p.pos >= len(p.tokens) }

func (p *parser) peek() Token {
	if p.eof() {
		return Token{}
	}
	return p.tokens[p.pos]
}

func (p *parser) peekIs(kind TokenKind, value string) bool {
	return !p.eof() && p.tokens[p.pos].is(kind, value)
}

func (p *parser) next() (Token, error) {
	if p.eof() {
		return Token{}, p.endOfInput()
	}
	tok := p.tokens[p.pos]
	p.pos++
	return tok, nil
}

func (p *parser) endOfInput() error {
	loc := Location{}
	if n := len(p.tokens); n > 0 {
		loc = p.tokens[n-1].Location
	}
	return syntaxErrorf(loc, "unexpected end of input")
}

func (p *parser) unexpected(tok Token) error {
	return syntaxErrorf(tok.Location, "unexpected %s %q", tok.Kind, tok.Value)
}

func (p *parser) expect(value string) (Token, error) {
	tok, err := p.next()
	if err != nil {
		return tok, err
	}
	if !tok.is(TokenPunctuator, value) {
		return tok, syntaxErrorf(tok.Location, "expected %q but got %q", value, tok.Value)
	}
	return tok, nil
}

func (p *parser) expectName() (Token, error) {
	tok, err := p.next()
	if err != nil {
		return tok, err
	}
	if tok.Kind != TokenName {
		return tok, syntaxErrorf(tok.Location, "expected name but got %s %q", tok.Kind, tok.Value)
	}
	return tok, nil
}

func (p *parser) skip(value string) bool {
	if p.peekIs(TokenPunctuator, value) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) parseOperation() (*OperationDefinition, error) {
	keyword, err := p.next()
	if err != nil {
		return nil, err
	}
	op := &OperationDefinition{Operation: OperationType(keyword.Value), Location: keyword.Location}
	if !p.eof() && p.peek().Kind == TokenName {
		name, _ := p.next()
		op.Name = name.Value
	}
	if p.peekIs(TokenPunctuator, "(") {
		if op.VariableDefinitions, err = p.parseVariableDefinitions(); err != nil {
			return nil, err
		}
	}
	if op.Directives, err = p.parseDirectives(); err != nil {
		return nil, err
	}
	if op.SelectionSet, err = p.parseSelectionSet(); err != nil {
		return nil, err
	}
	return op, nil
}

func (p *parser) parseFragment() (*FragmentDefinition, error) {
	keyword, err := p.next()
	if err != nil {
		return nil, err
	}
	name, err := p.expectName()
	if err != nil {
		return nil, err
	}
	if name.Value == "on" {
		return nil, syntaxErrorf(name.Location, "fragment cannot be named \"on\"")
	}
	on, err := p.expectName()
	if err != nil {
		return nil, err
	}
	if on.Value != "on" {
		return nil, syntaxErrorf(on.Location, "expected \"on\" but got %q", on.Value)
	}
	typeCond, err := p.expectName()
	if err != nil {
		return nil, err
	}
	frag := &FragmentDefinition{Name: name.Value, TypeCondition: typeCond.Value, Location: keyword.Location}
	if frag.Directives, err = p.parseDirectives(); err != nil {
		return nil, err
	}
	if frag.SelectionSet, err = p.parseSelectionSet(); err != nil {
		return nil, err
	}
	return frag, nil
}

func (p *parser) parseVariableDefinitions() ([]*VariableDefinition, error) {
	if _, err := p.expect("("); err != nil {
		return nil, err
	}
	var defs []*VariableDefinition
	for !p.skip(")") {
		dollar, err := p.expect("$")
		if err != nil {
			return nil, err
		}
		name, err := p.expectName()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(":"); err != nil {
			return nil, err
		}
		typ, err := p.parseInputType()
		if err != nil {
			return nil, err
		}
		def := &VariableDefinition{Name: name.Value, Type: typ, Location: dollar.Location}
		if p.skip("=") {
			if def.DefaultValue, err = p.parseValue(true); err != nil {
				return nil, err
			}
		}
		defs = append(defs, def)
		if p.eof() {
			return nil, p.endOfInput()
		}
	}
	return defs, nil
}

func (p *parser) parseInputType() (InputType, error) {
	var typ InputType
	if p.skip("[") {
		inner, err := p.parseInputType()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect("]"); err != nil {
			return nil, err
		}
		typ = &ListType{Type: inner}
	} else {
		name, err := p.expectName()
		if err != nil {
			return nil, err
		}
		typ = &NamedType{Name: name.Value}
	}
	if p.skip("!") {
		typ = &NonNullType{Type: typ}
	}
	return typ, nil
}

func (p *parser) parseDirectives() ([]*Directive, error) {
	var directives []*Directive
	for p.peekIs(TokenPunctuator, "@") {
		at, _ := p.next()
		name, err := p.expectName()
		if err != nil {
			return nil, err
		}
		d := &Directive{Name: name.Value, Location: at.Location}
		if p.peekIs(TokenPunctuator, "(") {
			if d.Arguments, err = p.parseArguments(); err != nil {
				return nil, err
			}
		}
		directives = append(directives, d)
	}
	return directives, nil
}

func (p *parser) parseSelectionSet() (SelectionSet, error) {
	if _, err := p.expect("{"); err != nil {
		return nil, err
	}
	var set SelectionSet
	for !p.skip("}") {
		if p.eof() {
			return nil, p.endOfInput()
		}
		sel, err := p.parseSelection()
		if err != nil {
			return nil, err
		}
		set = append(set, sel)
	}
	if len(set) == 0 {
		return nil, syntaxErrorf(p.tokens[p.pos-1].Location, "selection set must not be empty")
	}
	return set, nil
}

func (p *parser) parseSelection() (Selection, error) {
	if p.peekIs(TokenPunctuator, "...") {
		return p.parseFragmentSelection()
	}
	return p.parseField()
}

func (p *parser) parseFragmentSelection() (Selection, error) {
	dots, _ := p.next()
	if !p.eof() && p.peek().Kind == TokenName && p.peek().Value != "on" {
		name, _ := p.next()
		directives, err := p.parseDirectives()
		if err != nil {
			return nil, err
		}
		return &FragmentSpread{Name: name.Value, Directives: directives, Location: dots.Location}, nil
	}
	inline := &InlineFragment{Location: dots.Location}
	if p.peekIs(TokenName, "on") {
		p.pos++
		typeCond, err := p.expectName()
		if err != nil {
			return nil, err
		}
		inline.TypeCondition = typeCond.Value
	}
	var err error
	if inline.Directives, err = p.parseDirectives(); err != nil {
		return nil, err
	}
	if inline.SelectionSet, err = p.parseSelectionSet(); err != nil {
		return nil, err
	}
	return inline, nil
}

func (p *parser) parseField() (*Field, error) {
	first, err := p.expectName()
	if err != nil {
		return nil, err
	}
	field := &Field{Name: first.Value, Location: first.Location}
	if p.skip(":") {
		name, err := p.expectName()
		if err != nil {
			return nil, err
		}
		field.Alias = first.Value
		field.Name = name.Value
	}
	if p.peekIs(TokenPunctuator, "(") {
		if field.Arguments, err = p.parseArguments(); err != nil {
			return nil, err
		}
	}
	if field.Directives, err = p.parseDirectives(); err != nil {
		return nil, err
	}
	if p.peekIs(TokenPunctuator, "{") {
		if field.SelectionSet, err = p.parseSelectionSet(); err != nil {
			return nil, err
		}
	}
	return field, nil
}

func (p *parser) parseArguments() ([]*Argument, error) {
	if _, err := p.expect("("); err != nil {
		return nil, err
	}
	var args []*Argument
	for !p.skip(")") {
		name, err := p.expectName()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(":"); err != nil {
			return nil, err
		}
		value, err := p.parseValue(false)
		if err != nil {
			return nil, err
		}
		args = append(args, &Argument{Name: name.Value, Value: value, Location: name.Location})
		if p.eof() {
			return nil, p.endOfInput()
		}
	}
	if len(args) == 0 {
		return nil, syntaxErrorf(p.tokens[p.pos-1].Location, "argument list must not be empty")
	}
	return args, nil
}

// parseValue reads an input value. Variables are rejected in const
// positions such as variable defaults.
func (p *parser) parseValue(constant bool) (Value, error) {
	tok, err := p.next()
	if err != nil {
		return nil, err
	}
	switch tok.Kind {
	case TokenInt:
		return &IntValue{Value: tok.Int}, nil
	case TokenFloat:
		return &FloatValue{Value: tok.Float}, nil
	case TokenString:
		return &StringValue{Value: tok.Value}, nil
	case TokenName:
		switch tok.Value {
		case "true":
			return &BooleanValue{Value: true}, nil
		case "false":
			return &BooleanValue{Value: false}, nil
		case "null":
			return &NullValue{}, nil
		default:
			return &EnumValue{Value: tok.Value}, nil
		}
	}

	switch tok.Value {
	case "$":
		if constant {
			return nil, syntaxErrorf(tok.Location, "variables are not allowed in constant values")
		}
		name, err := p.expectName()
		if err != nil {
			return nil, err
		}
		return &Variable{Name: name.Value, Location: tok.Location}, nil
	case "[":
		list := &ListValue{}
		for !p.skip("]") {
			if p.eof() {
				return nil, p.endOfInput()
			}
			item, err := p.parseValue(constant)
			if err != nil {
				return nil, err
			}
			list.Values = append(list.Values, item)
		}
		return list, nil
	case "{":
		obj := &ObjectValue{}
		for !p.skip("}") {
			name, err := p.expectName()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(":"); err != nil {
				return nil, err
			}
			value, err := p.parseValue(constant)
			if err != nil {
				return nil, err
			}
			obj.Fields = append(obj.Fields, &ObjectField{Name: name.Value, Value: value})
			if p.eof() {
				return nil, p.endOfInput()
			}
		}
		return obj, nil
	}
	return nil, p.unexpected(tok)
}
