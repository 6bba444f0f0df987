package variables

import (
	"fmt"
	"regexp"
	"strings"

	"workflow-content/internal/content/liquid"
)

var dotIndexPattern = regexp.MustCompile(`\.(\d+)`)

// Parser classifies the variables referenced by {{ }} outputs in a text.
type Parser struct {
	engine *liquid.Engine
}

func NewParser(engine *liquid.Engine) *Parser {
	return &Parser{engine: engine}
}

// Parse never fails: malformed outputs become invalid variables and the scan
// continues with the next occurrence. Names are not deduplicated.
func (p *Parser) Parse(text interface{}) Result {
	res := Result{ValidVariables: []Variable{}, InvalidVariables: []Variable{}}

	s, ok := text.(string)
	if !ok || !strings.Contains(s, "{{") {
		return res
	}

	for _, m := range outputPattern.FindAllStringSubmatch(s, -1) {
		v, valid, skip := p.parseOutput(m[0], m[1])
		if skip {
			continue
		}
		if valid {
			res.ValidVariables = append(res.ValidVariables, v)
		} else {
			res.InvalidVariables = append(res.InvalidVariables, v)
		}
	}
	return res
}

func (p *Parser) parseOutput(source, inner string) (v Variable, valid, skip bool) {
	expr := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(inner, "-"), "-"))
	head, filters := expr, ""
	if i := indexTopLevelPipe(expr); i >= 0 {
		head, filters = strings.TrimSpace(expr[:i]), strings.TrimSpace(expr[i+1:])
	}

	c := scanChain(head)
	if len(c.segments) > 0 && c.rest != "" && c.spaced {
		return Variable{
			Name:    head,
			Context: source,
			Message: MsgContainsSpaces,
			Source:  source,
		}, false, false
	}

	if err := p.engine.ValidateOutput(grammarForm(expr, c)); err != nil {
		return Variable{
			Name:    source,
			Context: expr,
			Message: err.Error(),
			Source:  source,
		}, false, false
	}

	if len(c.segments) == 0 {
		// literals such as {{ 'text' }} reference nothing
		return Variable{}, false, true
	}
	if c.rest != "" {
		return Variable{
			Name:    head,
			Context: source,
			Message: MsgInvalidExpression,
			Source:  source,
		}, false, false
	}

	name := strings.Join(c.segments, ".")
	if len(c.segments) == 1 {
		return Variable{
			Name:    name,
			Context: source,
			Message: fmt.Sprintf(MsgMissingNamespace, name),
			Source:  source,
		}, false, false
	}

	return Variable{Name: name, Source: source, Filters: filters}, true, false
}

// grammarForm rewrites .N segments of the leading chain as [N], the only index
// syntax the Liquid grammar accepts.
func grammarForm(expr string, c chain) string {
	if c.consumed == 0 {
		return expr
	}
	return dotIndexPattern.ReplaceAllString(expr[:c.consumed], "[$1]") + expr[c.consumed:]
}

// chain is the identifier path at the start of an output expression.
type chain struct {
	segments []string
	rest     string
	spaced   bool
	consumed int
}

// scanChain reads identifiers joined by '.', [n] and ["key"] accessors. Whatever
// follows the chain is returned in rest; spaced is set when whitespace separated them.
func scanChain(head string) chain {
	var c chain
	i := 0
	n := len(head)

	ident := func() string {
		start := i
		for i < n && isIdentChar(head[i], i == start) {
			i++
		}
		return head[start:i]
	}

	first := ident()
	if first == "" {
		c.rest = head
		return c
	}
	c.segments = append(c.segments, first)

loop:
	for i < n {
		switch head[i] {
		case '.':
			i++
			var seg string
			if i < n && head[i] >= '0' && head[i] <= '9' {
				start := i
				for i < n && head[i] >= '0' && head[i] <= '9' {
					i++
				}
				seg = head[start:i]
			} else {
				seg = ident()
			}
			if seg == "" {
				c.segments = nil
				c.rest = head
				return c
			}
			c.segments = append(c.segments, seg)
		case '[':
			end := strings.IndexByte(head[i:], ']')
			if end < 0 {
				break loop
			}
			key := strings.TrimSpace(head[i+1 : i+end])
			key = strings.Trim(key, `"'`)
			if key == "" {
				break loop
			}
			c.segments = append(c.segments, key)
			i += end + 1
		default:
			break loop
		}
	}

	c.consumed = i
	rest := head[i:]
	trimmed := strings.TrimLeft(rest, " \t\r\n")
	c.spaced = len(trimmed) < len(rest)
	c.rest = strings.TrimSpace(trimmed)
	return c
}

func isIdentChar(b byte, first bool) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b == '_':
		return true
	case first:
		return false
	case b >= '0' && b <= '9', b == '-', b == '?':
		return true
	}
	return false
}

// indexTopLevelPipe finds the first '|' that is not inside a quoted string.
func indexTopLevelPipe(s string) int {
	var quote byte
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"':
			quote = ch
		case ch == '|':
			return i
		}
	}
	return -1
}
