package template

import "strings"

type tokenKind int

const (
	tokenText tokenKind = iota
	tokenVariable
	tokenSectionOpen
	tokenInvertedOpen
	tokenSectionClose
)

// token is one lexical unit of a template. raw preserves the exact input
// bytes so unknown tags can be re-emitted verbatim.
type token struct {
	kind tokenKind
	raw  string
	key  string
}

const (
	openDelim  = "{{"
	closeDelim = "}}"
)

// tokenize splits the input into text and tag tokens in a single
// left-to-right pass, so a tag never matches across a later tag's
// delimiters. Malformed input (an unterminated "{{") is kept as plain
// text rather than reported as an error.
func tokenize(input string) []token {
	var tokens []token
	for len(input) > 0 {
		open := strings.Index(input, openDelim)
		if open < 0 {
			tokens = append(tokens, token{kind: tokenText, raw: input})
			break
		}
		if open > 0 {
			tokens = append(tokens, token{kind: tokenText, raw: input[:open]})
			input = input[open:]
		}

		end := strings.Index(input[len(openDelim):], closeDelim)
		if end < 0 {
			// Unterminated tag; the rest of the input is literal text.
			tokens = append(tokens, token{kind: tokenText, raw: input})
			break
		}
		end += len(openDelim)
		raw := input[:end+len(closeDelim)]
		inner := strings.TrimSpace(input[len(openDelim):end])
		input = input[end+len(closeDelim):]

		switch {
		case strings.HasPrefix(inner, "#"):
			tokens = append(tokens, token{kind: tokenSectionOpen, raw: raw, key: strings.TrimSpace(inner[1:])})
		case strings.HasPrefix(inner, "^"):
			tokens = append(tokens, token{kind: tokenInvertedOpen, raw: raw, key: strings.TrimSpace(inner[1:])})
		case strings.HasPrefix(inner, "/"):
			tokens = append(tokens, token{kind: tokenSectionClose, raw: raw, key: strings.TrimSpace(inner[1:])})
		case inner == "":
			// "{{}}" carries no key; keep it as literal text.
			tokens = append(tokens, token{kind: tokenText, raw: raw})
		default:
			tokens = append(tokens, token{kind: tokenVariable, raw: raw, key: inner})
		}
	}
	return tokens
}
