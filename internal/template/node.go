package template

type nodeKind int

const (
	nodeText nodeKind = iota
	nodeVariable
	nodeSection
	nodeInverted
)

// node is one element of the parsed template tree.
type node struct {
	kind     nodeKind
	raw      string // original tag text, re-emitted for unresolvable variables
	key      string
	children []node
}

// parse builds a node tree from the token stream. Orphan close tags and
// sections left open at end of input degrade to literal text; parsing
// never fails.
func parse(tokens []token) []node {
	nodes, _ := parseUntil(tokens, 0, "")
	return nodes
}

// parseUntil consumes tokens starting at pos until it sees a close tag
// for stopKey (or runs out). It returns the parsed nodes and the index
// just past the consumed tokens.
func parseUntil(tokens []token, pos int, stopKey string) ([]node, int) {
	var nodes []node
	for pos < len(tokens) {
		tok := tokens[pos]
		switch tok.kind {
		case tokenText:
			nodes = append(nodes, node{kind: nodeText, raw: tok.raw})
			pos++
		case tokenVariable:
			nodes = append(nodes, node{kind: nodeVariable, raw: tok.raw, key: tok.key})
			pos++
		case tokenSectionOpen, tokenInvertedOpen:
			children, next := parseUntil(tokens, pos+1, tok.key)
			if next > len(tokens) {
				// Section was never closed: treat the open tag as text
				// and splice its would-be children back in.
				nodes = append(nodes, node{kind: nodeText, raw: tok.raw})
				nodes = append(nodes, children...)
				pos = len(tokens)
				continue
			}
			kind := nodeSection
			if tok.kind == tokenInvertedOpen {
				kind = nodeInverted
			}
			nodes = append(nodes, node{kind: kind, raw: tok.raw, key: tok.key, children: children})
			pos = next
		case tokenSectionClose:
			if tok.key == stopKey {
				return nodes, pos + 1
			}
			// Close tag for a section that was never opened.
			nodes = append(nodes, node{kind: nodeText, raw: tok.raw})
			pos++
		}
	}
	if stopKey != "" {
		// Signal the caller that its close tag was never found.
		return nodes, len(tokens) + 1
	}
	return nodes, pos
}
