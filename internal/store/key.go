package store

import (
	"bytes"
	"fmt"
	"strings"
)

// Namespaces used by the locator.
const (
	NamespaceNominatim   = "nominatim"
	NamespaceUserDetails = "user_details"
	NamespaceMemberPage  = "member_page"
	NamespaceMembersDict = "members_dict"
)

const (
	nsSep   = 0x00
	partSep = 0x1f
)

// Key identifies a cache entry: a namespace followed by the parts that
// identify the entry inside it, e.g. ("nominatim", "münchen", "de").
type Key struct {
	Namespace string
	Parts     []string
}

// NewKey builds a key in namespace ns.
func NewKey(ns string, parts ...string) Key {
	return Key{Namespace: ns, Parts: parts}
}

// First returns the first identifying part, or "".
func (k Key) First() string {
	if len(k.Parts) == 0 {
		return ""
	}
	return k.Parts[0]
}

// String renders the key in tuple form: ('nominatim', 'münchen', 'de').
func (k Key) String() string {
	var b strings.Builder
	b.WriteString("(")
	fmt.Fprintf(&b, "'%s'", k.Namespace)
	if len(k.Parts) == 0 {
		b.WriteString(",")
	}
	for _, p := range k.Parts {
		fmt.Fprintf(&b, ", '%s'", p)
	}
	b.WriteString(")")
	return b.String()
}

func (k Key) encode() []byte {
	b := make([]byte, 0, len(k.Namespace)+1+16*len(k.Parts))
	b = append(b, k.Namespace...)
	b = append(b, nsSep)
	for _, p := range k.Parts {
		b = append(b, partSep)
		b = append(b, p...)
	}
	return b
}

func namespacePrefix(ns string) []byte {
	return append([]byte(ns), nsSep)
}

func decodeKey(raw []byte) (Key, error) {
	i := bytes.IndexByte(raw, nsSep)
	if i < 0 {
		return Key{}, fmt.Errorf("malformed key %q", raw)
	}
	k := Key{Namespace: string(raw[:i])}
	rest := raw[i+1:]
	if len(rest) == 0 {
		return k, nil
	}
	if rest[0] != partSep {
		return Key{}, fmt.Errorf("malformed key %q", raw)
	}
	for _, p := range bytes.Split(rest[1:], []byte{partSep}) {
		k.Parts = append(k.Parts, string(p))
	}
	return k, nil
}
