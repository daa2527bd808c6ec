// Package plist walks Apple property-list documents as an ordered element tree.
//
// Dictionaries in a property list are flat sibling sequences of alternating
// <key> and value elements, so the tree keeps every child in document order
// and [Pairs] recovers the key/value structure two children at a time.
package plist

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/desertthunder/itx/internal/shared"
	hplist "howett.net/plist"
)

var binaryMagic = []byte("bplist00")

// Node is one XML element of a property list.
type Node struct {
	Tag      string
	Text     string
	Children []*Node
}

// Pair is one key/value entry of a dictionary.
type Pair struct {
	Key   string
	Value *Node
}

// StructureError reports a document whose dictionary or array shape is not what
// the walker expected at Path.
type StructureError struct {
	Path   string
	Reason string
}

func (e *StructureError) Error() string {
	return fmt.Sprintf("%v at %s: %s", shared.ErrStructure, e.Path, e.Reason)
}

func (e *StructureError) Unwrap() error { return shared.ErrStructure }

// Parse reads an XML property list into a document node whose children are the
// top-level elements. Malformed or empty XML wraps [shared.ErrParse].
func Parse(r io.Reader) (*Node, error) {
	dec := xml.NewDecoder(r)
	doc := &Node{Tag: "#document"}
	stack := []*Node{doc}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrParse, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{Tag: t.Name.Local}
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, n)
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 1 {
				stack[len(stack)-1].Text += string(t)
			}
		}
	}

	if len(stack) != 1 {
		return nil, fmt.Errorf("%w: unexpected end of document", shared.ErrParse)
	}
	if len(doc.Children) == 0 {
		return nil, fmt.Errorf("%w: document has no elements", shared.ErrParse)
	}
	return doc, nil
}

// ParseBytes parses an XML or binary ("bplist00") property list.
//
// Binary input is transcoded to XML first; its dictionaries come back with keys
// in sorted order, which only affects documents that rely on key order.
func ParseBytes(b []byte) (*Node, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, fmt.Errorf("%w: empty document", shared.ErrParse)
	}
	if bytes.HasPrefix(b, binaryMagic) {
		xmlDoc, err := transcode(b)
		if err != nil {
			return nil, err
		}
		b = xmlDoc
	}
	return Parse(bytes.NewReader(b))
}

func transcode(b []byte) ([]byte, error) {
	var v any
	if _, err := hplist.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("%w: binary plist: %v", shared.ErrParse, err)
	}
	out, err := hplist.MarshalIndent(v, hplist.XMLFormat, "\t")
	if err != nil {
		return nil, fmt.Errorf("%w: binary plist: %v", shared.ErrParse, err)
	}
	return out, nil
}

// Root returns the top-level dictionary of a parsed document.
func Root(doc *Node) (*Node, error) {
	if doc == nil {
		return nil, &StructureError{Path: "/", Reason: "no document"}
	}
	for _, top := range doc.Children {
		switch top.Tag {
		case "dict":
			return top, nil
		case "plist":
			for _, c := range top.Children {
				if c.Tag == "dict" {
					return c, nil
				}
			}
			return nil, &StructureError{Path: "/plist", Reason: "no top-level dict"}
		}
	}
	return nil, &StructureError{Path: "/", Reason: "no plist element"}
}

// Pairs returns the (key, value) entries of dict in document order.
//
// Repeated keys and unusual key order are returned as found. Stray nodes
// where a key is expected are skipped up to the next <key>. Only a trailing
// key with no value is a [StructureError].
func Pairs(dict *Node) ([]Pair, error) {
	if dict == nil || dict.Tag != "dict" {
		return nil, &StructureError{Path: tagOf(dict), Reason: "expected dict"}
	}

	pairs := make([]Pair, 0, len(dict.Children)/2)
	for i := 0; i < len(dict.Children); {
		k := dict.Children[i]
		if k.Tag != "key" {
			i++
			continue
		}
		if i+1 >= len(dict.Children) {
			return pairs, &StructureError{Path: "dict/key[" + k.Text + "]", Reason: "key has no value"}
		}
		pairs = append(pairs, Pair{Key: k.Text, Value: dict.Children[i+1]})
		i += 2
	}
	return pairs, nil
}

// Elements returns the children of array, keeping only those with the given tag
// unless tag is empty.
func Elements(array *Node, tag string) ([]*Node, error) {
	if array == nil || array.Tag != "array" {
		return nil, &StructureError{Path: tagOf(array), Reason: "expected array"}
	}
	if tag == "" {
		return array.Children, nil
	}

	out := make([]*Node, 0, len(array.Children))
	for _, c := range array.Children {
		if c.Tag == tag {
			out = append(out, c)
		}
	}
	return out, nil
}

// Lookup returns the first value stored under key in dict.
func Lookup(dict *Node, key string) (*Node, bool) {
	if dict == nil || dict.Tag != "dict" {
		return nil, false
	}
	for i := 0; i+1 < len(dict.Children); i += 2 {
		if k := dict.Children[i]; k.Tag == "key" && k.Text == key {
			return dict.Children[i+1], true
		}
	}
	return nil, false
}

// Flatten collects the entries of dict into a map, later keys overwriting
// earlier ones. Unlike [Pairs] it never fails: misplaced or dangling nodes
// are dropped.
func Flatten(dict *Node) map[string]*Node {
	props := make(map[string]*Node)
	if dict == nil || dict.Tag != "dict" {
		return props
	}
	for i := 0; i+1 < len(dict.Children); i++ {
		if k := dict.Children[i]; k.Tag == "key" && dict.Children[i+1].Tag != "key" {
			props[k.Text] = dict.Children[i+1]
			i++
		}
	}
	return props
}

// String returns the text of a leaf node; nil and container nodes yield "".
func (n *Node) String() string {
	if n == nil || len(n.Children) > 0 {
		return ""
	}
	return n.Text
}

// Int parses the node as a base-10 integer.
func (n *Node) Int() (int, error) {
	if n == nil {
		return 0, fmt.Errorf("%w: missing integer", shared.ErrStructure)
	}
	v, err := strconv.Atoi(strings.TrimSpace(n.Text))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", shared.ErrStructure, n.Text)
	}
	return v, nil
}

func tagOf(n *Node) string {
	if n == nil {
		return "<nil>"
	}
	return n.Tag
}
