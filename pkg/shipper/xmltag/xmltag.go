// Package xmltag reads scalar values and repeated blocks out of flat XML and
// SOAP responses by local tag name.
package xmltag

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrEmpty is returned when the input holds no element.
var ErrEmpty = errors.New("xmltag: no element in document")

// Node is an element of a parsed document. Names are local names; namespace
// prefixes are dropped.
type Node struct {
	Name     string
	Children []*Node

	text strings.Builder
}

// Text returns the character data directly inside the element, trimmed.
func (n *Node) Text() string {
	return strings.TrimSpace(n.text.String())
}

// Parse reads a whole document into a node tree. The returned node is a
// synthetic root whose children are the document's top-level elements.
func Parse(data []byte) (*Node, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = func(label string, input io.Reader) (io.Reader, error) {
		switch strings.ToLower(label) {
		case "utf-8", "utf8", "us-ascii":
			return input, nil
		}
		return nil, fmt.Errorf("xmltag: unsupported charset %q", label)
	}

	root := &Node{}
	stack := []*Node{root}
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("xmltag: %w", err)
		}
		top := stack[len(stack)-1]
		switch t := tok.(type) {
		case xml.StartElement:
			child := &Node{Name: t.Name.Local}
			top.Children = append(top.Children, child)
			stack = append(stack, child)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			top.text.Write(t)
		}
	}
	if len(stack) != 1 {
		return nil, fmt.Errorf("xmltag: %w", io.ErrUnexpectedEOF)
	}
	if len(root.Children) == 0 {
		return nil, ErrEmpty
	}
	return root, nil
}

// Find returns the first element named tag below n, in document order.
func (n *Node) Find(tag string) (*Node, bool) {
	for _, c := range n.Children {
		if c.Name == tag {
			return c, true
		}
		if found, ok := c.Find(tag); ok {
			return found, true
		}
	}
	return nil, false
}

// Scalar returns the trimmed text of the first element named tag below n.
func (n *Node) Scalar(tag string) (string, bool) {
	found, ok := n.Find(tag)
	if !ok {
		return "", false
	}
	return found.Text(), true
}

// Value is Scalar without the presence flag.
func (n *Node) Value(tag string) string {
	v, _ := n.Scalar(tag)
	return v
}

// Blocks returns every element named tag below n, in document order. A
// matching element is not searched for nested matches.
func (n *Node) Blocks(tag string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Name == tag {
			out = append(out, c)
			continue
		}
		out = append(out, c.Blocks(tag)...)
	}
	return out
}
