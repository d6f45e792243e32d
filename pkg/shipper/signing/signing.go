// Package signing computes the positional request signature used by
// carriers that authenticate with a shared private key instead of a token.
//
// The signature covers field values in transmission order, so the same
// Fields value must be used to sign and to serialize a request.
package signing

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// Field is one named request parameter.
type Field struct {
	Name  string
	Value string
}

// Fields is an ordered list of request parameters.
type Fields []Field

// Add appends a field and returns the extended list.
func (f Fields) Add(name, value string) Fields {
	return append(f, Field{Name: name, Value: value})
}

// Get returns the value of the first field with the given name.
func (f Fields) Get(name string) (string, bool) {
	for _, field := range f {
		if field.Name == name {
			return field.Value, true
		}
	}
	return "", false
}

// Values returns the field values in order.
func (f Fields) Values() []string {
	values := make([]string, len(f))
	for i, field := range f {
		values[i] = field.Value
	}
	return values
}

// Sign returns the uppercase hex MD5 of the concatenated values followed by
// the private key.
func (f Fields) Sign(privateKey string) string {
	var b strings.Builder
	for _, field := range f {
		b.WriteString(field.Value)
	}
	b.WriteString(privateKey)
	sum := md5.Sum([]byte(b.String()))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// Signed returns a copy of f with the signature appended as the last field.
func (f Fields) Signed(name, privateKey string) Fields {
	out := make(Fields, len(f), len(f)+1)
	copy(out, f)
	return out.Add(name, f.Sign(privateKey))
}
