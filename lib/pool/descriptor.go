package pool

import (
	"fmt"
	"regexp"
)

// DescriptorScheme is the fixed protocol tag every target descriptor starts with.
const DescriptorScheme = "db"

// descriptorPattern matches db:<subscheme>:<identifier>. The identifier may
// contain further colons (host:port, DSNs).
var descriptorPattern = regexp.MustCompile(`^` + DescriptorScheme + `:([^:]+):(.+)$`)

// Descriptor identifies the external target a factory connects to.
type Descriptor struct {
	Scheme     string
	Subscheme  string
	Identifier string
}

// ParseDescriptor checks that s is a well-formed target descriptor and splits
// it into its segments. It does not check that the target is reachable.
func ParseDescriptor(s string) (Descriptor, error) {
	m := descriptorPattern.FindStringSubmatch(s)
	if m == nil {
		return Descriptor{}, fmt.Errorf("malformed target descriptor %q: want %s:<subscheme>:<identifier>", s, DescriptorScheme)
	}
	return Descriptor{
		Scheme:     DescriptorScheme,
		Subscheme:  m[1],
		Identifier: m[2],
	}, nil
}

// String reassembles the descriptor.
func (d Descriptor) String() string {
	return d.Scheme + ":" + d.Subscheme + ":" + d.Identifier
}
