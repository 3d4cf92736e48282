package fieldcrypt

import (
	"fmt"
	"strings"
)

// Policy decides what happens to a field that cannot be decrypted.
type Policy int

const (
	// PolicyDefault replaces the field with "" or 0 and logs a warning.
	PolicyDefault Policy = iota
	// PolicyExclude drops the record from lists and fails single-record reads.
	PolicyExclude
	// PolicyPropagate returns the error to the caller.
	PolicyPropagate
)

func (p Policy) String() string {
	switch p {
	case PolicyDefault:
		return "default"
	case PolicyExclude:
		return "exclude"
	case PolicyPropagate:
		return "propagate"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return PolicyDefault, nil
	case "exclude":
		return PolicyExclude, nil
	case "propagate":
		return PolicyPropagate, nil
	}
	return PolicyDefault, fmt.Errorf("unknown decrypt failure policy %q", s)
}
