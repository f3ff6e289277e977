package rubyext

import (
	"strings"

	"github.com/wippyai/rubyext/errors"
)

// checkName enforces what a C string can carry: at least one byte and no
// interior NUL.
func checkName(name string) error {
	if name == "" {
		return errors.InvalidName(name, -1, "name is empty")
	}
	if i := strings.IndexByte(name, 0); i >= 0 {
		return errors.InvalidName(name, i, "name contains a NUL byte")
	}
	return nil
}
