package flowreprog

import "strings"

// TempSuffix is appended to a flow name to form the name of the
// temporary entry that shadows it while it is being reprogrammed.
const TempSuffix = "-tmp-entry"

// TempName returns the temporary entry name for the real flow name.
func TempName(name string) string {
	return name + TempSuffix
}

// IsTempName reports whether name is a temporary entry name.
func IsTempName(name string) bool {
	return len(name) > len(TempSuffix) && strings.HasSuffix(name, TempSuffix)
}

// RealName strips TempSuffix from a temporary entry name. The second
// result is false if name is not a temporary entry name, in which case
// name is returned unchanged.
func RealName(name string) (string, bool) {
	if !IsTempName(name) {
		return name, false
	}
	return strings.TrimSuffix(name, TempSuffix), true
}
