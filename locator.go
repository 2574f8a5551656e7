package blobio

import (
	"regexp"
	"strings"
)

// Scheme is the URL scheme handled by Storage.
const Scheme = "azfs"

const schemePrefix = Scheme + "://"

// locatorPattern matches azfs://<account>/<container>/<key>.
// Go's RE2 has no lookahead, so the "no doubled hyphen" container rule is
// checked separately in ParseLocator.
var locatorPattern = regexp.MustCompile(`^azfs://([a-z0-9]{3,24})/([a-z0-9][a-z0-9-]{1,61}[a-z0-9])/(.*)$`)

// Locator identifies exactly one object in the store.
// It is an immutable value; the key may be empty only in listing contexts.
type Locator struct {
	Account   string
	Container string
	Key       string
}

// ParseLocator parses an azfs:// path.
//
// If keyOptional is false an empty key is rejected. A malformed path always
// yields an *InvalidPathError.
func ParseLocator(path string, keyOptional bool) (Locator, error) {
	m := locatorPattern.FindStringSubmatch(path)
	if m == nil {
		return Locator{}, &InvalidPathError{Path: path}
	}

	if strings.Contains(m[2], "--") {
		return Locator{}, &InvalidPathError{Path: path}
	}

	if m[3] == "" && !keyOptional {
		return Locator{}, &InvalidPathError{Path: path}
	}

	return Locator{Account: m[1], Container: m[2], Key: m[3]}, nil
}

// MustParseLocator is like ParseLocator but panics on error.
// Intended for tests and static configuration.
func MustParseLocator(path string) Locator {
	loc, err := ParseLocator(path, true)
	if err != nil {
		panic(err)
	}

	return loc
}

// String renders the locator as an azfs:// path.
func (l Locator) String() string {
	return schemePrefix + l.Account + "/" + l.Container + "/" + l.Key
}

// WithKey returns a copy of l addressing key in the same container.
func (l Locator) WithKey(key string) Locator {
	l.Key = key
	return l
}

// ContainerPath returns the azfs:// path of the container itself (trailing slash, empty key).
func (l Locator) ContainerPath() string {
	return schemePrefix + l.Account + "/" + l.Container + "/"
}

// Join appends path components to base using "/" separators.
// Leading slashes on components are dropped.
func Join(base string, parts ...string) string {
	path := base
	for _, p := range parts {
		p = strings.TrimLeft(p, "/")
		if path == "" || strings.HasSuffix(path, "/") {
			path += p
		} else {
			path += "/" + p
		}
	}

	return path
}

// Split splits an azfs:// path into its parent and final component.
//
//	Split("azfs://foo/bar/baz") == ("azfs://foo/bar", "baz")
//	Split("azfs://foo/")        == ("azfs://foo", "")
func Split(path string) (string, string, error) {
	path = strings.TrimSpace(path)
	if !strings.HasPrefix(path, schemePrefix) {
		return "", "", &InvalidPathError{Path: path}
	}

	rest := path[len(schemePrefix):]
	idx := strings.LastIndex(rest, "/")

	switch {
	case idx < 0:
		return path, "", nil
	case idx == 0:
		return "", "", &InvalidPathError{Path: path}
	default:
		cut := len(schemePrefix) + idx
		return path[:cut], path[cut+1:], nil
	}
}
