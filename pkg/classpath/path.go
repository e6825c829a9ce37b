package classpath

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Path is an ordered class path. Elements are probed in order and the
// first hit wins.
type Path []Element

// New opens each entry as an Element.
func New(entries ...string) (Path, error) {
	p := make(Path, 0, len(entries))
	for _, entry := range entries {
		if entry == "" {
			continue
		}
		e, err := NewElement(entry)
		if err != nil {
			p.Close()
			return nil, err
		}
		p = append(p, e)
	}
	return p, nil
}

// Parse splits a list separated by os.PathListSeparator and opens it.
func Parse(list string) (Path, error) {
	if list == "" {
		return nil, nil
	}
	return New(strings.Split(list, string(os.PathListSeparator))...)
}

// ReadClass probes every element in order and returns the bytes from the
// first element holding name together with that element. Elements that
// fail for other reasons are logged and skipped. If no element has the
// class the error wraps ErrNotFound.
func (p Path) ReadClass(name string) ([]byte, Element, error) {
	for _, e := range p {
		data, err := e.ReadClass(name)
		if err == nil {
			log.Debugf("found %s in %s", name, e)
			return data, e, nil
		}
		if !errors.Is(err, ErrNotFound) {
			log.Warningf("skipping %s while looking for %s: %s", e, name, err)
		}
	}
	return nil, nil, fmt.Errorf("%s: %w", name, ErrNotFound)
}

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, e := range p {
		parts[i] = e.String()
	}
	return strings.Join(parts, string(os.PathListSeparator))
}

// Close closes every element, returning the first error.
func (p Path) Close() error {
	var first error
	for _, e := range p {
		if err := e.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
