package vm

import "sort"

// ClassTable maps class names to classes for one loader and one role. It is
// not synchronized; the owning loader's lock guards it.
type ClassTable struct {
	classes map[string]*Class
}

func newClassTable() *ClassTable {
	return &ClassTable{classes: make(map[string]*Class)}
}

// Lookup returns the class stored under name, or nil.
func (t *ClassTable) Lookup(name string) *Class {
	return t.classes[name]
}

// Insert stores c under name unless the name is taken. It reports whether
// c was stored.
func (t *ClassTable) Insert(name string, c *Class) bool {
	if _, ok := t.classes[name]; ok {
		return false
	}
	t.classes[name] = c
	return true
}

// Remove deletes name.
func (t *ClassTable) Remove(name string) {
	delete(t.classes, name)
}

// Len returns the number of entries.
func (t *ClassTable) Len() int {
	return len(t.classes)
}

// Names returns the stored names in sorted order.
func (t *ClassTable) Names() []string {
	names := make([]string, 0, len(t.classes))
	for name := range t.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Range calls fn for every entry until fn returns false.
func (t *ClassTable) Range(fn func(name string, c *Class) bool) {
	for name, c := range t.classes {
		if !fn(name, c) {
			return
		}
	}
}

func (t *ClassTable) clear() {
	t.classes = make(map[string]*Class)
}
