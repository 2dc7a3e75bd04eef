package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// OwnerSet is the list of usernames allowed to see a folder. It is stored as
// a comma-separated string and membership is exact: "alice" does not own a
// folder whose owners are "malice".
type OwnerSet []string

func NewOwnerSet(names ...string) OwnerSet {
	set := make(OwnerSet, 0, len(names))
	for _, name := range names {
		set = set.Add(name)
	}
	return set
}

func (s OwnerSet) Contains(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	for _, owner := range s {
		if owner == name {
			return true
		}
	}
	return false
}

func (s OwnerSet) Add(name string) OwnerSet {
	name = strings.TrimSpace(name)
	if name == "" || s.Contains(name) {
		return s
	}
	return append(s, name)
}

func (s OwnerSet) String() string {
	return strings.Join(s, ",")
}

func (s OwnerSet) Value() (driver.Value, error) {
	return s.String(), nil
}

func (s *OwnerSet) Scan(value interface{}) error {
	var raw string
	switch v := value.(type) {
	case nil:
		*s = OwnerSet{}
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into OwnerSet", value)
	}

	*s = NewOwnerSet(strings.Split(raw, ",")...)
	return nil
}
