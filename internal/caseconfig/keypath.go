package caseconfig

import (
	"fmt"
	"strconv"
	"strings"
)

// Segment is one step of a KeyPath: either a mapping key or a sequence index.
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

// Key returns a mapping-key segment.
func Key(k string) Segment { return Segment{Key: k} }

// Index returns a sequence-index segment.
func Index(i int) Segment { return Segment{Index: i, IsIndex: true} }

func (s Segment) String() string {
	if s.IsIndex {
		return "[" + strconv.Itoa(s.Index) + "]"
	}
	return s.Key
}

// KeyPath addresses a value inside a case description, e.g.
// foam / system / setFieldsDict / regions[0] / box.
type KeyPath []Segment

// Keys builds a KeyPath made only of mapping keys.
func Keys(keys ...string) KeyPath {
	p := make(KeyPath, len(keys))
	for i, k := range keys {
		p[i] = Key(k)
	}
	return p
}

// PathOf builds a KeyPath from strings (keys) and integers (indexes).
func PathOf(parts ...any) (KeyPath, error) {
	p := make(KeyPath, 0, len(parts))
	for i, part := range parts {
		switch v := part.(type) {
		case string:
			p = append(p, Key(v))
		case int:
			p = append(p, Index(v))
		case int64:
			p = append(p, Index(int(v)))
		default:
			return nil, fmt.Errorf("path element %d: unsupported type %T", i, part)
		}
	}
	if len(p) == 0 {
		return nil, fmt.Errorf("key path is empty")
	}
	return p, nil
}

func (p KeyPath) String() string {
	var b strings.Builder
	for i, s := range p {
		if i > 0 && !s.IsIndex {
			b.WriteByte('/')
		}
		b.WriteString(s.String())
	}
	return b.String()
}
