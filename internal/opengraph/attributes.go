package opengraph

import "fmt"

// AttrKind is the attribute name used to carry a meta key.
type AttrKind uint8

const (
	Property AttrKind = iota
	Itemprop
	Name
)

func (k AttrKind) String() string {
	switch k {
	case Itemprop:
		return "itemprop"
	case Name:
		return "name"
	default:
		return "property"
	}
}

// Attribute is a single <meta> tag.
type Attribute struct {
	Kind    AttrKind
	Key     string
	Content string
}

func (a Attribute) String() string {
	return fmt.Sprintf("%s=%q content=%q", a.Kind, a.Key, a.Content)
}

// Attributes is an insertion-ordered set of meta tags keyed by Key.
// Setting an existing key replaces kind and content in place.
type Attributes struct {
	list  []Attribute
	index map[string]int
}

func NewAttributes() *Attributes {
	return &Attributes{index: make(map[string]int, 16)}
}

func (a *Attributes) Set(kind AttrKind, key, content string) {
	if a.index == nil {
		a.index = make(map[string]int, 16)
	}
	if i, ok := a.index[key]; ok {
		a.list[i].Kind = kind
		a.list[i].Content = content
		return
	}
	a.index[key] = len(a.list)
	a.list = append(a.list, Attribute{Kind: kind, Key: key, Content: content})
}

func (a *Attributes) Get(key string) (Attribute, bool) {
	i, ok := a.index[key]
	if !ok {
		return Attribute{}, false
	}
	return a.list[i], true
}

// Content returns the content for key, or "" if the key is not set.
func (a *Attributes) Content(key string) string {
	at, _ := a.Get(key)
	return at.Content
}

func (a *Attributes) Has(key string) bool {
	_, ok := a.index[key]
	return ok
}

func (a *Attributes) Len() int { return len(a.list) }

// All returns a copy of the attributes in output order.
func (a *Attributes) All() []Attribute {
	out := make([]Attribute, len(a.list))
	copy(out, a.list)
	return out
}

// Keys returns the keys in output order.
func (a *Attributes) Keys() []string {
	out := make([]string, len(a.list))
	for i, at := range a.list {
		out[i] = at.Key
	}
	return out
}
