package store

// Section is a serialisable snapshot of a node subtree.
type Section struct {
	Values   map[string]string   `toml:"values,omitempty" json:"values,omitempty"`
	Children map[string]*Section `toml:"children,omitempty" json:"children,omitempty"`
}
