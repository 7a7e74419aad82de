package types

// Metadata is a map of key-value pairs stored alongside domain objects
type Metadata map[string]string

func (m Metadata) Copy() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Merge combines the metadata with the given map, the given map takes precedence
func (m Metadata) Merge(other Metadata) Metadata {
	out := m.Copy()
	if out == nil {
		out = make(Metadata, len(other))
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}
