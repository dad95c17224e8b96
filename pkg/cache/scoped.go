package cache

// ScopedKeyer prefixes every key of an inner [Keyer]. The CLI scopes keys
// by release so artifacts from an older renderer are never served.
//
//	keyer := cache.NewScopedKeyer(nil, "v1.2.0:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer wraps inner, or a [DefaultKeyer] when inner is nil.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

func (k *ScopedKeyer) FrameKey(datasetHash string, opts FrameKeyOpts) string {
	return k.prefix + k.inner.FrameKey(datasetHash, opts)
}

func (k *ScopedKeyer) NetworkKey(datasetHash string, opts NetworkKeyOpts) string {
	return k.prefix + k.inner.NetworkKey(datasetHash, opts)
}
