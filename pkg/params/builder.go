package params

import "slices"

// Builder sets fields one at a time, marking each as explicitly set.
type Builder struct {
	p StoreParams
}

func NewBuilder() *Builder {
	return &Builder{}
}

// From starts a builder with every value and set flag of p
func From(p *StoreParams) *Builder {
	b := &Builder{}
	for _, f := range Fields() {
		b.p.v.copyField(&p.v, f)
	}
	b.p.set = p.set
	return b
}

func (b *Builder) mark(f Field) *Builder {
	b.p.set[f] = true
	return b
}

func (b *Builder) IndexFamily(f IndexFamily) *Builder {
	b.p.v.indexFamily = f
	return b.mark(FieldIndexFamily)
}

func (b *Builder) BlockSize(n int) *Builder {
	b.p.v.blockSize = n
	return b.mark(FieldBlockSize)
}

func (b *Builder) TripleIndexes(orders ...string) *Builder {
	b.p.v.tripleIndexes = slices.Clone(orders)
	return b.mark(FieldTripleIndexes)
}

func (b *Builder) QuadIndexes(orders ...string) *Builder {
	b.p.v.quadIndexes = slices.Clone(orders)
	return b.mark(FieldQuadIndexes)
}

func (b *Builder) PrefixIndexes(orders ...string) *Builder {
	b.p.v.prefixIndexes = slices.Clone(orders)
	return b.mark(FieldPrefixIndexes)
}

func (b *Builder) IndexNode2Id(name string) *Builder {
	b.p.v.indexNode2Id = name
	return b.mark(FieldIndexNode2Id)
}

func (b *Builder) IndexId2Node(name string) *Builder {
	b.p.v.indexId2Node = name
	return b.mark(FieldIndexId2Node)
}

func (b *Builder) FileMode(m FileMode) *Builder {
	b.p.v.fileMode = m
	return b.mark(FieldFileMode)
}

func (b *Builder) Node2NodeIDCacheSize(n int) *Builder {
	b.p.v.node2NodeIDCacheSize = n
	return b.mark(FieldNode2NodeIDCacheSize)
}

func (b *Builder) NodeID2NodeCacheSize(n int) *Builder {
	b.p.v.nodeID2NodeCacheSize = n
	return b.mark(FieldNodeID2NodeCacheSize)
}

func (b *Builder) NodeMissCacheSize(n int) *Builder {
	b.p.v.nodeMissCacheSize = n
	return b.mark(FieldNodeMissCacheSize)
}

func (b *Builder) BlockCacheSize(n int64) *Builder {
	b.p.v.blockCacheSize = n
	return b.mark(FieldBlockCacheSize)
}

// Build returns the params. Only set fields are checked here; the rest are
// filled in, and the whole set validated, by Resolve.
func (b *Builder) Build() (*StoreParams, error) {
	p := &StoreParams{set: b.p.set}
	for _, f := range Fields() {
		p.v.copyField(&b.p.v, f)
	}
	merged := Default()
	for _, f := range Fields() {
		if p.set[f] {
			merged.v.copyField(&p.v, f)
		}
	}
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
