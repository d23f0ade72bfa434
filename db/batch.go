package db

// Op is a single staged write.
type Op struct {
	Key    []byte
	Value  []byte
	Delete bool
}

// Batch is an ordered set of writes. Later writes to a key replace earlier
// ones. A batch is not safe for concurrent use.
type Batch struct {
	ops   []Op
	index map[string]int
}

// NewBatch creates an empty batch.
func NewBatch() *Batch {
	return &Batch{index: make(map[string]int)}
}

func (b *Batch) put(op Op) {
	if b.index == nil {
		b.index = make(map[string]int)
	}
	if i, found := b.index[string(op.Key)]; found {
		b.ops[i] = op
		return
	}
	b.index[string(op.Key)] = len(b.ops)
	b.ops = append(b.ops, op)
}

// Set stages key = value.
func (b *Batch) Set(key []byte, value []byte) {
	k := append([]byte(nil), key...)
	v := append([]byte(nil), value...)
	b.put(Op{Key: k, Value: v})
}

// Delete stages the removal of key.
func (b *Batch) Delete(key []byte) {
	b.put(Op{Key: append([]byte(nil), key...), Delete: true})
}

// Get returns the staged value of a key. staged is false if the batch does
// not touch the key. deleted is true if the batch removes it.
func (b *Batch) Get(key []byte) (value []byte, staged bool, deleted bool) {
	i, found := b.index[string(key)]
	if !found {
		return nil, false, false
	}
	op := b.ops[i]
	return op.Value, true, op.Delete
}

// Merge appends the writes of another batch. Writes of other win over
// writes already in b.
func (b *Batch) Merge(other *Batch) {
	if other == nil {
		return
	}
	for _, op := range other.ops {
		b.put(op)
	}
}

// Ops returns the staged writes in order.
func (b *Batch) Ops() []Op {
	return b.ops
}

// Len is the number of staged writes.
func (b *Batch) Len() int {
	return len(b.ops)
}
