package storage

type kv struct {
	key   []byte
	value []byte
}

// sliceIterator walks a pre-sorted snapshot.
type sliceIterator struct {
	entries []kv
	pos     int
}

func newSliceIterator(entries []kv) *sliceIterator {
	return &sliceIterator{entries: entries, pos: -1}
}

func (it *sliceIterator) Next() bool {
	if it.pos+1 >= len(it.entries) {
		it.pos = len(it.entries)
		return false
	}
	it.pos++
	return true
}

func (it *sliceIterator) current() *kv {
	if it.pos < 0 || it.pos >= len(it.entries) {
		return nil
	}
	return &it.entries[it.pos]
}

func (it *sliceIterator) Key() []byte {
	if cur := it.current(); cur != nil {
		return copyBytes(cur.key)
	}
	return nil
}

func (it *sliceIterator) Value() []byte {
	if cur := it.current(); cur != nil {
		return copyBytes(cur.value)
	}
	return nil
}

func (it *sliceIterator) Error() error { return nil }

func (it *sliceIterator) Release() { it.entries = nil }
