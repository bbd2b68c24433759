package storage

// iterator holding the iterators state
//
// IMPORTANT: iterator does not provide thread safety
type iterator struct {
	tree *redBlackTree
	node *redBlackNode
	pos  position
}

type position byte

const (
	begin, onmyway, end position = 0, 1, 2
)

// iterator returns an iterator positioned one-before-first
func (t *redBlackTree) iterator() iterator {
	return iterator{tree: t, node: nil, pos: begin}
}

// seek returns an iterator positioned on the first key >= key
func (t *redBlackTree) seek(key []byte) iterator {
	node := t.ceiling(key)
	if node == nil {
		return iterator{tree: t, node: nil, pos: end}
	}
	return iterator{tree: t, node: node, pos: onmyway}
}

// next moves the iterator to the next element
func (it *iterator) next() bool {
	switch it.pos {
	case end:
		it.node = nil
		return false
	case begin:
		it.node = it.tree.min()
		if it.node == nil {
			it.pos = end
			return false
		}
		it.pos = onmyway
		return true
	}

	if it.node.right != nil {
		it.node = it.node.right
		for it.node.left != nil {
			it.node = it.node.left
		}
		return true
	}

	for it.node.parent != nil {
		node := it.node
		it.node = it.node.parent
		if node == it.node.left {
			return true
		}
	}

	it.node = nil
	it.pos = end
	return false
}

// prev moves the iterator to the previous element
func (it *iterator) prev() bool {
	switch it.pos {
	case begin:
		it.node = nil
		return false
	case end:
		it.node = it.tree.max()
		if it.node == nil {
			it.pos = begin
			return false
		}
		it.pos = onmyway
		return true
	}

	if it.node.left != nil {
		it.node = it.node.left
		for it.node.right != nil {
			it.node = it.node.right
		}
		return true
	}

	for it.node.parent != nil {
		node := it.node
		it.node = it.node.parent
		if node == it.node.right {
			return true
		}
	}

	it.node = nil
	it.pos = begin
	return false
}

// valid reports whether the iterator stands on an element
func (it *iterator) valid() bool {
	return it.pos == onmyway && it.node != nil
}

// key returns the current element's key
func (it *iterator) key() []byte {
	return it.node.key
}

// value returns the current element's value
func (it *iterator) value() []byte {
	return it.node.value
}
