package cache

// orderNode is a node in the insertion-order list. It stores its key so an
// entry can be unlinked in O(1) from the map side.
type orderNode[K comparable] struct {
	key  K
	prev *orderNode[K]
	next *orderNode[K]
}

// orderList is a doubly-linked list of keys, oldest first.
// The list is not thread-safe; callers must handle synchronization.
type orderList[K comparable] struct {
	head *orderNode[K]
	tail *orderNode[K]
	len  int
}

// PushBack appends key as the newest entry and returns its node.
func (l *orderList[K]) PushBack(key K) *orderNode[K] {
	node := &orderNode[K]{key: key, prev: l.tail}
	if l.tail == nil {
		l.head = node
	} else {
		l.tail.next = node
	}
	l.tail = node
	l.len++
	return node
}

// Remove unlinks node from the list.
func (l *orderList[K]) Remove(node *orderNode[K]) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}
	node.prev = nil
	node.next = nil
	l.len--
}

// Keys returns the keys oldest first.
func (l *orderList[K]) Keys() []K {
	keys := make([]K, 0, l.len)
	for n := l.head; n != nil; n = n.next {
		keys = append(keys, n.key)
	}
	return keys
}

// Len returns the number of nodes in the list.
func (l *orderList[K]) Len() int { return l.len }

// Clear removes all nodes.
func (l *orderList[K]) Clear() {
	l.head = nil
	l.tail = nil
	l.len = 0
}
