// Package rbtree implements an ordered map backed by a red-black tree.
//
// Keys are unique: inserting a key that is already present leaves the tree
// unchanged, so the first writer of a key wins. Removing an absent key is a
// no-op. A Tree is not safe for concurrent use; callers serialize access.
package rbtree

import (
	"cmp"
	"iter"
)

type color bool

const (
	red   color = true
	black color = false
)

type node[K cmp.Ordered, V any] struct {
	key    K
	value  V
	color  color
	parent *node[K, V]
	left   *node[K, V]
	right  *node[K, V]
}

// Tree is a red-black tree keyed by K.
type Tree[K cmp.Ordered, V any] struct {
	root *node[K, V]
	leaf *node[K, V] // shared black sentinel
	size int
}

// New returns an empty tree.
func New[K cmp.Ordered, V any]() *Tree[K, V] {
	leaf := &node[K, V]{color: black}
	return &Tree[K, V]{root: leaf, leaf: leaf}
}

// Len returns the number of entries.
func (t *Tree[K, V]) Len() int {
	return t.size
}

// Insert adds key mapped to value. It reports false and changes nothing when
// key is already present.
func (t *Tree[K, V]) Insert(key K, value V) bool {
	parent := t.leaf
	cur := t.root
	for cur != t.leaf {
		parent = cur
		switch c := cmp.Compare(key, cur.key); {
		case c < 0:
			cur = cur.left
		case c > 0:
			cur = cur.right
		default:
			return false
		}
	}

	z := &node[K, V]{
		key:    key,
		value:  value,
		color:  red,
		parent: parent,
		left:   t.leaf,
		right:  t.leaf,
	}
	switch {
	case parent == t.leaf:
		t.root = z
	case cmp.Less(key, parent.key):
		parent.left = z
	default:
		parent.right = z
	}
	t.insertFixup(z)
	t.size++
	return true
}

// Remove deletes key. It reports false when key is absent.
func (t *Tree[K, V]) Remove(key K) bool {
	z := t.lookup(key)
	if z == t.leaf {
		return false
	}

	y := z
	yColor := y.color
	var x *node[K, V]
	switch {
	case z.left == t.leaf:
		x = z.right
		t.transplant(z, z.right)
	case z.right == t.leaf:
		x = z.left
		t.transplant(z, z.left)
	default:
		y = t.minimum(z.right)
		yColor = y.color
		x = y.right
		if y.parent == z {
			x.parent = y
		} else {
			t.transplant(y, y.right)
			y.right = z.right
			y.right.parent = y
		}
		t.transplant(z, y)
		y.left = z.left
		y.left.parent = y
		y.color = z.color
	}
	if yColor == black {
		t.deleteFixup(x)
	}
	// The sentinel's parent pointer is scratch space for the fix-up.
	t.leaf.parent = nil
	t.size--
	return true
}

// Find returns the value stored under key.
func (t *Tree[K, V]) Find(key K) (V, bool) {
	n := t.lookup(key)
	if n == t.leaf {
		var zero V
		return zero, false
	}
	return n.value, true
}

// All yields entries in ascending key order. Each call starts a fresh
// traversal; the tree must not be mutated while iterating.
func (t *Tree[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		t.ascend(t.root, yield)
	}
}

// Backward yields entries in descending key order.
func (t *Tree[K, V]) Backward() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		t.descend(t.root, yield)
	}
}

// Values yields values in ascending key order.
func (t *Tree[K, V]) Values() iter.Seq[V] {
	return func(yield func(V) bool) {
		t.ascend(t.root, func(_ K, v V) bool { return yield(v) })
	}
}

func (t *Tree[K, V]) ascend(n *node[K, V], yield func(K, V) bool) bool {
	if n == t.leaf {
		return true
	}
	return t.ascend(n.left, yield) && yield(n.key, n.value) && t.ascend(n.right, yield)
}

func (t *Tree[K, V]) descend(n *node[K, V], yield func(K, V) bool) bool {
	if n == t.leaf {
		return true
	}
	return t.descend(n.right, yield) && yield(n.key, n.value) && t.descend(n.left, yield)
}

func (t *Tree[K, V]) lookup(key K) *node[K, V] {
	cur := t.root
	for cur != t.leaf {
		switch c := cmp.Compare(key, cur.key); {
		case c < 0:
			cur = cur.left
		case c > 0:
			cur = cur.right
		default:
			return cur
		}
	}
	return t.leaf
}

func (t *Tree[K, V]) minimum(n *node[K, V]) *node[K, V] {
	for n.left != t.leaf {
		n = n.left
	}
	return n
}

func (t *Tree[K, V]) insertFixup(z *node[K, V]) {
	for z.parent.color == red {
		gp := z.parent.parent
		if z.parent == gp.left {
			uncle := gp.right
			if uncle.color == red {
				z.parent.color = black
				uncle.color = black
				gp.color = red
				z = gp
				continue
			}
			if z == z.parent.right {
				z = z.parent
				t.rotateLeft(z)
			}
			z.parent.color = black
			z.parent.parent.color = red
			t.rotateRight(z.parent.parent)
		} else {
			uncle := gp.left
			if uncle.color == red {
				z.parent.color = black
				uncle.color = black
				gp.color = red
				z = gp
				continue
			}
			if z == z.parent.left {
				z = z.parent
				t.rotateRight(z)
			}
			z.parent.color = black
			z.parent.parent.color = red
			t.rotateLeft(z.parent.parent)
		}
	}
	t.root.color = black
}

// deleteFixup restores the black-height after removing a black node; x
// carries the extra black.
func (t *Tree[K, V]) deleteFixup(x *node[K, V]) {
	for x != t.root && x.color == black {
		if x == x.parent.left {
			w := x.parent.right
			if w.color == red {
				w.color = black
				x.parent.color = red
				t.rotateLeft(x.parent)
				w = x.parent.right
			}
			if w.left.color == black && w.right.color == black {
				w.color = red
				x = x.parent
				continue
			}
			if w.right.color == black {
				w.left.color = black
				w.color = red
				t.rotateRight(w)
				w = x.parent.right
			}
			w.color = x.parent.color
			x.parent.color = black
			w.right.color = black
			t.rotateLeft(x.parent)
			x = t.root
		} else {
			w := x.parent.left
			if w.color == red {
				w.color = black
				x.parent.color = red
				t.rotateRight(x.parent)
				w = x.parent.left
			}
			if w.right.color == black && w.left.color == black {
				w.color = red
				x = x.parent
				continue
			}
			if w.left.color == black {
				w.right.color = black
				w.color = red
				t.rotateLeft(w)
				w = x.parent.left
			}
			w.color = x.parent.color
			x.parent.color = black
			w.left.color = black
			t.rotateRight(x.parent)
			x = t.root
		}
	}
	x.color = black
}

func (t *Tree[K, V]) transplant(u, v *node[K, V]) {
	switch {
	case u.parent == t.leaf:
		t.root = v
	case u == u.parent.left:
		u.parent.left = v
	default:
		u.parent.right = v
	}
	v.parent = u.parent
}

func (t *Tree[K, V]) rotateLeft(x *node[K, V]) {
	y := x.right
	x.right = y.left
	if y.left != t.leaf {
		y.left.parent = x
	}
	y.parent = x.parent
	switch {
	case x.parent == t.leaf:
		t.root = y
	case x == x.parent.left:
		x.parent.left = y
	default:
		x.parent.right = y
	}
	y.left = x
	x.parent = y
}

func (t *Tree[K, V]) rotateRight(x *node[K, V]) {
	y := x.left
	x.left = y.right
	if y.right != t.leaf {
		y.right.parent = x
	}
	y.parent = x.parent
	switch {
	case x.parent == t.leaf:
		t.root = y
	case x == x.parent.right:
		x.parent.right = y
	default:
		x.parent.left = y
	}
	y.right = x
	x.parent = y
}
