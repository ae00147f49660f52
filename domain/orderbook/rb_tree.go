package orderbook

import "github.com/cockroachdb/errors"

type color uint8

const (
	red   color = 0
	black color = 1
)

// rbNode owns its PriceLevel so a level costs one allocation, and removed
// nodes are recycled.
type rbNode struct {
	level  PriceLevel
	color  color
	left   *rbNode
	right  *rbNode
	parent *rbNode
}

// rbLadder is a red-black tree keyed by price with a cached best node.
type rbLadder struct {
	root     *rbNode
	sentinel *rbNode // shared black leaf
	best     *rbNode
	spare    *rbNode // recycled nodes, chained through parent
	dir      Direction
	size     int
}

func newRBLadder(dir Direction) *rbLadder {
	s := &rbNode{color: black}
	return &rbLadder{root: s, sentinel: s, best: s, dir: dir}
}

func (t *rbLadder) Len() int { return t.size }

func (t *rbLadder) Best() *PriceLevel {
	if t.best == t.sentinel {
		return nil
	}
	return &t.best.level
}

func (t *rbLadder) GetOrCreate(price int64) (*PriceLevel, bool) {
	y := t.sentinel
	x := t.root
	for x != t.sentinel {
		y = x
		switch {
		case price < x.level.Price:
			x = x.left
		case price > x.level.Price:
			x = x.right
		default:
			return &x.level, false
		}
	}

	z := t.newNode(price)
	z.parent = y
	if y == t.sentinel {
		t.root = z
	} else if price < y.level.Price {
		y.left = z
	} else {
		y.right = z
	}
	t.insertFixup(z)
	t.size++

	if t.best == t.sentinel || t.dir.better(price, t.best.level.Price) {
		t.best = z
	}
	return &z.level, true
}

func (t *rbLadder) RemoveIfEmpty(l *PriceLevel) bool {
	if !l.Empty() {
		return false
	}
	z := t.best
	if z == t.sentinel || &z.level != l {
		z = t.search(l.Price)
		if z == t.sentinel || &z.level != l {
			panic(errors.AssertionFailedf("orderbook: level %d not in ladder", l.Price))
		}
	}
	if z == t.best {
		t.best = t.step(z)
	}
	t.deleteNode(z)
	t.size--
	t.recycle(z)
	return true
}

func (t *rbLadder) Walk(fn func(*PriceLevel) bool) {
	for n := t.best; n != t.sentinel; n = t.step(n) {
		if !fn(&n.level) {
			return
		}
	}
}

func (t *rbLadder) newNode(price int64) *rbNode {
	z := t.spare
	if z != nil {
		t.spare = z.parent
	} else {
		z = &rbNode{}
	}
	z.level.Price = price
	z.color = red
	z.left, z.right = t.sentinel, t.sentinel
	return z
}

func (t *rbLadder) recycle(z *rbNode) {
	z.left, z.right = nil, nil
	z.level.TotalQty = 0
	z.parent = t.spare
	t.spare = z
}

// step moves one level away from best.
func (t *rbLadder) step(n *rbNode) *rbNode {
	if t.dir == Ascending {
		return t.next(n)
	}
	return t.prev(n)
}

func (t *rbLadder) search(price int64) *rbNode {
	n := t.root
	for n != t.sentinel {
		switch {
		case price < n.level.Price:
			n = n.left
		case price > n.level.Price:
			n = n.right
		default:
			return n
		}
	}
	return t.sentinel
}

func (t *rbLadder) minNode(n *rbNode) *rbNode {
	for n != t.sentinel && n.left != t.sentinel {
		n = n.left
	}
	return n
}

func (t *rbLadder) maxNode(n *rbNode) *rbNode {
	for n != t.sentinel && n.right != t.sentinel {
		n = n.right
	}
	return n
}

func (t *rbLadder) next(n *rbNode) *rbNode {
	if n.right != t.sentinel {
		return t.minNode(n.right)
	}
	p := n.parent
	for p != t.sentinel && n == p.right {
		n = p
		p = p.parent
	}
	return p
}

func (t *rbLadder) prev(n *rbNode) *rbNode {
	if n.left != t.sentinel {
		return t.maxNode(n.left)
	}
	p := n.parent
	for p != t.sentinel && n == p.left {
		n = p
		p = p.parent
	}
	return p
}

func (t *rbLadder) leftRotate(x *rbNode) {
	y := x.right
	x.right = y.left
	if y.left != t.sentinel {
		y.left.parent = x
	}
	y.parent = x.parent
	if x.parent == t.sentinel {
		t.root = y
	} else if x == x.parent.left {
		x.parent.left = y
	} else {
		x.parent.right = y
	}
	y.left = x
	x.parent = y
}

func (t *rbLadder) rightRotate(y *rbNode) {
	x := y.left
	y.left = x.right
	if x.right != t.sentinel {
		x.right.parent = y
	}
	x.parent = y.parent
	if y.parent == t.sentinel {
		t.root = x
	} else if y == y.parent.right {
		y.parent.right = x
	} else {
		y.parent.left = x
	}
	x.right = y
	y.parent = x
}

func (t *rbLadder) insertFixup(z *rbNode) {
	for z.parent.color == red {
		if z.parent == z.parent.parent.left {
			y := z.parent.parent.right
			if y.color == red {
				z.parent.color = black
				y.color = black
				z.parent.parent.color = red
				z = z.parent.parent
			} else {
				if z == z.parent.right {
					z = z.parent
					t.leftRotate(z)
				}
				z.parent.color = black
				z.parent.parent.color = red
				t.rightRotate(z.parent.parent)
			}
		} else {
			y := z.parent.parent.left
			if y.color == red {
				z.parent.color = black
				y.color = black
				z.parent.parent.color = red
				z = z.parent.parent
			} else {
				if z == z.parent.left {
					z = z.parent
					t.rightRotate(z)
				}
				z.parent.color = black
				z.parent.parent.color = red
				t.leftRotate(z.parent.parent)
			}
		}
	}
	t.root.color = black
}

func (t *rbLadder) transplant(u, v *rbNode) {
	if u.parent == t.sentinel {
		t.root = v
	} else if u == u.parent.left {
		u.parent.left = v
	} else {
		u.parent.right = v
	}
	v.parent = u.parent
}

// deleteNode unlinks z. The successor is relinked in place rather than
// copied, so pointers to surviving levels stay valid.
func (t *rbLadder) deleteNode(z *rbNode) {
	y := z
	yOrigColor := y.color
	var x *rbNode

	if z.left == t.sentinel {
		x = z.right
		t.transplant(z, z.right)
	} else if z.right == t.sentinel {
		x = z.left
		t.transplant(z, z.left)
	} else {
		y = t.minNode(z.right)
		yOrigColor = y.color
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

	if yOrigColor == black {
		t.deleteFixup(x)
	}
	t.sentinel.parent = nil
}

func (t *rbLadder) deleteFixup(x *rbNode) {
	for x != t.root && x.color == black {
		if x == x.parent.left {
			w := x.parent.right
			if w.color == red {
				w.color = black
				x.parent.color = red
				t.leftRotate(x.parent)
				w = x.parent.right
			}
			if w.left.color == black && w.right.color == black {
				w.color = red
				x = x.parent
			} else {
				if w.right.color == black {
					w.left.color = black
					w.color = red
					t.rightRotate(w)
					w = x.parent.right
				}
				w.color = x.parent.color
				x.parent.color = black
				w.right.color = black
				t.leftRotate(x.parent)
				x = t.root
			}
		} else {
			w := x.parent.left
			if w.color == red {
				w.color = black
				x.parent.color = red
				t.rightRotate(x.parent)
				w = x.parent.left
			}
			if w.right.color == black && w.left.color == black {
				w.color = red
				x = x.parent
			} else {
				if w.left.color == black {
					w.right.color = black
					w.color = red
					t.leftRotate(w)
					w = x.parent.left
				}
				w.color = x.parent.color
				x.parent.color = black
				w.left.color = black
				t.rightRotate(x.parent)
				x = t.root
			}
		}
	}
	x.color = black
}

// verify checks the red-black shape, key order, parent links and the cached
// best node.
func (t *rbLadder) verify() error {
	if t.root.color != black {
		return errors.AssertionFailedf("rbtree: red root")
	}
	if t.root != t.sentinel && t.root.parent != t.sentinel {
		return errors.AssertionFailedf("rbtree: root has a parent")
	}
	count := 0
	if _, err := t.verifyNode(t.root, &count); err != nil {
		return err
	}
	if count != t.size {
		return errors.AssertionFailedf("rbtree: size %d, counted %d", t.size, count)
	}
	want := t.minNode(t.root)
	if t.dir == Descending {
		want = t.maxNode(t.root)
	}
	if t.best != want {
		return errors.AssertionFailedf("rbtree: stale best node")
	}
	return nil
}

func (t *rbLadder) verifyNode(n *rbNode, count *int) (int, error) {
	if n == t.sentinel {
		return 1, nil
	}
	*count++
	if n.color == red && (n.left.color == red || n.right.color == red) {
		return 0, errors.AssertionFailedf("rbtree: red node %d has a red child", n.level.Price)
	}
	if n.left != t.sentinel && (n.left.parent != n || n.left.level.Price >= n.level.Price) {
		return 0, errors.AssertionFailedf("rbtree: bad left child under %d", n.level.Price)
	}
	if n.right != t.sentinel && (n.right.parent != n || n.right.level.Price <= n.level.Price) {
		return 0, errors.AssertionFailedf("rbtree: bad right child under %d", n.level.Price)
	}
	lh, err := t.verifyNode(n.left, count)
	if err != nil {
		return 0, err
	}
	rh, err := t.verifyNode(n.right, count)
	if err != nil {
		return 0, err
	}
	if lh != rh {
		return 0, errors.AssertionFailedf("rbtree: black height differs under %d", n.level.Price)
	}
	if n.color == black {
		lh++
	}
	return lh, nil
}
