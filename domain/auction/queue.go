package auction

type color uint8

const (
	red   color = 0
	black color = 1
)

type node struct {
	order  Order
	color  color
	left   *node
	right  *node
	parent *node
}

// OrderQueue is the sorted set of placed orders, ascending by Order.Less,
// bracketed by QueueStart and QueueEnd. It is a red-black tree with a key
// index for constant-time membership.
type OrderQueue struct {
	root  *node
	nil   *node // sentinel (black)
	index map[Key]*node
}

// NewOrderQueue constructs an empty queue.
func NewOrderQueue() *OrderQueue {
	nilNode := &node{color: black}
	return &OrderQueue{
		root:  nilNode,
		nil:   nilNode,
		index: make(map[Key]*node),
	}
}

func (q *OrderQueue) Len() int { return len(q.index) }

// Contains reports whether the order is currently queued. Sentinels are
// never contained.
func (q *OrderQueue) Contains(o Order) bool {
	if o.IsSentinel() {
		return false
	}
	_, ok := q.index[Encode(o)]
	return ok
}

// ValidHint reports whether prev may be used as the predecessor hint for
// o: it must be QueueStart or a queued order, and sort strictly before o.
func (q *OrderQueue) ValidHint(prev, o Order) bool {
	if !prev.IsStart() && !q.Contains(prev) {
		return false
	}
	return prev.Less(o)
}

// Insert adds o after the caller supplied predecessor hint. It returns
// false without error when o is already queued.
func (q *OrderQueue) Insert(o, prev Order) (bool, error) {
	if !o.validAmounts() {
		return false, ErrInvalidOrder
	}
	if q.Contains(o) {
		return false, nil
	}
	if !q.ValidHint(prev, o) {
		return false, ErrInvalidInsertionPoint
	}
	q.insert(o)
	return true, nil
}

// Remove deletes o. Removing an absent order is a no-op returning false.
func (q *OrderQueue) Remove(o Order) bool {
	if o.IsSentinel() {
		return false
	}
	k := Encode(o)
	z, ok := q.index[k]
	if !ok {
		return false
	}
	delete(q.index, k)
	q.deleteNode(z)
	return true
}

// Next returns the smallest queued order strictly greater than o, or
// QueueEnd. o itself does not need to be queued.
func (q *OrderQueue) Next(o Order) Order {
	if o.IsEnd() {
		return QueueEnd
	}
	if z, ok := q.index[Encode(o)]; ok && !o.IsSentinel() {
		if n := q.next(z); n != q.nil {
			return n.order
		}
		return QueueEnd
	}

	n := q.root
	succ := q.nil
	for n != q.nil {
		if o.Less(n.order) {
			succ = n
			n = n.left
		} else {
			n = n.right
		}
	}
	if succ == q.nil {
		return QueueEnd
	}
	return succ.order
}

// First returns the smallest queued order, or QueueEnd when empty.
func (q *OrderQueue) First() Order {
	n := q.minNode(q.root)
	if n == q.nil {
		return QueueEnd
	}
	return n.order
}

// Ascend visits queued orders from the best bid to the worst until fn
// returns false.
func (q *OrderQueue) Ascend(fn func(Order) bool) {
	for n := q.minNode(q.root); n != q.nil; n = q.next(n) {
		if !fn(n.order) {
			return
		}
	}
}

// Orders returns every queued order in ascending order.
func (q *OrderQueue) Orders() []Order {
	out := make([]Order, 0, q.Len())
	q.Ascend(func(o Order) bool {
		out = append(out, o)
		return true
	})
	return out
}

/******************** Internal helpers ********************/

func (q *OrderQueue) insert(o Order) {
	y := q.nil
	x := q.root
	for x != q.nil {
		y = x
		if o.Less(x.order) {
			x = x.left
		} else {
			x = x.right
		}
	}

	z := &node{
		order:  o,
		color:  red,
		left:   q.nil,
		right:  q.nil,
		parent: y,
	}

	if y == q.nil {
		q.root = z
	} else if o.Less(y.order) {
		y.left = z
	} else {
		y.right = z
	}
	q.index[Encode(o)] = z
	q.insertFixup(z)
}

func (q *OrderQueue) minNode(n *node) *node {
	if n == q.nil {
		return q.nil
	}
	for n.left != q.nil {
		n = n.left
	}
	return n
}

func (q *OrderQueue) next(n *node) *node {
	if n == nil || n == q.nil {
		return q.nil
	}
	if n.right != q.nil {
		return q.minNode(n.right)
	}
	p := n.parent
	for p != q.nil && n == p.right {
		n = p
		p = p.parent
	}
	return p
}

func (q *OrderQueue) leftRotate(x *node) {
	y := x.right
	x.right = y.left
	if y.left != q.nil {
		y.left.parent = x
	}
	y.parent = x.parent
	if x.parent == q.nil {
		q.root = y
	} else if x == x.parent.left {
		x.parent.left = y
	} else {
		x.parent.right = y
	}
	y.left = x
	x.parent = y
}

func (q *OrderQueue) rightRotate(y *node) {
	x := y.left
	y.left = x.right
	if x.right != q.nil {
		x.right.parent = y
	}
	x.parent = y.parent
	if y.parent == q.nil {
		q.root = x
	} else if y == y.parent.right {
		y.parent.right = x
	} else {
		y.parent.left = x
	}
	x.right = y
	y.parent = x
}

func (q *OrderQueue) insertFixup(z *node) {
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
					q.leftRotate(z)
				}
				z.parent.color = black
				z.parent.parent.color = red
				q.rightRotate(z.parent.parent)
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
					q.rightRotate(z)
				}
				z.parent.color = black
				z.parent.parent.color = red
				q.leftRotate(z.parent.parent)
			}
		}
	}
	q.root.color = black
}

func (q *OrderQueue) transplant(u, v *node) {
	if u.parent == q.nil {
		q.root = v
	} else if u == u.parent.left {
		u.parent.left = v
	} else {
		u.parent.right = v
	}
	v.parent = u.parent
}

func (q *OrderQueue) deleteNode(z *node) {
	y := z
	yOrigColor := y.color
	var x *node

	if z.left == q.nil {
		x = z.right
		q.transplant(z, z.right)
	} else if z.right == q.nil {
		x = z.left
		q.transplant(z, z.left)
	} else {
		y = q.minNode(z.right)
		yOrigColor = y.color
		x = y.right
		if y.parent == z {
			x.parent = y
		} else {
			q.transplant(y, y.right)
			y.right = z.right
			y.right.parent = y
		}
		q.transplant(z, y)
		y.left = z.left
		y.left.parent = y
		y.color = z.color
	}

	if yOrigColor == black {
		q.deleteFixup(x)
	}
	// the shared sentinel may have picked up a parent pointer
	q.nil.parent = q.nil
}

func (q *OrderQueue) deleteFixup(x *node) {
	for x != q.root && x.color == black {
		if x == x.parent.left {
			w := x.parent.right
			if w.color == red {
				w.color = black
				x.parent.color = red
				q.leftRotate(x.parent)
				w = x.parent.right
			}
			if w.left.color == black && w.right.color == black {
				w.color = red
				x = x.parent
			} else {
				if w.right.color == black {
					w.left.color = black
					w.color = red
					q.rightRotate(w)
					w = x.parent.right
				}
				w.color = x.parent.color
				x.parent.color = black
				w.right.color = black
				q.leftRotate(x.parent)
				x = q.root
			}
		} else {
			w := x.parent.left
			if w.color == red {
				w.color = black
				x.parent.color = red
				q.rightRotate(x.parent)
				w = x.parent.left
			}
			if w.right.color == black && w.left.color == black {
				w.color = red
				x = x.parent
			} else {
				if w.left.color == black {
					w.right.color = black
					w.color = red
					q.leftRotate(w)
					w = x.parent.left
				}
				w.color = x.parent.color
				x.parent.color = black
				w.left.color = black
				q.rightRotate(x.parent)
				x = q.root
			}
		}
	}
	x.color = black
}
