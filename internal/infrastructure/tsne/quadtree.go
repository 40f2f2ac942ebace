package tsne

// quadNode — узел квадродерева Barnes-Hut над 2D-позициями точек.
// Внутренние узлы агрегируют центр масс поддерева, что позволяет
// аппроксимировать дальние отталкивающие силы одним телом.
type quadNode struct {
	cx, cy, hw, hh float64 // границы ячейки: центр и полуразмеры

	massX, massY float64 // центр масс точек поддерева
	count        int

	leafX, leafY float64
	leaf         bool

	children *[4]quadNode
}

// newQuadTree строит дерево по всем позициям.
// Порядок вставки фиксирован, структура дерева детерминирована.
func newQuadTree(pos [][2]float64) *quadNode {
	minX, minY := pos[0][0], pos[0][1]
	maxX, maxY := minX, minY
	for _, p := range pos {
		if p[0] < minX {
			minX = p[0]
		}
		if p[0] > maxX {
			maxX = p[0]
		}
		if p[1] < minY {
			minY = p[1]
		}
		if p[1] > maxY {
			maxY = p[1]
		}
	}

	// небольшой запас, чтобы крайние точки попадали внутрь ячейки
	hw := (maxX-minX)/2 + 1e-5
	hh := (maxY-minY)/2 + 1e-5

	root := &quadNode{
		cx: (minX + maxX) / 2,
		cy: (minY + maxY) / 2,
		hw: hw,
		hh: hh,
	}

	for _, p := range pos {
		root.insert(p[0], p[1])
	}

	return root
}

func (n *quadNode) insert(x, y float64) {
	// обновляем центр масс поддерева
	total := float64(n.count + 1)
	n.massX = (n.massX*float64(n.count) + x) / total
	n.massY = (n.massY*float64(n.count) + y) / total
	n.count++

	if n.count == 1 {
		n.leafX, n.leafY = x, y
		n.leaf = true
		return
	}

	if n.leaf {
		// совпадающие точки остаются в одном листе
		if n.leafX == x && n.leafY == y {
			return
		}

		n.subdivide()
		n.childFor(n.leafX, n.leafY).insert(n.leafX, n.leafY)
		n.leaf = false
	}

	n.childFor(x, y).insert(x, y)
}

func (n *quadNode) subdivide() {
	qw, qh := n.hw/2, n.hh/2
	n.children = &[4]quadNode{
		{cx: n.cx - qw, cy: n.cy - qh, hw: qw, hh: qh},
		{cx: n.cx + qw, cy: n.cy - qh, hw: qw, hh: qh},
		{cx: n.cx - qw, cy: n.cy + qh, hw: qw, hh: qh},
		{cx: n.cx + qw, cy: n.cy + qh, hw: qw, hh: qh},
	}
}

func (n *quadNode) childFor(x, y float64) *quadNode {
	idx := 0
	if x > n.cx {
		idx |= 1
	}
	if y > n.cy {
		idx |= 2
	}
	return &n.children[idx]
}

// negForces аккумулирует отталкивающую силу на точку (x, y) и сумму
// ненормированных q-весов. Ячейка достаточно далека, если её размер,
// делённый на расстояние, меньше theta.
func (n *quadNode) negForces(x, y, theta float64, fx, fy, sumQ *float64) {
	if n.count == 0 {
		return
	}

	// собственный вклад точки в листе пропускается
	if n.leaf && n.count == 1 && n.leafX == x && n.leafY == y {
		return
	}

	dx := x - n.massX
	dy := y - n.massY
	distSq := dx*dx + dy*dy

	cell := n.hw
	if n.hh > cell {
		cell = n.hh
	}

	if n.leaf || cell*cell < theta*theta*distSq {
		q := 1 / (1 + distSq)
		mult := float64(n.count) * q
		*sumQ += mult
		mult *= q
		*fx += mult * dx
		*fy += mult * dy
		return
	}

	for i := range n.children {
		n.children[i].negForces(x, y, theta, fx, fy, sumQ)
	}
}
