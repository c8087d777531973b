package scene

// Visitor is called for every node a traversal reaches. Returning true stops
// the traversal.
type Visitor func(id NodeID) bool

// ForEachPreorder visits root, then each subtree left to right. It reports
// whether a visitor stopped the walk.
func (s *Scene) ForEachPreorder(root NodeID, visit Visitor) bool {
	if !s.Valid(root) {
		return false
	}
	n := root
	for {
		if visit(n) {
			return true
		}
		if s.nodes[n].first != None {
			n = s.nodes[n].first
			continue
		}
		n = s.nextAfterSubtree(n, root)
		if n == None {
			return false
		}
	}
}

// ForEachPostorder visits every child subtree before its parent, so root is
// visited last.
func (s *Scene) ForEachPostorder(root NodeID, visit Visitor) bool {
	if !s.Valid(root) {
		return false
	}
	n := s.deepestFirst(root)
	for {
		if visit(n) {
			return true
		}
		if n == root {
			return false
		}
		if next := s.nodes[n].next; next != None {
			n = s.deepestFirst(next)
		} else {
			n = s.nodes[n].parent
		}
	}
}

// ForEachVisible is a preorder walk that skips every inactive or invisible
// node together with its subtree.
func (s *Scene) ForEachVisible(root NodeID, visit Visitor) bool {
	if !s.Valid(root) || !s.Visible(root) {
		return false
	}
	n := root
	for {
		shown := s.nodes[n].active && s.nodes[n].visible
		if shown && visit(n) {
			return true
		}
		if shown && s.nodes[n].first != None {
			n = s.nodes[n].first
			continue
		}
		n = s.nextAfterSubtree(n, root)
		if n == None {
			return false
		}
	}
}

// ForEachRoot runs a preorder walk over every root in turn.
func (s *Scene) ForEachRoot(visit Visitor) bool {
	for _, r := range s.roots {
		if s.ForEachPreorder(r, visit) {
			return true
		}
	}
	return false
}

// nextAfterSubtree climbs from n until it finds a right sibling, stopping at
// root.
func (s *Scene) nextAfterSubtree(n, root NodeID) NodeID {
	for n != root {
		if next := s.nodes[n].next; next != None {
			return next
		}
		n = s.nodes[n].parent
	}
	return None
}

func (s *Scene) deepestFirst(n NodeID) NodeID {
	for s.nodes[n].first != None {
		n = s.nodes[n].first
	}
	return n
}
