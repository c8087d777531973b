// Package scene keeps a node hierarchy in a flat arena. Nodes refer to each
// other by index so the traversals never chase pointers.
package scene

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/spaghettifunk/gensou/engine/core"
)

// NodeID indexes a node in its Scene. None marks an absent link.
type NodeID int32

const None NodeID = -1

var ErrInvalidNode = errors.New("invalid scene node")

type node struct {
	id   uuid.UUID
	name string

	parent   NodeID
	first    NodeID
	last     NodeID
	previous NodeID
	next     NodeID
	children int

	active  bool
	visible bool
	alive   bool

	transform mgl32.Mat4
}

// Scene is an arena of nodes. It is not safe for concurrent use; it belongs
// to the main thread.
type Scene struct {
	nodes []node
	free  []NodeID
	roots []NodeID
}

func New() *Scene {
	return &Scene{}
}

// Create adds a node under parent, or as a root when parent is None. New
// nodes are active and visible with an identity transform.
func (s *Scene) Create(name string, parent NodeID) (NodeID, error) {
	if parent != None && !s.Valid(parent) {
		return None, errors.Wrapf(ErrInvalidNode, "parent %d", parent)
	}

	n := node{
		id:        uuid.New(),
		name:      name,
		parent:    None,
		first:     None,
		last:      None,
		previous:  None,
		next:      None,
		active:    true,
		visible:   true,
		alive:     true,
		transform: mgl32.Ident4(),
	}

	var id NodeID
	if k := len(s.free); k > 0 {
		id = s.free[k-1]
		s.free = s.free[:k-1]
		s.nodes[id] = n
	} else {
		id = NodeID(len(s.nodes))
		s.nodes = append(s.nodes, n)
	}

	if parent == None {
		s.roots = append(s.roots, id)
	} else {
		s.link(id, parent)
	}
	return id, nil
}

// Destroy removes a node and its whole subtree. Their ids become reusable.
func (s *Scene) Destroy(id NodeID) error {
	if !s.Valid(id) {
		return errors.Wrapf(ErrInvalidNode, "destroy %d", id)
	}
	var doomed []NodeID
	s.ForEachPostorder(id, func(n NodeID) bool {
		doomed = append(doomed, n)
		return false
	})

	if s.nodes[id].parent == None {
		s.removeRoot(id)
	} else {
		s.unlink(id)
	}
	for _, n := range doomed {
		s.nodes[n].alive = false
		s.free = append(s.free, n)
	}
	core.LogDebug("scene: destroyed '%s' and %d descendants", s.nodes[id].name, len(doomed)-1)
	return nil
}

// SetParent moves a node, with its subtree, under parent. None makes it a
// root. A node cannot be moved below one of its own descendants.
func (s *Scene) SetParent(id, parent NodeID) error {
	if !s.Valid(id) || (parent != None && !s.Valid(parent)) {
		return errors.Wrapf(ErrInvalidNode, "reparent %d to %d", id, parent)
	}
	for p := parent; p != None; p = s.nodes[p].parent {
		if p == id {
			return errors.Errorf("cannot parent node %d to its descendant %d", id, parent)
		}
	}

	if s.nodes[id].parent == None {
		s.removeRoot(id)
	} else {
		s.unlink(id)
	}
	if parent == None {
		s.roots = append(s.roots, id)
	} else {
		s.link(id, parent)
	}
	return nil
}

// link appends id as the last child of parent.
func (s *Scene) link(id, parent NodeID) {
	n, p := &s.nodes[id], &s.nodes[parent]
	n.parent = parent
	n.previous = p.last
	n.next = None
	if p.last != None {
		s.nodes[p.last].next = id
	} else {
		p.first = id
	}
	p.last = id
	p.children++
}

func (s *Scene) unlink(id NodeID) {
	n := &s.nodes[id]
	p := &s.nodes[n.parent]
	if n.previous != None {
		s.nodes[n.previous].next = n.next
	} else {
		p.first = n.next
	}
	if n.next != None {
		s.nodes[n.next].previous = n.previous
	} else {
		p.last = n.previous
	}
	p.children--
	n.parent, n.previous, n.next = None, None, None
}

func (s *Scene) removeRoot(id NodeID) {
	for i, r := range s.roots {
		if r == id {
			s.roots = append(s.roots[:i], s.roots[i+1:]...)
			return
		}
	}
}

func (s *Scene) Valid(id NodeID) bool {
	return id >= 0 && int(id) < len(s.nodes) && s.nodes[id].alive
}

func (s *Scene) Len() int { return len(s.nodes) - len(s.free) }

// Roots returns the top-level nodes in creation order.
func (s *Scene) Roots() []NodeID { return s.roots }

func (s *Scene) Name(id NodeID) string       { return s.nodes[id].name }
func (s *Scene) UUID(id NodeID) uuid.UUID    { return s.nodes[id].id }
func (s *Scene) Parent(id NodeID) NodeID     { return s.nodes[id].parent }
func (s *Scene) ChildCount(id NodeID) int    { return s.nodes[id].children }
func (s *Scene) Active(id NodeID) bool       { return s.nodes[id].active }
func (s *Scene) SetActive(id NodeID, v bool) { s.nodes[id].active = v }
func (s *Scene) SetVisible(id NodeID, v bool) {
	s.nodes[id].visible = v
}

// Children lists the direct children of id in order.
func (s *Scene) Children(id NodeID) []NodeID {
	out := make([]NodeID, 0, s.nodes[id].children)
	for c := s.nodes[id].first; c != None; c = s.nodes[c].next {
		out = append(out, c)
	}
	return out
}

// Visible reports whether the node and every ancestor are visible.
func (s *Scene) Visible(id NodeID) bool {
	for n := id; n != None; n = s.nodes[n].parent {
		if !s.nodes[n].visible {
			return false
		}
	}
	return true
}

func (s *Scene) Transform(id NodeID) mgl32.Mat4 { return s.nodes[id].transform }

func (s *Scene) SetTransform(id NodeID, m mgl32.Mat4) { s.nodes[id].transform = m }

// WorldTransform composes the local transforms from the root down to id.
func (s *Scene) WorldTransform(id NodeID) mgl32.Mat4 {
	m := s.nodes[id].transform
	for p := s.nodes[id].parent; p != None; p = s.nodes[p].parent {
		m = s.nodes[p].transform.Mul4(m)
	}
	return m
}
