package scene

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

// tree builds
//
//	root
//	├── a
//	│   ├── a1
//	│   └── a2
//	└── b
//	    └── b1
func tree(t *testing.T) (*Scene, map[string]NodeID) {
	t.Helper()
	s := New()
	ids := map[string]NodeID{}
	add := func(name, parent string) {
		p := None
		if parent != "" {
			p = ids[parent]
		}
		id, err := s.Create(name, p)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		ids[name] = id
	}
	add("root", "")
	add("a", "root")
	add("a1", "a")
	add("a2", "a")
	add("b", "root")
	add("b1", "b")
	return s, ids
}

func collect(s *Scene, walk func(NodeID, Visitor) bool, root NodeID) []string {
	var names []string
	walk(root, func(id NodeID) bool {
		names = append(names, s.Name(id))
		return false
	})
	return names
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestTraversalOrder(t *testing.T) {
	s, ids := tree(t)

	tests := []struct {
		name string
		walk func(NodeID, Visitor) bool
		root string
		want []string
	}{
		{"preorder", s.ForEachPreorder, "root", []string{"root", "a", "a1", "a2", "b", "b1"}},
		{"postorder", s.ForEachPostorder, "root", []string{"a1", "a2", "a", "b1", "b", "root"}},
		{"preorder subtree", s.ForEachPreorder, "a", []string{"a", "a1", "a2"}},
		{"postorder subtree", s.ForEachPostorder, "b", []string{"b1", "b"}},
		{"leaf", s.ForEachPostorder, "a2", []string{"a2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := collect(s, tt.walk, ids[tt.root]); !equal(got, tt.want) {
				t.Fatalf("order = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTraversalStops(t *testing.T) {
	s, ids := tree(t)
	var seen []string
	stopped := s.ForEachPreorder(ids["root"], func(id NodeID) bool {
		seen = append(seen, s.Name(id))
		return s.Name(id) == "a1"
	})
	if !stopped {
		t.Fatal("walk did not report the stop")
	}
	if !equal(seen, []string{"root", "a", "a1"}) {
		t.Fatalf("seen = %v", seen)
	}
}

func TestForEachVisibleSkipsHiddenSubtrees(t *testing.T) {
	s, ids := tree(t)
	s.SetVisible(ids["a"], false)
	s.SetActive(ids["b1"], false)

	if got := collect(s, s.ForEachVisible, ids["root"]); !equal(got, []string{"root", "b"}) {
		t.Fatalf("visible = %v", got)
	}
	if s.Visible(ids["a1"]) {
		t.Fatal("child of a hidden node reported visible")
	}
	if got := collect(s, s.ForEachVisible, ids["a1"]); len(got) != 0 {
		t.Fatalf("walk from a hidden branch visited %v", got)
	}

	s.SetActive(ids["root"], false)
	if s.Active(ids["root"]) {
		t.Fatal("root still active")
	}
	if got := collect(s, s.ForEachVisible, ids["root"]); len(got) != 0 {
		t.Fatalf("inactive root visited %v", got)
	}
}

func TestDestroyReusesSlots(t *testing.T) {
	s, ids := tree(t)
	if err := s.Destroy(ids["a"]); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if s.Len() != 3 {
		t.Fatalf("len = %d, want 3", s.Len())
	}
	if s.Valid(ids["a1"]) || s.ChildCount(ids["root"]) != 1 {
		t.Fatal("subtree not removed")
	}
	if got := collect(s, s.ForEachPreorder, ids["root"]); !equal(got, []string{"root", "b", "b1"}) {
		t.Fatalf("after destroy = %v", got)
	}

	c, err := s.Create("c", ids["b"])
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if int(c) >= 6 {
		t.Fatalf("new node got id %d, want a recycled slot", c)
	}
	if err := s.Destroy(ids["a"]); !errors.Is(err, ErrInvalidNode) {
		t.Fatalf("second destroy err = %v", err)
	}
}

func TestSetParent(t *testing.T) {
	s, ids := tree(t)
	if err := s.SetParent(ids["a"], ids["a1"]); err == nil {
		t.Fatal("parenting to a descendant succeeded")
	}
	if err := s.SetParent(ids["b"], ids["a"]); err != nil {
		t.Fatalf("reparent: %v", err)
	}
	if got := collect(s, s.ForEachPreorder, ids["root"]); !equal(got, []string{"root", "a", "a1", "a2", "b", "b1"}) {
		t.Fatalf("order = %v", got)
	}
	if s.Parent(ids["b"]) != ids["a"] || s.ChildCount(ids["a"]) != 3 {
		t.Fatal("links not updated")
	}

	if err := s.SetParent(ids["b"], None); err != nil {
		t.Fatalf("detach: %v", err)
	}
	if len(s.Roots()) != 2 {
		t.Fatalf("roots = %v", s.Roots())
	}
}

func TestWorldTransform(t *testing.T) {
	s, ids := tree(t)
	s.SetTransform(ids["root"], mgl32.Translate3D(1, 0, 0))
	s.SetTransform(ids["a"], mgl32.Translate3D(0, 2, 0))
	s.SetTransform(ids["a1"], mgl32.Scale3D(2, 2, 2))

	p := s.WorldTransform(ids["a1"]).Mul4x1(mgl32.Vec4{1, 1, 1, 1})
	if p.Sub(mgl32.Vec4{3, 4, 2, 1}).Len() > 1e-4 {
		t.Fatalf("world point = %v", p)
	}
}
