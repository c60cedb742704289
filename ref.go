package rszfile

import (
	"github.com/google/uuid"
)

// Walk calls fn for each node of the tree in pre-order. If fn returns false,
// the descendants of the node are skipped. Linked scenes of folders are not
// visited.
func (r *Root) Walk(fn func(Node) bool) {
	for _, n := range r.Children() {
		walkNode(n, fn)
	}
}

func walkNode(n Node, fn func(Node) bool) {
	if !fn(n) {
		return
	}
	switch n := n.(type) {
	case *Folder:
		for _, c := range n.Children() {
			walkNode(c, fn)
		}
	case *GameObject:
		for _, c := range n.Children() {
			walkNode(c, fn)
		}
	}
}

// GameObjects returns every game object of the tree in pre-order.
func (r *Root) GameObjects() []*GameObject {
	var list []*GameObject
	r.Walk(func(n Node) bool {
		if g, ok := n.(*GameObject); ok {
			list = append(list, g)
		}
		return true
	})
	return list
}

// Index maps the ids of game objects to the game objects of a tree.
type Index map[uuid.UUID]*GameObject

// Index returns an index of the game objects currently in the tree. The index
// is not updated when the tree changes.
func (r *Root) Index() Index {
	idx := Index{}
	for _, g := range r.GameObjects() {
		idx[g.ID] = g
	}
	return idx
}

// Resolve returns the game object referred to by ref, or nil if the
// reference is empty or dangling.
func (idx Index) Resolve(ref ValueGameObjectRef) *GameObject {
	if ref.IsEmpty() {
		return nil
	}
	return idx[ref.ID()]
}

// FindGameObject returns the game object with the given id, or nil.
func (r *Root) FindGameObject(id uuid.UUID) *GameObject {
	if id == uuid.Nil {
		return nil
	}
	var found *GameObject
	r.Walk(func(n Node) bool {
		if found != nil {
			return false
		}
		if g, ok := n.(*GameObject); ok && g.ID == id {
			found = g
			return false
		}
		return true
	})
	return found
}

// FindFirstChild returns the first root-level node whose name matches. If
// recursive is true, descendants are searched as well.
func (r *Root) FindFirstChild(name string, recursive bool) Node {
	for _, n := range r.Children() {
		if n.Name() == name {
			return n
		}
	}
	if !recursive {
		return nil
	}
	var found Node
	r.Walk(func(n Node) bool {
		if found != nil {
			return false
		}
		if n.Name() == name {
			found = n
			return false
		}
		return true
	})
	return found
}
