package graph

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/rszkit/rszfile"
	"github.com/rszkit/rszfile/schema"
)

// Factory creates the behavior of a component from its data.
type Factory func(data *rszfile.Object) rszfile.Behavior

// Registry maps component classes to behavior factories. A factory is
// registered either for one game or for every game.
type Registry struct {
	mu        sync.RWMutex
	common    map[string]Factory
	factories map[schema.Game]map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		common:    map[string]Factory{},
		factories: map[schema.Game]map[string]Factory{},
	}
}

// Register sets the factory of class for game. An empty game registers the
// factory for every game.
func (r *Registry) Register(game schema.Game, class string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if game == "" {
		r.common[class] = f
		return
	}
	m := r.factories[game]
	if m == nil {
		m = map[string]Factory{}
		r.factories[game] = m
	}
	m[class] = f
}

// Lookup returns the factory of class for game, or nil. A factory registered
// for the game takes precedence.
func (r *Registry) Lookup(game schema.Game, class string) Factory {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if f := r.factories[game][class]; f != nil {
		return f
	}
	return r.common[class]
}

// Attach creates the behavior of c, if a factory is registered for its
// class. Returns whether a behavior was attached.
func (r *Registry) Attach(game schema.Game, c *rszfile.Component) bool {
	f := r.Lookup(game, c.ClassName())
	if f == nil {
		return false
	}
	c.Behavior = f(c.Data)
	return c.Behavior != nil
}

// DefaultRegistry returns a registry holding the behaviors of engine
// classes shared by every game.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("", TransformClass, func(data *rszfile.Object) rszfile.Behavior {
		return &Transform{Data: data}
	})
	r.Register("", MeshClass, func(data *rszfile.Object) rszfile.Behavior {
		return &Mesh{Data: data}
	})
	return r
}

////////////////////////////////////////////////////////////////

// Component classes with built-in behaviors.
const (
	TransformClass = "via.Transform"
	MeshClass      = "via.render.Mesh"
)

// Transform is the behavior of a via.Transform component. It reads and
// writes the component's data directly.
type Transform struct {
	Data *rszfile.Object
}

func (*Transform) Kind() string { return "transform" }

// Position returns the local position.
func (t *Transform) Position() mgl32.Vec3 {
	v, _ := t.Data.Get("LocalPosition").(rszfile.ValueVec3)
	return mgl32.Vec3(v)
}

// Rotation returns the local rotation. A zero quaternion reads as identity.
func (t *Transform) Rotation() mgl32.Quat {
	v, _ := t.Data.Get("LocalRotation").(rszfile.ValueQuaternion)
	q := mgl32.Quat(v)
	if q.W == 0 && q.V == (mgl32.Vec3{}) {
		return mgl32.QuatIdent()
	}
	return q
}

// Scale returns the local scale.
func (t *Transform) Scale() mgl32.Vec3 {
	v, ok := t.Data.Get("LocalScale").(rszfile.ValueVec3)
	if !ok {
		return mgl32.Vec3{1, 1, 1}
	}
	return mgl32.Vec3(v)
}

// SetPosition sets the local position.
func (t *Transform) SetPosition(p mgl32.Vec3) {
	t.Data.Set("LocalPosition", rszfile.ValueVec3(p))
}

// SetRotation sets the local rotation.
func (t *Transform) SetRotation(q mgl32.Quat) {
	t.Data.Set("LocalRotation", rszfile.ValueQuaternion(q.Normalize()))
}

// SetScale sets the local scale.
func (t *Transform) SetScale(s mgl32.Vec3) {
	t.Data.Set("LocalScale", rszfile.ValueVec3(s))
}

// Matrix returns the local transformation: scale, then rotation, then
// translation.
func (t *Transform) Matrix() mgl32.Mat4 {
	p, s := t.Position(), t.Scale()
	return mgl32.Translate3D(p[0], p[1], p[2]).
		Mul4(t.Rotation().Mat4()).
		Mul4(mgl32.Scale3D(s[0], s[1], s[2]))
}

// Mesh is the behavior of a via.render.Mesh component.
type Mesh struct {
	Data *rszfile.Object
}

func (*Mesh) Kind() string { return "mesh" }

// MeshPath returns the path of the mesh resource.
func (m *Mesh) MeshPath() string {
	return m.Data.GetString("Mesh")
}

// MaterialPath returns the path of the material resource.
func (m *Mesh) MaterialPath() string {
	return m.Data.GetString("Material")
}

// Enabled returns whether the mesh is drawn.
func (m *Mesh) Enabled() bool {
	v, _ := m.Data.Get("Enabled").(rszfile.ValueBool)
	return bool(v)
}

// Resources returns the non-empty resource paths of the mesh.
func (m *Mesh) Resources() []string {
	var paths []string
	for _, p := range []string{m.MeshPath(), m.MaterialPath()} {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}
