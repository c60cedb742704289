// The graph package converts between containers and scene graphs.
//
// A Builder turns a decoded container into a tree of folders, game objects
// and components. A Flattener turns a tree back into a container, assigning
// object table positions in pre-order and constructing each shared object
// once.
package graph

import (
	"context"

	"github.com/rszkit/rszfile"
	"github.com/rszkit/rszfile/schema"
)

// Loader loads the graphs referenced by other graphs: prefabs and the scenes
// linked by folders. Paths are in-engine paths.
type Loader interface {
	Load(ctx context.Context, game schema.Game, path string) (*rszfile.Root, error)
}

// LoaderFunc adapts a function to a Loader.
type LoaderFunc func(ctx context.Context, game schema.Game, path string) (*rszfile.Root, error)

func (f LoaderFunc) Load(ctx context.Context, game schema.Game, path string) (*rszfile.Root, error) {
	return f(ctx, game, path)
}
