package schema

import (
	"context"
	"fmt"
	"sort"

	"github.com/julianstephens/lectern/internal/models"
)

// Ref identifies one row.
type Ref struct {
	Entity models.Entity
	ID     int64
}

func (r Ref) String() string {
	return fmt.Sprintf("%s#%d", r.Entity, r.ID)
}

// Finder lists the ids of rows whose edge.Column equals parentID.
type Finder interface {
	Referencing(ctx context.Context, edge Edge, parentID int64) ([]int64, error)
}

// FinderFunc adapts a function to Finder.
type FinderFunc func(ctx context.Context, edge Edge, parentID int64) ([]int64, error)

func (f FinderFunc) Referencing(ctx context.Context, edge Edge, parentID int64) ([]int64, error) {
	return f(ctx, edge, parentID)
}

// Nullification clears Column on a surviving row.
type Nullification struct {
	Row    Ref
	Column string
}

// ChangeSet is the complete effect of deleting Root.
type ChangeSet struct {
	Root Ref
	// Deletes lists children before their parents; Root is last.
	Deletes []Ref
	// Nullifies never names a row that is also in Deletes.
	Nullifies []Nullification
}

// Tables returns every table the change-set touches, sorted.
func (c *ChangeSet) Tables() []models.Entity {
	seen := make(map[models.Entity]bool)
	for _, r := range c.Deletes {
		seen[r.Entity] = true
	}
	for _, n := range c.Nullifies {
		seen[n.Row.Entity] = true
	}
	out := make([]models.Entity, 0, len(seen))
	for e := range seen {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DeleteCount returns how many rows of entity are deleted.
func (c *ChangeSet) DeleteCount(entity models.Entity) int {
	n := 0
	for _, r := range c.Deletes {
		if r.Entity == entity {
			n++
		}
	}
	return n
}

// NullifyCount returns how many rows of entity lose a reference.
func (c *ChangeSet) NullifyCount(entity models.Entity) int {
	n := 0
	for _, x := range c.Nullifies {
		if x.Row.Entity == entity {
			n++
		}
	}
	return n
}

// Resolve walks the foreign-key graph breadth-first from root and returns the
// closure of cascaded deletes and nullified references. Nothing is modified.
func Resolve(ctx context.Context, finder Finder, root Ref) (*ChangeSet, error) {
	deleted := map[Ref]bool{root: true}
	order := []Ref{root}
	var pending []Nullification

	for i := 0; i < len(order); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cur := order[i]
		for _, edge := range ChildEdges(cur.Entity) {
			ids, err := finder.Referencing(ctx, edge, cur.ID)
			if err != nil {
				return nil, fmt.Errorf("resolving %s from %s: %w", edge, cur, err)
			}
			for _, id := range ids {
				child := Ref{Entity: edge.Child, ID: id}
				switch edge.Policy {
				case Cascade:
					if !deleted[child] {
						deleted[child] = true
						order = append(order, child)
					}
				case Nullify:
					pending = append(pending, Nullification{Row: child, Column: edge.Column})
				}
			}
		}
	}

	cs := &ChangeSet{Root: root, Deletes: make([]Ref, 0, len(order))}
	for i := len(order) - 1; i >= 0; i-- {
		cs.Deletes = append(cs.Deletes, order[i])
	}

	seen := make(map[Nullification]bool)
	for _, n := range pending {
		if deleted[n.Row] || seen[n] {
			continue
		}
		seen[n] = true
		cs.Nullifies = append(cs.Nullifies, n)
	}

	return cs, nil
}
