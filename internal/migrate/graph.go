package migrate

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/modfin/henry/slicez"
)

// Graph is an immutable, validated set of revisions linked by their parents.
type Graph struct {
	revisions map[string]*Revision
	children  map[string][]string
	order     []string
	base      *Revision
}

// Build indexes revs and validates the parent links.
func Build(revs ...Revision) (*Graph, error) {
	g := &Graph{
		revisions: make(map[string]*Revision, len(revs)),
		children:  make(map[string][]string, len(revs)),
	}

	for i := range revs {
		rev := revs[i]
		if rev.ID == "" {
			return nil, &UnknownRevisionError{ID: rev.ID}
		}
		if _, ok := g.revisions[rev.ID]; ok {
			return nil, &DuplicateRevisionError{ID: rev.ID}
		}
		g.revisions[rev.ID] = &rev
		g.order = append(g.order, rev.ID)
	}

	var bases []string
	for _, id := range g.order {
		rev := g.revisions[id]
		if rev.Parent == "" {
			bases = append(bases, id)
			continue
		}
		if _, ok := g.revisions[rev.Parent]; !ok {
			return nil, &UnknownParentError{ID: id, Parent: rev.Parent}
		}
		g.children[rev.Parent] = append(g.children[rev.Parent], id)
	}
	if len(bases) > 1 {
		return nil, &MultipleBasesError{Bases: bases}
	}

	if err := g.checkCycles(); err != nil {
		return nil, err
	}
	if len(bases) == 1 {
		g.base = g.revisions[bases[0]]
	}
	return g, nil
}

// checkCycles walks every parent chain. A chain that revisits a revision
// before reaching the base is a cycle; this also catches revision sets that
// have no base at all.
func (g *Graph) checkCycles() error {
	done := make(map[string]bool, len(g.order))
	for _, id := range g.order {
		seen := map[string]int{}
		var chain []string
		for cur := id; cur != "" && !done[cur]; cur = g.revisions[cur].Parent {
			if at, ok := seen[cur]; ok {
				return &CycleError{IDs: append(chain[at:], cur)}
			}
			seen[cur] = len(chain)
			chain = append(chain, cur)
		}
		for _, c := range chain {
			done[c] = true
		}
	}
	return nil
}

func (g *Graph) Get(id string) (*Revision, bool) {
	rev, ok := g.revisions[id]
	return rev, ok
}

// Base returns the root revision, nil for an empty graph.
func (g *Graph) Base() *Revision {
	return g.base
}

// Heads returns the revisions nothing revises, in declaration order.
func (g *Graph) Heads() []*Revision {
	heads := slicez.Filter(g.order, func(id string) bool {
		return len(g.children[id]) == 0
	})
	return g.lookupAll(heads)
}

func (g *Graph) Head() (*Revision, error) {
	heads := g.Heads()
	switch len(heads) {
	case 0:
		return nil, &UnknownRevisionError{ID: Head}
	case 1:
		return heads[0], nil
	}
	return nil, &MultipleHeadsError{Heads: ids(heads)}
}

// Lookup finds a revision by full id or by an unambiguous id prefix.
func (g *Graph) Lookup(id string) (*Revision, error) {
	if rev, ok := g.revisions[id]; ok {
		return rev, nil
	}
	if id == "" {
		return nil, &UnknownRevisionError{ID: id}
	}
	matches := slicez.Filter(g.order, func(candidate string) bool {
		return strings.HasPrefix(candidate, id)
	})
	switch len(matches) {
	case 0:
		return nil, &UnknownRevisionError{ID: id}
	case 1:
		return g.revisions[matches[0]], nil
	}
	sort.Strings(matches)
	return nil, &AmbiguousRevisionError{Prefix: id, Matches: matches}
}

// Resolve turns a target into a revision id relative to current. It accepts
// "head", "base", a full or prefixed id, and relative steps "+N" and "-N".
// Base resolves to the empty id.
func (g *Graph) Resolve(current, target string) (string, error) {
	target = strings.TrimSpace(target)
	switch {
	case target == "" || target == Head:
		head, err := g.Head()
		if err != nil {
			return "", err
		}
		return head.ID, nil
	case target == Base:
		return "", nil
	case isRelative(target):
		n, err := strconv.Atoi(target)
		if err != nil {
			return "", fmt.Errorf("invalid relative revision %q: %w", target, err)
		}
		return g.step(current, n)
	}
	rev, err := g.Lookup(target)
	if err != nil {
		return "", err
	}
	return rev.ID, nil
}

func isRelative(target string) bool {
	return strings.HasPrefix(target, "+") || strings.HasPrefix(target, "-")
}

func (g *Graph) step(current string, n int) (string, error) {
	if current != "" {
		if _, ok := g.revisions[current]; !ok {
			return "", &UnknownRevisionError{ID: current}
		}
	}
	id := current
	for ; n < 0; n++ {
		if id == "" {
			return "", fmt.Errorf("%w: cannot move below base", ErrRelativeRange)
		}
		id = g.revisions[id].Parent
	}
	for ; n > 0; n-- {
		next, err := g.next(id)
		if err != nil {
			return "", err
		}
		id = next
	}
	return id, nil
}

func (g *Graph) next(id string) (string, error) {
	var children []string
	if id == "" {
		if g.base == nil {
			return "", fmt.Errorf("%w: graph is empty", ErrRelativeRange)
		}
		children = []string{g.base.ID}
	} else {
		children = g.children[id]
	}
	switch len(children) {
	case 0:
		return "", fmt.Errorf("%w: %s is a head", ErrRelativeRange, id)
	case 1:
		return children[0], nil
	}
	return "", &MultipleHeadsError{Heads: children}
}

// ancestry returns id followed by each of its ancestors up to the base.
func (g *Graph) ancestry(id string) []string {
	var chain []string
	for cur := id; cur != ""; cur = g.revisions[cur].Parent {
		chain = append(chain, cur)
	}
	return chain
}

// Path returns the revisions to run when moving from one revision to another.
// Upgrades are ascending, from exclusive to to inclusive. Downgrades are
// descending, from inclusive to to exclusive. The empty id stands for base.
func (g *Graph) Path(from, to string) (Direction, []*Revision, error) {
	for _, id := range []string{from, to} {
		if _, ok := g.revisions[id]; id != "" && !ok {
			return Up, nil, &UnknownRevisionError{ID: id}
		}
	}
	if from == to {
		return Up, nil, nil
	}

	if up, ok := cut(g.ancestry(to), from); ok {
		return Up, g.lookupAll(slicez.Reverse(up)), nil
	}
	if down, ok := cut(g.ancestry(from), to); ok {
		return Down, g.lookupAll(down), nil
	}
	return Up, nil, &DivergentPathError{From: from, To: to}
}

// cut returns the prefix of chain that precedes stop. Base terminates every
// chain, so an empty stop always matches.
func cut(chain []string, stop string) ([]string, bool) {
	if stop == "" {
		return chain, true
	}
	for i, id := range chain {
		if id == stop {
			return chain[:i], true
		}
	}
	return nil, false
}

func (g *Graph) lookupAll(ids []string) []*Revision {
	return slicez.Map(ids, func(id string) *Revision {
		return g.revisions[id]
	})
}

// History lists every revision newest first. A revision is always listed
// before its parent; revisions at the same depth keep declaration order.
func (g *Graph) History() []*Revision {
	depth := make(map[string]int, len(g.order))
	for _, id := range g.order {
		depth[id] = len(g.ancestry(id))
	}
	out := g.lookupAll(g.order)
	sort.SliceStable(out, func(i, j int) bool {
		return depth[out[i].ID] > depth[out[j].ID]
	})
	return out
}

// IsHead reports whether nothing revises id.
func (g *Graph) IsHead(id string) bool {
	_, ok := g.revisions[id]
	return ok && len(g.children[id]) == 0
}

func ids(revs []*Revision) []string {
	return slicez.Map(revs, func(r *Revision) string {
		return r.ID
	})
}
