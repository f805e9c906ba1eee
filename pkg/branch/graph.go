package branch

import (
	"context"
	"strings"

	"github.com/agentstation/curator/pkg/versions"
)

// graph walks the version DAG across entities. Logs are loaded lazily and
// cached for the lifetime of one merge.
type graph struct {
	vs   *versions.VersionStore
	logs map[string]*entityLog
}

// entityLog is one entity's history, newest first.
type entityLog struct {
	history []versions.DataVersion
	index   map[string]int
}

func newGraph(vs *versions.VersionStore) *graph {
	return &graph{vs: vs, logs: make(map[string]*entityLog)}
}

func (g *graph) load(ctx context.Context, entityID string) (*entityLog, error) {
	if l, ok := g.logs[entityID]; ok {
		return l, nil
	}
	history, err := g.vs.GetVersionHistory(ctx, entityID, versions.Query{})
	if err != nil {
		return nil, err
	}
	l := &entityLog{history: history, index: make(map[string]int, len(history))}
	for i := range history {
		l.index[history[i].ID] = i
	}
	g.logs[entityID] = l
	return l, nil
}

// lookup finds a version by id. Versions removed by retention yield nil.
func (g *graph) lookup(ctx context.Context, id string) (*versions.DataVersion, error) {
	entityID, ok := entityOf(id)
	if !ok {
		return nil, nil
	}
	l, err := g.load(ctx, entityID)
	if err != nil {
		return nil, err
	}
	i, ok := l.index[id]
	if !ok {
		return nil, nil
	}
	return &l.history[i], nil
}

// previous returns the version logged just before v in its own entity.
func (g *graph) previous(ctx context.Context, v *versions.DataVersion) (*versions.DataVersion, error) {
	l, err := g.load(ctx, v.EntityID)
	if err != nil {
		return nil, err
	}
	i, ok := l.index[v.ID]
	if !ok || i+1 >= len(l.history) {
		return nil, nil
	}
	return &l.history[i+1], nil
}

// parents returns the DAG parents of v that still exist. A same-entity
// parent removed by retention is replaced by the next older version left in
// the log, so the linear chain stays connected.
func (g *graph) parents(ctx context.Context, v *versions.DataVersion) ([]*versions.DataVersion, error) {
	var out []*versions.DataVersion
	for _, id := range []string{v.Metadata.ParentVersion, v.Metadata.MergedFrom} {
		if id == "" {
			continue
		}
		p, err := g.lookup(ctx, id)
		if err != nil {
			return nil, err
		}
		if p == nil && id == v.Metadata.ParentVersion {
			if entityID, ok := entityOf(id); ok && entityID == v.EntityID {
				p, err = g.previous(ctx, v)
				if err != nil {
					return nil, err
				}
			}
		}
		if p != nil {
			out = append(out, p)
		}
	}
	return out, nil
}

// ancestors returns every version reachable from v, including v.
func (g *graph) ancestors(ctx context.Context, v *versions.DataVersion) (map[string]bool, error) {
	seen := map[string]bool{v.ID: true}
	queue := []*versions.DataVersion{v}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		ps, err := g.parents(ctx, cur)
		if err != nil {
			return nil, err
		}
		for _, p := range ps {
			if !seen[p.ID] {
				seen[p.ID] = true
				queue = append(queue, p)
			}
		}
	}
	return seen, nil
}

// commonAncestor returns the ancestor of target that is closest to source,
// searching breadth first from source. It returns nil when the histories
// share no version.
func (g *graph) commonAncestor(ctx context.Context, target, source *versions.DataVersion) (*versions.DataVersion, error) {
	inTarget, err := g.ancestors(ctx, target)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{source.ID: true}
	queue := []*versions.DataVersion{source}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if inTarget[cur.ID] {
			return cur, nil
		}
		ps, err := g.parents(ctx, cur)
		if err != nil {
			return nil, err
		}
		for _, p := range ps {
			if !seen[p.ID] {
				seen[p.ID] = true
				queue = append(queue, p)
			}
		}
	}
	return nil, nil
}

// entityOf recovers the entity id from a version id of the form
// "<entity>_<unix nanos>_<suffix>".
func entityOf(versionID string) (string, bool) {
	i := strings.LastIndex(versionID, "_")
	if i <= 0 {
		return "", false
	}
	j := strings.LastIndex(versionID[:i], "_")
	if j <= 0 {
		return "", false
	}
	return versionID[:j], true
}
