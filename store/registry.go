package store

import (
	"sort"
	"strings"
)

// Kind names an entity type (e.g., "unit").
type Kind string

// Relationship defines a parent-child relationship for cascade operations.
type Relationship struct {
	// ParentType is the parent entity kind (e.g., "unit").
	ParentType Kind

	// ChildType is the child entity kind (e.g., "chapter").
	ChildType Kind

	// ChildTableName is the unprefixed table name for the child (e.g., "chapters").
	ChildTableName string

	// ParentKeyAttr is the attribute name in child that references parent (e.g., "unitId").
	ParentKeyAttr string
}

// KindInfo describes one entity kind of the hierarchy.
type KindInfo struct {
	Kind Kind

	// TableName is the unprefixed table holding documents of this kind.
	TableName string

	// Parent is the immediate parent kind; empty for roots.
	Parent Kind

	// ParentKeyAttr is the attribute referencing the immediate parent.
	ParentKeyAttr string

	// ScopeAttrs are the attributes whose values define the sibling scope.
	// Empty for an ordered root kind, where every document shares one scope.
	ScopeAttrs []string

	// UniqueAttrs must be unique within the sibling scope.
	UniqueAttrs []string

	// Ordered kinds carry an orderNumber and can be reordered.
	Ordered bool

	// HasDetails kinds own a 1:1 details record.
	HasDetails bool
}

// Registry is the hierarchy descriptor: every known kind and the
// parent-child relationships between them. It is built once at startup
// and is read-only afterwards.
type Registry struct {
	byParent map[Kind][]Relationship
	kinds    map[Kind]KindInfo
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byParent: make(map[Kind][]Relationship),
		kinds:    make(map[Kind]KindInfo),
	}
}

// Register adds a relationship to the registry.
func (r *Registry) Register(rel Relationship) {
	r.byParent[rel.ParentType] = append(r.byParent[rel.ParentType], rel)
}

// RegisterKind adds a kind and, when it has a parent, its relationship.
func (r *Registry) RegisterKind(info KindInfo) {
	r.kinds[info.Kind] = info
	if info.Parent != "" {
		r.Register(Relationship{
			ParentType:     info.Parent,
			ChildType:      info.Kind,
			ChildTableName: info.TableName,
			ParentKeyAttr:  info.ParentKeyAttr,
		})
	}
}

// Kind returns the descriptor of a registered kind.
func (r *Registry) Kind(k Kind) (KindInfo, bool) {
	info, ok := r.kinds[k]
	return info, ok
}

// Kinds returns every registered kind sorted by name.
func (r *Registry) Kinds() []KindInfo {
	out := make([]KindInfo, 0, len(r.kinds))
	for _, info := range r.kinds {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// ChildrenOf returns all child relationships for a given parent kind.
func (r *Registry) ChildrenOf(parentType Kind) []Relationship {
	return r.byParent[parentType]
}

// HasChildren returns true if the parent kind has any registered child relationships.
func (r *Registry) HasChildren(parentType Kind) bool {
	return len(r.byParent[parentType]) > 0
}

// Generations returns the descendant relationships of root grouped by depth:
// element 0 holds the relationships whose parent is root, element 1 those
// whose parent is a child kind of element 0, and so on. A kind reachable
// twice is visited once, at its shallowest depth.
func (r *Registry) Generations(root Kind) [][]Relationship {
	var gens [][]Relationship
	seen := map[Kind]bool{root: true}
	frontier := []Kind{root}
	for len(frontier) > 0 {
		var gen []Relationship
		var next []Kind
		for _, parent := range frontier {
			for _, rel := range r.byParent[parent] {
				if seen[rel.ChildType] {
					continue
				}
				seen[rel.ChildType] = true
				gen = append(gen, rel)
				next = append(next, rel.ChildType)
			}
		}
		if len(gen) == 0 {
			break
		}
		gens = append(gens, gen)
		frontier = next
	}
	return gens
}

// ScopeKey returns the sibling-scope key of a document of kind k, built
// from the kind's scope attribute values. Two documents are siblings
// exactly when their scope keys are equal.
func (r *Registry) ScopeKey(k Kind, item *Item) string {
	info := r.kinds[k]
	var b strings.Builder
	b.WriteString(string(k))
	for _, attr := range info.ScopeAttrs {
		b.WriteString("|")
		b.WriteString(attr)
		b.WriteString("=")
		b.WriteString(item.StringAttr(attr))
	}
	return b.String()
}

// EntityRef builds the type-qualified reference of a document.
func EntityRef(k Kind, id string) string {
	return string(k) + "#" + id
}

// KindOfRef extracts the kind from an entity reference.
func KindOfRef(ref string) Kind {
	if i := strings.IndexByte(ref, '#'); i >= 0 {
		return Kind(ref[:i])
	}
	return ""
}

// IDOfRef extracts the id from an entity reference.
func IDOfRef(ref string) string {
	if i := strings.IndexByte(ref, '#'); i >= 0 {
		return ref[i+1:]
	}
	return ref
}
