package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ferrite-io/ferrite/internal/ir"
)

// DAG represents a directed acyclic graph of resources for dependency ordering.
type DAG struct {
	nodes    map[string]*dagNode
	addrs    []string       // node addresses in registration order
	position map[string]int // registration index per address
	order    []string       // topological order (creation order)
	revOrder []string       // reverse topological order (destruction order)
}

type dagNode struct {
	addr     string
	edges    []string // resources this node depends on
	revEdges []string // resources that depend on this node
}

// BuildDAG constructs a dependency graph from resources in registration order.
// It resolves both explicit dependsOn entries and ref:// attribute references.
// A reference to an unregistered resource is an error, as is any cycle.
func BuildDAG(resources []*ir.Resource) (*DAG, error) {
	dag := newDAG()
	for _, res := range resources {
		dag.addNode(res.Addr())
	}

	for _, res := range resources {
		addr := res.Addr()

		for _, dep := range res.DependsOn {
			if _, ok := dag.nodes[dep]; !ok {
				return nil, &UnresolvedReferenceError{Source: addr, Target: dep}
			}
			dag.addEdge(addr, dep)
		}

		for _, ref := range extractRefs(res.Properties) {
			depType, depName, _, ok := ParseRef(ref)
			if !ok {
				return nil, &UnresolvedReferenceError{Source: addr, Reference: ref}
			}
			depAddr := depType + "." + depName
			if _, ok := dag.nodes[depAddr]; !ok {
				return nil, &UnresolvedReferenceError{Source: addr, Target: depAddr, Reference: ref}
			}
			if depAddr == addr {
				return nil, &CyclicDependencyError{Cycle: []string{addr, addr}}
			}
			dag.addEdge(addr, depAddr)
		}
	}

	if err := dag.finish(); err != nil {
		return nil, err
	}
	return dag, nil
}

// BuildDAGFromState constructs a dependency graph from state entries, used to
// order deletions. Addresses are sorted so the order is stable regardless of
// map iteration. Dependencies pointing outside the given set get placeholder
// nodes so recorded edges still order what remains.
func BuildDAGFromState(resources []*ir.ResourceState) (*DAG, error) {
	sorted := make([]*ir.ResourceState, len(resources))
	copy(sorted, resources)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Addr() < sorted[j].Addr() })

	dag := newDAG()
	for _, res := range sorted {
		dag.addNode(res.Addr())
	}
	for _, res := range sorted {
		for _, dep := range res.Dependencies {
			if _, ok := dag.nodes[dep]; !ok {
				dag.addNode(dep)
			}
			dag.addEdge(res.Addr(), dep)
		}
	}

	if err := dag.finish(); err != nil {
		return nil, err
	}
	return dag, nil
}

func newDAG() *DAG {
	return &DAG{
		nodes:    make(map[string]*dagNode),
		position: make(map[string]int),
	}
}

func (d *DAG) addNode(addr string) {
	if _, ok := d.nodes[addr]; ok {
		return
	}
	d.nodes[addr] = &dagNode{addr: addr}
	d.position[addr] = len(d.addrs)
	d.addrs = append(d.addrs, addr)
}

func (d *DAG) addEdge(from, to string) {
	node := d.nodes[from]
	for _, dep := range node.edges {
		if dep == to {
			return
		}
	}
	node.edges = append(node.edges, to)
	d.nodes[to].revEdges = append(d.nodes[to].revEdges, from)
}

func (d *DAG) finish() error {
	if cycle := d.findCycle(); cycle != nil {
		return &CyclicDependencyError{Cycle: cycle}
	}

	d.order = d.topoSort()
	d.revOrder = make([]string, len(d.order))
	for i, addr := range d.order {
		d.revOrder[len(d.order)-1-i] = addr
	}
	return nil
}

// CreationOrder returns resources in dependency-respecting creation order.
func (d *DAG) CreationOrder() []string {
	return d.order
}

// DestructionOrder returns resources in reverse dependency order (safe for deletion).
func (d *DAG) DestructionOrder() []string {
	return d.revOrder
}

// Dependencies returns the addresses a given resource depends on.
func (d *DAG) Dependencies(addr string) []string {
	if node, ok := d.nodes[addr]; ok {
		return node.edges
	}
	return nil
}

// Dependents returns the addresses that depend on a given resource.
func (d *DAG) Dependents(addr string) []string {
	if node, ok := d.nodes[addr]; ok {
		return node.revEdges
	}
	return nil
}

// TransitiveDeps returns every address reachable from addr through
// dependency edges.
func (d *DAG) TransitiveDeps(addr string) []string {
	return d.walk(addr, func(a string) []string { return d.Dependencies(a) })
}

// TransitiveDependents returns every address that directly or indirectly
// depends on addr.
func (d *DAG) TransitiveDependents(addr string) []string {
	return d.walk(addr, func(a string) []string { return d.Dependents(a) })
}

func (d *DAG) walk(addr string, next func(string) []string) []string {
	seen := make(map[string]bool)
	var out []string
	var visit func(string)
	visit = func(a string) {
		for _, n := range next(a) {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
				visit(n)
			}
		}
	}
	visit(addr)
	return out
}

// findCycle runs a depth-first search over the dependency edges and returns
// the addresses along the first cycle found, first node repeated at the end.
// Returns nil when the graph is acyclic.
func (d *DAG) findCycle() []string {
	const (
		white = iota // unvisited
		gray         // on the recursion stack
		black        // fully explored
	)
	color := make(map[string]int, len(d.nodes))
	var stack []string
	var cycle []string

	var visit func(addr string) bool
	visit = func(addr string) bool {
		color[addr] = gray
		stack = append(stack, addr)

		for _, dep := range d.nodes[addr].edges {
			switch color[dep] {
			case gray:
				for i, a := range stack {
					if a == dep {
						cycle = append(append([]string(nil), stack[i:]...), dep)
						return true
					}
				}
			case white:
				if visit(dep) {
					return true
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[addr] = black
		return false
	}

	for _, addr := range d.addrs {
		if color[addr] == white && visit(addr) {
			return cycle
		}
	}
	return nil
}

// topoSort performs Kahn's algorithm. Among nodes whose dependencies are all
// satisfied, the earliest-registered one is emitted first, so ordering is a
// pure function of the registered resource set. Must be called after
// findCycle has ruled out cycles.
func (d *DAG) topoSort() []string {
	inDegree := make(map[string]int, len(d.nodes))
	for addr, node := range d.nodes {
		inDegree[addr] = len(node.edges)
	}

	var ready []string
	for _, addr := range d.addrs {
		if inDegree[addr] == 0 {
			ready = append(ready, addr)
		}
	}

	sorted := make([]string, 0, len(d.nodes))
	for len(ready) > 0 {
		addr := ready[0]
		ready = ready[1:]
		sorted = append(sorted, addr)

		for _, dependent := range d.nodes[addr].revEdges {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = insertByPosition(ready, dependent, d.position)
			}
		}
	}
	return sorted
}

// insertByPosition inserts addr into ready keeping registration order.
func insertByPosition(ready []string, addr string, position map[string]int) []string {
	i := sort.Search(len(ready), func(i int) bool {
		return position[ready[i]] > position[addr]
	})
	ready = append(ready, "")
	copy(ready[i+1:], ready[i:])
	ready[i] = addr
	return ready
}

// ToDOT renders the graph in Graphviz dot syntax, nodes in creation order.
func (d *DAG) ToDOT() string {
	var b strings.Builder
	b.WriteString("digraph resources {\n")
	b.WriteString("  rankdir = \"LR\";\n")
	for _, addr := range d.order {
		fmt.Fprintf(&b, "  %q;\n", addr)
	}
	for _, addr := range d.order {
		node := d.nodes[addr]
		for _, dep := range node.edges {
			fmt.Fprintf(&b, "  %q -> %q;\n", addr, dep)
		}
	}
	b.WriteString("}\n")
	return b.String()
}

// extractRefs collects all ref:// values reachable from a property value.
func extractRefs(v any) []string {
	var refs []string
	switch val := v.(type) {
	case string:
		if strings.HasPrefix(val, "ref://") {
			refs = append(refs, val)
		}
	case map[string]any:
		for _, v := range val {
			refs = append(refs, extractRefs(v)...)
		}
	case map[any]any:
		for _, v := range val {
			refs = append(refs, extractRefs(v)...)
		}
	case []any:
		for _, v := range val {
			refs = append(refs, extractRefs(v)...)
		}
	}
	return refs
}

// ParseRef splits a ref://type/name/attribute value into its parts.
// ref://network/main/id -> ("network", "main", "id", true)
func ParseRef(ref string) (resourceType, name, attribute string, ok bool) {
	if !strings.HasPrefix(ref, "ref://") {
		return "", "", "", false
	}
	parts := strings.SplitN(ref[len("ref://"):], "/", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}
