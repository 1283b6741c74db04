package topology

import (
	"context"
	"fmt"
	"sort"

	"github.com/prometheus/common/model"
)

// queryEdges aggregates request rates between workload pairs. Istio sidecars
// label every request sample with both endpoints, so the mesh graph falls out
// of one query.
const queryEdges = `sum(rate(istio_requests_total[5m])) by (source_workload, source_workload_namespace, destination_workload, destination_workload_namespace)`

// Istio standard labels on istio_requests_total.
const (
	labelSourceWorkload = model.LabelName("source_workload")
	labelSourceNS       = model.LabelName("source_workload_namespace")
	labelDestWorkload   = model.LabelName("destination_workload")
	labelDestNS         = model.LabelName("destination_workload_namespace")
)

// Node is one workload in the mesh graph.
type Node struct {
	ID        string `json:"id"` // "namespace/name"
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
	Type      string `json:"type"` // always "workload"
}

// Edge is one observed traffic relationship between two workloads.
type Edge struct {
	Source      string  `json:"source"`
	Target      string  `json:"target"`
	RequestRate float64 `json:"request_rate"`
}

// Graph is the service mesh topology: workloads, their traffic edges, and the
// namespaces they span.
type Graph struct {
	Nodes      []Node   `json:"nodes"`
	Edges      []Edge   `json:"edges"`
	Namespaces []string `json:"namespaces"`
}

// Querier is the subset of the promql client the topology service uses.
type Querier interface {
	Query(ctx context.Context, query string) (model.Vector, error)
}

// Service derives the mesh topology from traffic metrics.
type Service struct {
	q Querier
}

// NewService creates a Service backed by q.
func NewService(q Querier) *Service {
	return &Service{q: q}
}

// Graph builds the current topology. Samples missing either endpoint label
// (Istio reports "unknown" for traffic entering from outside the mesh) are
// skipped. Output ordering is deterministic.
func (s *Service) Graph(ctx context.Context) (*Graph, error) {
	vec, err := s.q.Query(ctx, queryEdges)
	if err != nil {
		return nil, fmt.Errorf("topology: query edges: %w", err)
	}

	nodes := make(map[string]Node)
	nsSet := make(map[string]struct{})
	edges := make([]Edge, 0, len(vec))

	for _, sample := range vec {
		src := workloadID(sample.Metric, labelSourceWorkload, labelSourceNS)
		dst := workloadID(sample.Metric, labelDestWorkload, labelDestNS)
		if src == "" || dst == "" {
			continue
		}

		for _, id := range []string{src, dst} {
			if _, ok := nodes[id]; ok {
				continue
			}
			ns, name := splitID(id)
			nodes[id] = Node{ID: id, Name: name, Namespace: ns, Type: "workload"}
			nsSet[ns] = struct{}{}
		}

		edges = append(edges, Edge{
			Source:      src,
			Target:      dst,
			RequestRate: float64(sample.Value),
		})
	}

	g := &Graph{
		Nodes:      make([]Node, 0, len(nodes)),
		Edges:      edges,
		Namespaces: make([]string, 0, len(nsSet)),
	}
	for _, n := range nodes {
		g.Nodes = append(g.Nodes, n)
	}
	for ns := range nsSet {
		g.Namespaces = append(g.Namespaces, ns)
	}

	sort.Slice(g.Nodes, func(i, j int) bool { return g.Nodes[i].ID < g.Nodes[j].ID })
	sort.Slice(g.Edges, func(i, j int) bool {
		if g.Edges[i].Source != g.Edges[j].Source {
			return g.Edges[i].Source < g.Edges[j].Source
		}
		return g.Edges[i].Target < g.Edges[j].Target
	})
	sort.Strings(g.Namespaces)

	return g, nil
}

// workloadID builds "namespace/name" from sample labels, or "" when the
// workload is unknown.
func workloadID(m model.Metric, nameLabel, nsLabel model.LabelName) string {
	name := string(m[nameLabel])
	ns := string(m[nsLabel])
	if name == "" || name == "unknown" {
		return ""
	}
	if ns == "" || ns == "unknown" {
		ns = "default"
	}
	return ns + "/" + name
}

// splitID is the inverse of workloadID.
func splitID(id string) (namespace, name string) {
	for i := 0; i < len(id); i++ {
		if id[i] == '/' {
			return id[:i], id[i+1:]
		}
	}
	return "default", id
}
