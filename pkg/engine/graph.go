package engine

import (
	"errors"
	"fmt"

	"github.com/coreza/coreza/pkg/models"
)

// ErrCyclicGraph indicates the workflow's edges form a cycle, so no valid
// execution order exists.
var ErrCyclicGraph = errors.New("cycle detected or invalid workflow DAG")

// TopologicalSort orders nodes so every edge's source precedes its target,
// using Kahn's algorithm. The queue is seeded with the zero-indegree nodes
// in declaration order, which keeps the order deterministic for a given
// workflow definition.
func TopologicalSort(nodes []*models.Node, edges []*models.Edge) ([]*models.Node, error) {
	graph := make(map[string][]string, len(nodes))
	indegree := make(map[string]int, len(nodes))
	nodeMap := make(map[string]*models.Node, len(nodes))

	for _, node := range nodes {
		graph[node.ID] = nil
		indegree[node.ID] = 0
		nodeMap[node.ID] = node
	}

	for _, edge := range edges {
		if _, ok := nodeMap[edge.Source]; !ok {
			return nil, fmt.Errorf("edge references unknown node %q", edge.Source)
		}

		if _, ok := nodeMap[edge.Target]; !ok {
			return nil, fmt.Errorf("edge references unknown node %q", edge.Target)
		}

		graph[edge.Source] = append(graph[edge.Source], edge.Target)
		indegree[edge.Target]++
	}

	queue := make([]string, 0, len(nodes))

	for _, node := range nodes {
		if indegree[node.ID] == 0 {
			queue = append(queue, node.ID)
		}
	}

	order := make([]*models.Node, 0, len(nodes))

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, nodeMap[id])

		for _, successor := range graph[id] {
			indegree[successor]--
			if indegree[successor] == 0 {
				queue = append(queue, successor)
			}
		}
	}

	if len(order) != len(nodes) {
		return nil, ErrCyclicGraph
	}

	return order, nil
}
