package main

import (
	"fmt"
	"log"
	"os"

	"NetSentry/internal/classifier"
	"NetSentry/internal/model"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./scripts/gobana/main.go <model.gob.gz>")
		os.Exit(1)
	}

	forest, err := classifier.Load(os.Args[1])
	if err != nil {
		log.Fatalf("Failed to decode model: %v", err)
	}

	nodes, leaves, maxDepth := 0, 0, 0
	splits := make([]int, forest.NumFeatures)
	for _, tree := range forest.Trees {
		nodes += len(tree.Nodes)
		for _, n := range tree.Nodes {
			if n.Feature < 0 {
				leaves++
			} else {
				splits[n.Feature]++
			}
		}
		if d := depth(tree, 0); d > maxDepth {
			maxDepth = d
		}
	}

	fmt.Printf("Trees: %d  Nodes: %d  Leaves: %d  Max depth: %d\n", len(forest.Trees), nodes, leaves, maxDepth)
	fmt.Println("Splits per feature:")
	for i, name := range model.FeatureNames {
		if i < len(splits) {
			fmt.Printf("  %-12s %d\n", name, splits[i])
		}
	}
}

func depth(t classifier.Tree, i int32) int {
	n := t.Nodes[i]
	if n.Feature < 0 {
		return 0
	}
	l, r := depth(t, n.Left), depth(t, n.Right)
	if l > r {
		return l + 1
	}
	return r + 1
}
