package tui

import (
	"sort"

	"github.com/aristath/taskdeck/internal/task"
)

type nodeKind int

const (
	nodeFramework nodeKind = iota
	nodeGroup
	nodeTask
)

// treeNode is one visible row of the task tree.
type treeNode struct {
	kind    nodeKind
	key     string // collapse key for framework and group rows, task ID for leaves
	label   string
	depth   int
	taskIDs []string // every task below this row, or the task itself
}

// buildTree lays tasks out as framework -> task name -> variants. A name with a single
// task whose ID equals the name is a plain leaf. Rows under a collapsed key are hidden.
func buildTree(tasks []task.Task, collapsed map[string]bool) []treeNode {
	byFramework := make(map[string]map[string][]task.Task)
	for _, t := range tasks {
		names, ok := byFramework[t.FrameworkName]
		if !ok {
			names = make(map[string][]task.Task)
			byFramework[t.FrameworkName] = names
		}
		names[t.Name] = append(names[t.Name], t)
	}

	var rows []treeNode
	for _, fw := range sortedKeys(byFramework) {
		names := byFramework[fw]
		fwRow := treeNode{kind: nodeFramework, key: fw, label: fw}
		var children []treeNode

		for _, name := range sortedKeys(names) {
			variants := names[name]
			sort.Slice(variants, func(i, j int) bool { return variants[i].ID < variants[j].ID })

			if len(variants) == 1 && variants[0].ID == name {
				children = append(children, leaf(variants[0], name, 1))
				fwRow.taskIDs = append(fwRow.taskIDs, variants[0].ID)
				continue
			}

			groupKey := fw + "/" + name
			group := treeNode{kind: nodeGroup, key: groupKey, label: name, depth: 1}
			var leaves []treeNode
			for _, v := range variants {
				group.taskIDs = append(group.taskIDs, v.ID)
				leaves = append(leaves, leaf(v, v.ID, 2))
			}
			fwRow.taskIDs = append(fwRow.taskIDs, group.taskIDs...)

			children = append(children, group)
			if !collapsed[groupKey] {
				children = append(children, leaves...)
			}
		}

		rows = append(rows, fwRow)
		if !collapsed[fw] {
			rows = append(rows, children...)
		}
	}
	return rows
}

func leaf(t task.Task, label string, depth int) treeNode {
	return treeNode{kind: nodeTask, key: t.ID, label: label, depth: depth, taskIDs: []string{t.ID}}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
