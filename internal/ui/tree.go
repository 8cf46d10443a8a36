package ui

import (
	"strings"

	"github.com/muurk/opcua-console/internal/addrspace"
)

// RenderTree draws nodes and their loaded children as an indented tree.
func RenderTree(nodes []addrspace.Node) string {
	if len(nodes) == 0 {
		return StepPendingStyle.Render("  (no nodes)")
	}
	var b strings.Builder
	renderBranch(&b, nodes, "")
	return strings.TrimRight(b.String(), "\n")
}

func renderBranch(b *strings.Builder, nodes []addrspace.Node, prefix string) {
	for i, n := range nodes {
		last := i == len(nodes)-1

		connector, childPrefix := "├── ", "│   "
		if last {
			connector, childPrefix = "└── ", "    "
		}

		b.WriteString(TreeBranchStyle.Render(prefix + connector))
		b.WriteString(nodeLabel(n))
		b.WriteString("\n")

		if n.HasChildren() {
			renderBranch(b, n.Children, prefix+childPrefix)
		}
	}
}

func nodeLabel(n addrspace.Node) string {
	style := TreeObjectStyle
	switch {
	case n.NodeType.Is(addrspace.Folder):
		style = TreeFolderStyle
	case n.NodeType.Is(addrspace.Variable):
		style = TreeVarStyle
	}

	label := style.Render(n.Name) + " " + TreeIDStyle.Render("("+addrspace.DisplayID(n.ID)+")")
	if n.DataType != "" {
		label += " " + StepNoteStyle.Render(n.DataType)
	}
	return label
}
