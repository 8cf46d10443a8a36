package addrspace

import (
	"fmt"
	"strings"

	ua "github.com/awcullen/opcua/ua"
)

// RootNodeID is the RootFolder of every OPC UA address space; a browse
// without an explicit node starts here.
const RootNodeID = "i=84"

// ObjectsNodeID is the Objects folder below the root.
const ObjectsNodeID = "i=85"

// NodeIDError reports a node id that does not follow the OPC UA string
// encoding.
type NodeIDError struct {
	ID     string
	Reason string
}

func (e *NodeIDError) Error() string {
	return fmt.Sprintf("invalid node id %q: %s", e.ID, e.Reason)
}

// isExpanded reports whether id carries a server index or namespace URI
// (svr=<n>; or nsu=<uri>;) in front of the identifier.
func isExpanded(id string) bool {
	return strings.HasPrefix(id, "svr=") || strings.HasPrefix(id, "nsu=")
}

// ParseNodeID parses an OPC UA node id (i=, s=, g= or b= with an optional
// ns=<n>; prefix, or the expanded nsu=/svr= forms) and returns its
// canonical string. Namespace 0 prefixes are dropped; expanded ids are
// returned as given.
func ParseNodeID(id string) (string, error) {
	s := strings.TrimSpace(id)
	if s == "" {
		return "", &NodeIDError{ID: id, Reason: "empty"}
	}

	if isExpanded(s) {
		x := ua.ParseExpandedNodeID(s)
		if x.NodeID == nil {
			return "", &NodeIDError{ID: id, Reason: "malformed expanded node id"}
		}
		return s, nil
	}

	n := ua.ParseNodeID(s)
	if n == nil {
		return "", &NodeIDError{ID: id, Reason: "not an ns=<n>;i|s|g|b=<value> node id"}
	}
	return fmt.Sprint(n), nil
}

// IsValidNodeID reports whether ParseNodeID accepts id.
func IsValidNodeID(id string) bool {
	_, err := ParseNodeID(id)
	return err == nil
}

// DisplayID returns the canonical form of id for display, or id unchanged
// when it cannot be parsed.
func DisplayID(id string) string {
	if c, err := ParseNodeID(id); err == nil {
		return c
	}
	return id
}
