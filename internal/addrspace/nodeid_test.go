package addrspace

import (
	"errors"
	"strings"
	"testing"
)

func TestParseNodeID(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"i=84", "i=84"},
		{"ns=0;i=85", "i=85"},
		{"ns=2;s=PLC1.Temperature", "ns=2;s=PLC1.Temperature"},
		{" ns=3;i=1001 ", "ns=3;i=1001"},
		{"ns=1;g=09087e75-8e5e-499b-954f-f2a9603db28a", "ns=1;g=09087e75-8e5e-499b-954f-f2a9603db28a"},
		{"nsu=urn:plc;s=Line1.Temp", "nsu=urn:plc;s=Line1.Temp"},
		{"nsu=http://opcfoundation.org/UA/DI/;i=5001", "nsu=http://opcfoundation.org/UA/DI/;i=5001"},
	}

	for _, tt := range tests {
		got, err := ParseNodeID(tt.id)
		if err != nil {
			t.Errorf("ParseNodeID(%q) error = %v", tt.id, err)
			continue
		}
		if !strings.EqualFold(got, tt.want) {
			t.Errorf("ParseNodeID(%q) = %s, want %s", tt.id, got, tt.want)
		}
	}
}

func TestParseNodeIDInvalid(t *testing.T) {
	invalid := []string{
		"",
		"84",
		"i=",
		"i=error",
		"i=-1",
		"x=12",
		"ns=;i=1",
		"ns=70000;i=1",
		"g=not-a-guid",
		"nsu=urn:plc;x=1",
	}

	for _, id := range invalid {
		_, err := ParseNodeID(id)
		var idErr *NodeIDError
		if !errors.As(err, &idErr) {
			t.Errorf("ParseNodeID(%q) error = %v, want *NodeIDError", id, err)
		}
	}
}

func TestRootNodeIDIsValid(t *testing.T) {
	if !IsValidNodeID(RootNodeID) {
		t.Errorf("RootNodeID %s should be valid", RootNodeID)
	}
	if !IsValidNodeID(ObjectsNodeID) {
		t.Errorf("ObjectsNodeID %s should be valid", ObjectsNodeID)
	}
}

func TestDisplayID(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"ns=0;i=85", "i=85"},
		{"ns=2;s=Line1.Temp", "ns=2;s=Line1.Temp"},
		{"vendor:Line1/Temp", "vendor:Line1/Temp"},
	}
	for _, tt := range tests {
		if got := DisplayID(tt.id); got != tt.want {
			t.Errorf("DisplayID(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}
