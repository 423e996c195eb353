// Copyright 2026 The Patchline Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"errors"
	"testing"

	"github.com/patchline-project/patchline/wire"
)

// portPairMirror builds the canonical two-port topology: an output
// port 5 on node 2 and an input port 9 on node 3.
func portPairMirror() *Mirror {
	m := NewMirror()
	m.Upsert(wire.Global{
		ID:   5,
		Kind: wire.KindPort,
		Properties: map[string]string{
			wire.KeyNodeID:        "2",
			wire.KeyPortDirection: "out",
		},
	})
	m.Upsert(wire.Global{
		ID:   9,
		Kind: wire.KindPort,
		Properties: map[string]string{
			wire.KeyNodeID:        "3",
			wire.KeyPortDirection: "in",
		},
	})
	return m
}

func TestResolveEndpoint(t *testing.T) {
	m := portPairMirror()

	nodeID, portID, err := ResolveEndpoint(m, Endpoint{wire.KeyPortDirection, "out"})
	if err != nil {
		t.Fatalf("resolving output endpoint: %v", err)
	}
	if nodeID != 2 || portID != 5 {
		t.Fatalf("output endpoint = (%d, %d), want (2, 5)", nodeID, portID)
	}

	nodeID, portID, err = ResolveEndpoint(m, Endpoint{wire.KeyPortDirection, "in"})
	if err != nil {
		t.Fatalf("resolving input endpoint: %v", err)
	}
	if nodeID != 3 || portID != 9 {
		t.Fatalf("input endpoint = (%d, %d), want (3, 9)", nodeID, portID)
	}
}

func TestResolveEndpointNoMatch(t *testing.T) {
	m := portPairMirror()
	_, _, err := ResolveEndpoint(m, Endpoint{wire.KeyPortAlias, "ghost:out"})
	var unresolved *UnresolvedEndpointError
	if !errors.As(err, &unresolved) {
		t.Fatalf("error = %v, want UnresolvedEndpointError", err)
	}
	if unresolved.Endpoint.Value != "ghost:out" {
		t.Fatalf("error carries endpoint %v", unresolved.Endpoint)
	}
}

func TestResolveEndpointIgnoresNonPorts(t *testing.T) {
	m := NewMirror()
	// A node carrying the searched property must not satisfy the
	// resolver; only ports qualify.
	m.Upsert(wire.Global{
		ID:         11,
		Kind:       wire.KindNode,
		Properties: map[string]string{wire.KeyPortAlias: "mixer:out"},
	})

	_, _, err := ResolveEndpoint(m, Endpoint{wire.KeyPortAlias, "mixer:out"})
	var unresolved *UnresolvedEndpointError
	if !errors.As(err, &unresolved) {
		t.Fatalf("error = %v, want UnresolvedEndpointError", err)
	}
}

func TestResolveEndpointOrphanPort(t *testing.T) {
	cases := []struct {
		name       string
		properties map[string]string
	}{
		{"missing node id", map[string]string{wire.KeyPortName: "out"}},
		{"unparsable node id", map[string]string{
			wire.KeyPortName: "out",
			wire.KeyNodeID:   "not-a-number",
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewMirror()
			m.Upsert(wire.Global{ID: 5, Kind: wire.KindPort, Properties: tc.properties})

			_, _, err := ResolveEndpoint(m, Endpoint{wire.KeyPortName, "out"})
			var orphan *OrphanPortError
			if !errors.As(err, &orphan) {
				t.Fatalf("error = %v, want OrphanPortError", err)
			}
			if orphan.PortID != 5 {
				t.Fatalf("error names port %d, want 5", orphan.PortID)
			}
		})
	}
}

func TestLinkProperties(t *testing.T) {
	m := portPairMirror()
	properties, err := LinkProperties(m,
		Endpoint{wire.KeyPortDirection, "out"},
		Endpoint{wire.KeyPortDirection, "in"})
	if err != nil {
		t.Fatalf("LinkProperties: %v", err)
	}
	want := map[string]string{
		wire.KeyLinkOutputNode: "2",
		wire.KeyLinkOutputPort: "5",
		wire.KeyLinkInputNode:  "3",
		wire.KeyLinkInputPort:  "9",
	}
	for key, value := range want {
		if properties[key] != value {
			t.Errorf("%s = %q, want %q", key, properties[key], value)
		}
	}
	if len(properties) != len(want) {
		t.Errorf("property set has %d keys, want %d", len(properties), len(want))
	}
}

func TestLinkPropertiesFailsOnEitherEndpoint(t *testing.T) {
	m := portPairMirror()
	if _, err := LinkProperties(m,
		Endpoint{wire.KeyPortAlias, "ghost:out"},
		Endpoint{wire.KeyPortDirection, "in"}); err == nil {
		t.Fatal("unresolvable output endpoint accepted")
	}
	if _, err := LinkProperties(m,
		Endpoint{wire.KeyPortDirection, "out"},
		Endpoint{wire.KeyPortAlias, "ghost:in"}); err == nil {
		t.Fatal("unresolvable input endpoint accepted")
	}
}

func TestMatchesLinkPropertiesRequiresAllFour(t *testing.T) {
	properties := map[string]string{
		wire.KeyLinkOutputNode: "2",
		wire.KeyLinkOutputPort: "5",
		wire.KeyLinkInputNode:  "3",
		wire.KeyLinkInputPort:  "9",
	}

	exact := wire.Global{Kind: wire.KindLink, Properties: map[string]string{
		wire.KeyLinkOutputNode: "2",
		wire.KeyLinkOutputPort: "5",
		wire.KeyLinkInputNode:  "3",
		wire.KeyLinkInputPort:  "9",
	}}
	if !matchesLinkProperties(exact, properties) {
		t.Fatal("exact four-tuple rejected")
	}

	// Sharing three of four endpoints is a different link.
	partial := wire.Global{Kind: wire.KindLink, Properties: map[string]string{
		wire.KeyLinkOutputNode: "2",
		wire.KeyLinkOutputPort: "5",
		wire.KeyLinkInputNode:  "3",
		wire.KeyLinkInputPort:  "10",
	}}
	if matchesLinkProperties(partial, properties) {
		t.Fatal("partial match accepted; destroy would collect an unrelated link")
	}

	notALink := wire.Global{Kind: wire.KindPort, Properties: exact.Properties}
	if matchesLinkProperties(notALink, properties) {
		t.Fatal("non-link object matched")
	}
}
