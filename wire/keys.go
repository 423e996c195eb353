// Copyright 2026 The Patchline Authors
// SPDX-License-Identifier: Apache-2.0

package wire

// Well-known property keys. Factory names are probed at runtime from
// Factory globals rather than hardcoded, so only the keys themselves
// are protocol constants.
const (
	// KeyNodeID is set on Port globals and names the owning node's
	// global id, encoded in decimal.
	KeyNodeID = "node.id"

	// KeyPortID is set on Port globals and repeats the port's own
	// global id, encoded in decimal.
	KeyPortID = "port.id"

	// KeyPortName is the node-local port name (e.g. "output_FL").
	KeyPortName = "port.name"

	// KeyPortAlias is the globally unique human-readable port name
	// (e.g. "Built-in Audio:output_FL"). Link commands identify
	// endpoints by alias.
	KeyPortAlias = "port.alias"

	// KeyPortDirection is "in" or "out".
	KeyPortDirection = "port.direction"

	// Link endpoint properties. Set on Link globals and on the
	// property set passed to the link factory.
	KeyLinkOutputNode = "link.output.node"
	KeyLinkOutputPort = "link.output.port"
	KeyLinkInputNode  = "link.input.node"
	KeyLinkInputPort  = "link.input.port"

	// KeyObjectLinger keeps a created object alive after its creating
	// client disconnects. Without it the daemon garbage-collects the
	// object together with the client's other resources.
	KeyObjectLinger = "object.linger"

	// Factory advertisement properties.
	KeyFactoryName     = "factory.name"
	KeyFactoryTypeName = "factory.type.name"
)

// namingKeys lists the properties consulted, in priority order, when
// deriving a display name for a global object.
var namingKeys = []string{
	"client.name",
	"core.name",
	"device.name",
	KeyFactoryName,
	"node.name",
	"module.name",
	"application.name",
	"metadata.name",
	"object.path",
	KeyPortAlias,
}

// DisplayName returns the first naming property present on the global,
// along with the key that supplied it. Returns false when the global
// carries none of the naming properties.
func DisplayName(global Global) (key, value string, ok bool) {
	for _, k := range namingKeys {
		if v, present := global.Properties[k]; present {
			return k, v, true
		}
	}
	return "", "", false
}
