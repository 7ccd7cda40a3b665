package types

type EntityKind string

const (
	EntityMirror   EntityKind = "mirror"
	EntityRepo     EntityKind = "repo"
	EntitySnapshot EntityKind = "snapshot"
	EntityPublish  EntityKind = "publish"
	// EntityRotation is a virtual dependency: a rotating snapshot's name is
	// free again once the old snapshot was renamed away.
	EntityRotation EntityKind = "rotation"
)

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
)

type PublishVariant string

const (
	PublishVariantSimple    PublishVariant = "simple"
	PublishVariantRotating  PublishVariant = "rotating"
	PublishVariantRepublish PublishVariant = "republish"
	PublishVariantRepo      PublishVariant = "repo"
)
