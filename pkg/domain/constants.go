package domain

const (
	// RootLayerID is the id of the root layer of a fresh project.
	RootLayerID = "root"

	// RootLayerName is the display name of the root layer.
	RootLayerName = "Main"

	// DefaultLayerPrefix is used to build default layer names ("Layer 3").
	DefaultLayerPrefix = "Layer"

	// CopySuffix is appended to the name of copied or duplicated layers.
	CopySuffix = " copy"

	// DefaultHistoryCapacity bounds the undo and redo stacks.
	DefaultHistoryCapacity = 100
)
