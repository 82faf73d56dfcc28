package domain

import "time"

// Project is the serialisable snapshot of one document: every layer of the
// hierarchy, keyed by id, plus the counter used for default layer names.
type Project struct {
	ID           string            `json:"id" yaml:"id"`
	TimelineID   string            `json:"timelineId" yaml:"timelineId"`
	RootLayerID  string            `json:"rootLayerId" yaml:"rootLayerId"`
	LayerCounter int               `json:"layerCounter" yaml:"layerCounter"`
	Layers       map[string]*Layer `json:"layers" yaml:"layers"`
	UpdatedAt    time.Time         `json:"updatedAt" yaml:"updatedAt"`
}

// NewProject creates a project holding only an empty root layer.
func NewProject(id, timelineID string) *Project {
	root := NewLayer(RootLayerID, RootLayerName, "", 0)
	return &Project{
		ID:          id,
		TimelineID:  timelineID,
		RootLayerID: root.ID,
		Layers:      map[string]*Layer{root.ID: root},
	}
}

// Clone returns a deep copy of the project.
func (p *Project) Clone() *Project {
	out := *p
	out.Layers = make(map[string]*Layer, len(p.Layers))
	for id, l := range p.Layers {
		out.Layers[id] = l.Clone()
	}
	return &out
}

// NodeCount returns the total number of nodes across all layers.
func (p *Project) NodeCount() int {
	total := 0
	for _, l := range p.Layers {
		total += len(l.Nodes)
	}
	return total
}
