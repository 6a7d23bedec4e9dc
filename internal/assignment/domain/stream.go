package domain

import "fmt"

// DatastreamStatus is the lifecycle state of a single datastream.
type DatastreamStatus string

const (
	StatusReady    DatastreamStatus = "READY"
	StatusPaused   DatastreamStatus = "PAUSED"
	StatusStopping DatastreamStatus = "STOPPING"
	StatusDeleting DatastreamStatus = "DELETING"
)

// Datastream is a named source->destination pipeline.
type Datastream struct {
	Name                  string
	ConnectorName         string
	SourceConnectionString string
	DestConnectionString   string
	DestPartitions         int
	TransportProviderName  string
	Owner                  string
	Status                 DatastreamStatus
	Metadata               map[string]string
}

// DatastreamGroup is a non-empty ordered collection of datastreams sharing a
// task prefix; it is the unit at which the strategies operate.
type DatastreamGroup struct {
	TaskPrefix  string
	Datastreams []*Datastream
	NumTasks    int // 0 means fall back to the cluster-wide default
	Sharded     bool
}

// NewDatastreamGroup validates that a group has a prefix and at least one
// datastream.
func NewDatastreamGroup(taskPrefix string, streams []*Datastream) (*DatastreamGroup, error) {
	if taskPrefix == "" {
		return nil, fmt.Errorf("datastream group requires a non-empty task prefix")
	}
	if len(streams) == 0 {
		return nil, fmt.Errorf("datastream group %s requires at least one datastream", taskPrefix)
	}
	return &DatastreamGroup{TaskPrefix: taskPrefix, Datastreams: streams}, nil
}

// EffectiveNumTasks resolves the group's task-count target, falling back to
// the cluster-wide maxTasks default when the group has none configured.
func (g *DatastreamGroup) EffectiveNumTasks(maxTasks int) int {
	if g.NumTasks > 0 {
		return g.NumTasks
	}
	return maxTasks
}
