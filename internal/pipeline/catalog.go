package pipeline

import (
	"sort"
	"sync"

	"github.com/tigerroll/hourglass/internal/dataset"
	exception "github.com/tigerroll/hourglass/pkg/batch/support/util/exception"
)

// Well-known catalog keys shared between stages. Each stage reads the frames
// of its predecessors and publishes its own under these names.
const (
	FrameLoadTable        = "load_table"
	FrameLookupTable      = "lookup_table"
	FrameGeographyZones   = "geography_timezones"
	FrameGeographyMapping = "geography_mapping"
	FrameConsolidatedLoad = "consolidated_load"
	FrameCalendar         = "calendar"
	FrameAlignedLoad      = "aligned_load"
	ValuePipelineConfig   = "pipeline_config"
	ValueEndUseColumns    = "enduse_columns"
)

// DatasetCatalog is the in-memory handoff between pipeline stages. Frames
// and values live for the duration of one job execution.
type DatasetCatalog struct {
	mu     sync.RWMutex
	frames map[string]*dataset.Frame
	values map[string]interface{}
}

func NewDatasetCatalog() *DatasetCatalog {
	return &DatasetCatalog{
		frames: make(map[string]*dataset.Frame),
		values: make(map[string]interface{}),
	}
}

// PutFrame registers or replaces the frame under name.
func (c *DatasetCatalog) PutFrame(name string, f *dataset.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames[name] = f
}

// Frame returns the frame registered under name. A missing frame means a
// stage ran out of order, which is a wiring defect rather than bad data.
func (c *DatasetCatalog) Frame(name string) (*dataset.Frame, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.frames[name]
	if !ok {
		return nil, exception.NewBatchErrorf("catalog", "frame %q has not been produced yet (available: %v)", name, c.frameNamesLocked())
	}
	return f, nil
}

// PutValue registers or replaces an arbitrary value under name.
func (c *DatasetCatalog) PutValue(name string, v interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[name] = v
}

// Value returns the value registered under name.
func (c *DatasetCatalog) Value(name string) (interface{}, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[name]
	if !ok {
		return nil, exception.NewBatchErrorf("catalog", "value %q has not been produced yet", name)
	}
	return v, nil
}

// PipelineConfig returns the resolved pipeline configuration published by the
// first stage.
func (c *DatasetCatalog) PipelineConfig() (*Config, error) {
	v, err := c.Value(ValuePipelineConfig)
	if err != nil {
		return nil, err
	}
	cfg, ok := v.(*Config)
	if !ok {
		return nil, exception.NewBatchErrorf("catalog", "value %q holds %T, expected *pipeline.Config", ValuePipelineConfig, v)
	}
	return cfg, nil
}

// EndUseColumns returns the resolved end-use column list published by the
// first stage.
func (c *DatasetCatalog) EndUseColumns() ([]string, error) {
	v, err := c.Value(ValueEndUseColumns)
	if err != nil {
		return nil, err
	}
	cols, ok := v.([]string)
	if !ok {
		return nil, exception.NewBatchErrorf("catalog", "value %q holds %T, expected []string", ValueEndUseColumns, v)
	}
	return cols, nil
}

// Reset drops every frame and value, freeing the run's working set.
func (c *DatasetCatalog) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = make(map[string]*dataset.Frame)
	c.values = make(map[string]interface{})
}

func (c *DatasetCatalog) frameNamesLocked() []string {
	names := make([]string, 0, len(c.frames))
	for name := range c.frames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
