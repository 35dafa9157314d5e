package cloudevents

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types published by the task engine
const (
	// Wave events
	WaveCreated    = "wms.wave.created"
	WaveReleased   = "wms.wave.released"
	WaveInProgress = "wms.wave.in-progress"
	WaveCompleted  = "wms.wave.completed"
	WaveCancelled  = "wms.wave.cancelled"

	// Task events
	TaskCreated   = "wms.task.created"
	TaskAssigned  = "wms.task.assigned"
	TaskStarted   = "wms.task.started"
	TaskPaused    = "wms.task.paused"
	TaskResumed   = "wms.task.resumed"
	TaskCompleted = "wms.task.completed"
	TaskCancelled = "wms.task.cancelled"
	TaskSettled   = "wms.task.settled"

	// Slotting events
	SlotOptimizationCompleted = "wms.slotting.optimization-completed"
	RelocationRecommended     = "wms.slotting.relocation-recommended"
)

// SourceTaskEngine is the CloudEvents source for every engine event
const SourceTaskEngine = "/wms/task-engine"

// Extension attribute names
const (
	ExtCorrelationID = "wmscorrelationid"
	ExtWaveNumber    = "wmswavenumber"
	ExtWorkflowID    = "wmsworkflowid"
	ExtWarehouseID   = "wmswarehouseid"
	ExtTraceParent   = "traceparent"
)

// WMSCloudEvent represents a CloudEvents v1.0 compliant event for WMS
type WMSCloudEvent struct {
	SpecVersion     string                 `json:"specversion"`
	Type            string                 `json:"type"`
	Source          string                 `json:"source"`
	Subject         string                 `json:"subject,omitempty"`
	ID              string                 `json:"id"`
	Time            time.Time              `json:"time"`
	DataContentType string                 `json:"datacontenttype"`
	Data            interface{}            `json:"data"`
	Extensions      map[string]interface{} `json:"-"`

	// WMS-specific extensions
	CorrelationID string `json:"wmscorrelationid,omitempty"`
	WaveNumber    string `json:"wmswavenumber,omitempty"`
	WorkflowID    string `json:"wmsworkflowid,omitempty"`
	WarehouseID   string `json:"wmswarehouseid,omitempty"`
	TraceParent   string `json:"traceparent,omitempty"`
}

// DecodeData decodes the event payload into v. Payloads of consumed events
// arrive as generic JSON values, so they are re-encoded first.
func (e *WMSCloudEvent) DecodeData(v interface{}) error {
	var raw []byte
	switch data := e.Data.(type) {
	case json.RawMessage:
		raw = data
	case []byte:
		raw = data
	default:
		var err error
		raw, err = json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to encode event data: %w", err)
		}
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode %s data: %w", e.Type, err)
	}
	return nil
}

// Headers returns the binary-mode CloudEvents headers for the event.
func (e *WMSCloudEvent) Headers() map[string]string {
	headers := map[string]string{
		"ce-specversion": e.SpecVersion,
		"ce-type":        e.Type,
		"ce-source":      e.Source,
		"ce-id":          e.ID,
		"ce-time":        e.Time.Format(time.RFC3339),
		"content-type":   e.DataContentType,
	}

	optional := map[string]string{
		ExtCorrelationID: e.CorrelationID,
		ExtWaveNumber:    e.WaveNumber,
		ExtWorkflowID:    e.WorkflowID,
		ExtWarehouseID:   e.WarehouseID,
		ExtTraceParent:   e.TraceParent,
	}
	for ext, value := range optional {
		if value != "" {
			headers["ce-"+ext] = value
		}
	}
	return headers
}

// ApplyHeader copies a known extension header onto the event.
func (e *WMSCloudEvent) ApplyHeader(key, value string) {
	switch key {
	case "ce-" + ExtCorrelationID:
		e.CorrelationID = value
	case "ce-" + ExtWaveNumber:
		e.WaveNumber = value
	case "ce-" + ExtWorkflowID:
		e.WorkflowID = value
	case "ce-" + ExtWarehouseID:
		e.WarehouseID = value
	case "ce-" + ExtTraceParent:
		e.TraceParent = value
	}
}
