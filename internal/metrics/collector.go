// Package metrics provides in-memory runtime statistics collection.
package metrics

import (
	"math"
	"sync"
	"time"
)

// OperationMetrics holds aggregated metrics for a single operation type.
type OperationMetrics struct {
	Count     int64
	Errors    int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration

	// Token metrics, populated only for model operations.
	TotalInputTokens  int64
	TotalOutputTokens int64
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count           int64    `json:"count"`
	Errors          int64    `json:"errors"`
	TotalTimeMs     int64    `json:"total_time_ms"`
	AvgTimeMs       float64  `json:"avg_time_ms"`
	MinTimeMs       int64    `json:"min_time_ms"`
	MaxTimeMs       int64    `json:"max_time_ms"`
	InputTokens     *int64   `json:"input_tokens,omitempty"`
	OutputTokens    *int64   `json:"output_tokens,omitempty"`
	AvgOutputTokens *float64 `json:"avg_output_tokens,omitempty"`
}

// Snapshot represents the full service statistics at a point in time.
type Snapshot struct {
	UptimeSeconds    float64            `json:"uptime_seconds"`
	ModelInvoke      *OperationSnapshot `json:"model_invoke,omitempty"`
	ToolExecute      *OperationSnapshot `json:"tool_execute,omitempty"`
	ConversationLoad *OperationSnapshot `json:"conversation_load,omitempty"`
	ConversationSave *OperationSnapshot `json:"conversation_save,omitempty"`
	LinkQuery        *OperationSnapshot `json:"dblink_query,omitempty"`
}

// Operation names for the collector.
const (
	OpModelInvoke      = "model_invoke"
	OpToolExecute      = "tool_execute"
	OpConversationLoad = "conversation_load"
	OpConversationSave = "conversation_save"
	OpLinkQuery        = "dblink_query"
)

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.ops[op] = m
	}
	return m
}

// RecordTiming records timing for an operation.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record(op, duration)
}

// RecordError records a failed operation with its timing.
func (c *Collector) RecordError(op string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record(op, duration).Errors++
}

// RecordModelUsage records timing and token usage for a model invocation.
func (c *Collector) RecordModelUsage(duration time.Duration, inputTokens, outputTokens int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.record(OpModelInvoke, duration)
	m.TotalInputTokens += inputTokens
	m.TotalOutputTokens += outputTokens
}

// record updates the shared counters. Caller must hold write lock.
func (c *Collector) record(op string, duration time.Duration) *OperationMetrics {
	m := c.getOrCreate(op)
	m.Count++
	m.TotalTime += duration

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
	return m
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(m *OperationMetrics, includeTokens bool) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}

	snap := &OperationSnapshot{
		Count:       m.Count,
		Errors:      m.Errors,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}

	if includeTokens && (m.TotalInputTokens > 0 || m.TotalOutputTokens > 0) {
		in := m.TotalInputTokens
		out := m.TotalOutputTokens
		avgOut := float64(out) / float64(m.Count)
		snap.InputTokens = &in
		snap.OutputTokens = &out
		snap.AvgOutputTokens = &avgOut
	}

	return snap
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		UptimeSeconds:    time.Since(c.startTime).Seconds(),
		ModelInvoke:      snapshotOp(c.ops[OpModelInvoke], true),
		ToolExecute:      snapshotOp(c.ops[OpToolExecute], false),
		ConversationLoad: snapshotOp(c.ops[OpConversationLoad], false),
		ConversationSave: snapshotOp(c.ops[OpConversationSave], false),
		LinkQuery:        snapshotOp(c.ops[OpLinkQuery], false),
	}
}
