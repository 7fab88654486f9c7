// Package compiler turns CUE controller configuration into criteria.
//
// A configuration lists criteria in priority order:
//
//	name: "kitchen"
//	criteria: [
//		{kind: "probe", probe_id: 42},
//		{kind: "flow_rate", rate_threshold: 2.0, min_duration: 60},
//	]
//
// CompileConfig checks structure, Validate checks ranges against the engine's
// limits, and AnalyzeShadowing warns about criteria that can never win.
// Config.Document produces the serialized criteria document that the store
// persists and the controller decodes.
package compiler
