// Package export writes evaluation records as JSON or CSV.
//
// Both exporters accept a slice (Export) or a channel from
// Storage.QueryStream (ExportStream). CSV flattens the triggered rules into
// a "rule:status" list and omits the payload.
package export
