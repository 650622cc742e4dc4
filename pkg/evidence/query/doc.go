// Package query validates evidence queries and fills their defaults.
//
//	q := &evidence.Query{OverallStatus: "BLOCK"}
//	query.ApplyDefaults(q) // limit 100, newest first
//	if err := query.Validate(q); err != nil {
//	    return err
//	}
package query
