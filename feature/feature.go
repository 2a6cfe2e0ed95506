// Package feature defines annotation features and the declarations of the
// tracks they come from.
package feature

// Feature is one annotation item attached to a node or a query window.
//
// Depending on how it was produced, StartOffset and StopOffset are either
// absolute reference coordinates or distances from the window edges (see the
// annotation package).  They are never negative.
type Feature struct {
	StartOffset uint64   `json:"start_offset"`
	StopOffset  uint64   `json:"stop_offset"`
	ID          uint64   `json:"id"`
	Name        string   `json:"name"`
	IsReverse   *bool    `json:"is_reverse"`
	Attributes  []string `json:"attributes"`
	Value       *float32 `json:"value"`
}

// Float32 returns a pointer to v.
func Float32(v float32) *float32 { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }
