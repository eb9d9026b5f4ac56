// Package monitor observes execution lifecycles.
//
// A Monitor is installed on root executions with execution.WithListener
// and is inherited by their children. It counts executions in Prometheus
// collectors and, when given a Store, appends every start and end to a
// SQLite execution log that the history command reads back.
package monitor
