// Package runlog is the durable execution log: one record per calendar date
// tracking the run's stage outcomes and terminal status. The controller is
// the only writer; every stage transition is a single transaction.
package runlog
