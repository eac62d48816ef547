// Package controlloop drives the outlet scheduler, the motion override and
// sensor ingest from a single goroutine.
//
// Each iteration runs, in order:
//
//  1. weather then water temperature ingest, when the sampling timer is due
//     and a reading is waiting
//  2. the motion override, when motion was signalled since the last iteration
//  3. one scheduler cycle
//
// External inputs (MQTT callbacks, HTTP handlers) never touch the store or
// the switch. They only set a pending-motion flag or replace the latest
// sensor readings through Inputs, which the loop consumes.
package controlloop
