// Package events decouples task producers from the task runner.
//
// Producers emit TaskRequestEvents describing work to be done without
// importing the task machinery; handlers registered on an Emitter turn those
// events into persisted, queued tasks. This keeps API surfaces and services
// free of direct runner dependencies.
package events
