// Package channel abstracts the delivery mediums a notification can be sent
// over.
//
// Every medium implements the Channel interface: a name, a format-only
// recipient validation, and Send. Send never fails with a Go error —
// provider outcomes, including validation and transport failures, are
// always captured in the structured Result so a failed delivery flows
// through the ordinary retry and logging machinery instead of non-local
// control flow.
//
// The Registry is an explicit mapping constructed at startup and injected
// into the delivery pipeline; adding a medium means adding a variant, the
// pipeline itself never changes.
package channel
