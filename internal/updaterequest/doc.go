// Package updaterequest owns the UpdateRequest lifecycle: deterministic
// naming, the phase state machine, idempotent creation and supersession of
// requests, and applying approved requests through the workload adapters.
//
// Phases move Pending -> Approved -> Completed, with Rejected and Failed as
// the other exits. Rejected, Completed and Failed are terminal; any other
// move is reported as a *StateConflictError and the stored phase is left
// untouched.
package updaterequest
