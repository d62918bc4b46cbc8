// Package conversation manages the chat transcript for the selected customer.
//
// # Turns
//
// The Controller moves between two states:
//
//	idle --Begin--> awaiting-reply --Settle--> idle
//
// Begin appends the operator's message immediately and returns a Turn tagged
// with the current selection. Exchange performs the backend call and touches
// no controller state, so a UI event loop can run it as a background command
// and hand the Outcome back to Settle. Submit does all three for callers
// without an event loop.
//
// Only one turn may be in flight. Submissions while awaiting a reply, with no
// customer selected, or with blank text are rejected without side effects.
//
// # Customer Selection
//
// SelectCustomer empties the transcript. A reply still in flight for the
// previous selection is discarded on arrival; the selection epoch in its
// Turn no longer matches.
//
// # Watching
//
// Subscribe streams a Transcript snapshot after every change:
//
//	for snap := range ctrl.Subscribe(ctx) {
//	    render(snap)
//	}
package conversation
