// Package agent implements the tool-mediated conversation loop: user input
// goes to the model, the model replies with text or tool calls, tool calls
// run through the registry (mutating ones through the approval pipeline),
// and results feed the next model call until the model answers in plain
// text. History is persisted after every turn so sessions survive restarts.
package agent
