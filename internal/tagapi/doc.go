// Package tagapi models the payloads exchanged with the remote tag-analysis
// service and the display rules the results view applies to them.
//
// The service itself is an external collaborator; this package only describes
// its successful Response, its APIError codes and how a stored result_json
// decodes back into those types.
package tagapi
