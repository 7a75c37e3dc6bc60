// Package service implements the HTTP surface of a fluxnet node.
//
// It serves the overlay websocket that other nodes dial, the administrative
// /flux/ endpoints and the prometheus metrics. Administrative requests carry
// a bearer token signed with the admin secret; TokenAuthorizer turns it into
// a privilege the node checks before mutating anything.
package service
