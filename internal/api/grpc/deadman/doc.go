// Package deadman implements the gRPC transport for the switch.
//
// The service is described by a hand-written grpc.ServiceDesc whose messages
// are protobuf well-known types, so no generated code is needed. The server
// adapts requests to the check-in arbiter and renders statuses as
// google.protobuf.Struct values.
package deadman
