package events

import "time"

// GraphQLStart is emitted before executing a GraphQL operation.
type GraphQLStart struct {
	Query         string
	OperationName string
	OperationType string
}

// GraphQLFinish is emitted after executing a GraphQL operation.
// Errors holds the messages of every reported GraphQL error and Err the
// fatal error, if any.
type GraphQLFinish struct {
	Query         string
	OperationName string
	OperationType string
	Errors        []string
	Err           error
	Duration      time.Duration
}
