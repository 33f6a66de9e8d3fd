// Package dynamo implements the DynamoDB-backed connection registry and
// score store for deployments that keep state in AWS.
package dynamo
