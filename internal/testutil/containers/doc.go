// Package containers starts Docker containers for integration tests using
// testcontainers-go: an Eclipse Mosquitto broker for end-to-end telemetry
// tests and MySQL for exercising the non-default database driver.
//
// Tests using this package carry the "integration" build tag:
//
//	go test -tags=integration ./...
//
// Containers are typically managed from TestMain so one instance serves the
// whole package run.
package containers
