// Package errcode defines the error codes returned by the gateway api and
// the JSON envelope they are served in.
package errcode
