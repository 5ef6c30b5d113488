// Package v1 describes the routes of the extension gateway api and provides
// a router and url builder for them. Error codes specific to the api are
// registered with the errcode package.
package v1
