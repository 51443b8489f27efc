// Package mcp exposes command execution to an agent over the Model Context
// Protocol.
//
// The server runs on the stdio transport. Tool results carry only scrubbed
// output and secret metadata; secret values never cross this boundary.
package mcp
