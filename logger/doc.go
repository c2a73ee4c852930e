// Package logger provides structured logging built on zerolog, with
// request-identity enrichment (request, user, session, stage) used by
// the chain executor and its collaborators.
package logger
