// Package id generates identifiers for interceptors, scopes and emulated
// requests.
//
// Identifiers are random (UUID v4 based) and carry a short type prefix so a
// log line or a pending-mock listing tells at a glance what it refers to.
package id
