// Package session tracks active recording sessions per guild.
// A session exists in the registry exactly while a voice connection is
// active for that guild; leave removes the entry unconditionally before
// any downstream processing runs.
package session
