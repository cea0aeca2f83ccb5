// Package livysim owns a local stand-in for the EMR Serverless Livy
// wire surface.
//
// Ownership boundary:
// - session and statement lifecycle state machines
// - the /sessions HTTP surface with location headers
// - synthetic failure injection for retry exercises
//
// Livysim does not verify signatures; it only checks their presence.
package livysim
