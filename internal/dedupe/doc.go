// Package dedupe tracks recently recorded capture keys so a capture that is
// submitted twice within a short window is only recorded once.
package dedupe
