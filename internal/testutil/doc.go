// Package testutil contains fixtures used across tests and examples: a
// fluent builder for loopback objects and in-process stand-ins for the
// ALMemory and ALTextToSpeech services of a robot. They are not intended for
// production usage.
package testutil
