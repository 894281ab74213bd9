// Package testutil contains builders and test doubles shared across package
// tests: event and session builders, a recording channel, a capture logger,
// a scripted responder, a summarizer spy and a transcript backend that can be
// switched into failure. They are not intended for production usage.
package testutil
