// Package browser obtains raw page captures from a browser tab.
//
// Capturer runs an ordered list of strategies against a Platform: an optional
// force-activate capture that restores the previously active tab, a visible
// viewport capture for active and focused tabs, and an in-page DOM render
// through an injected agent. Each strategy has its own timeout; failures fall
// through to the next one and exhaustion yields services.ErrCaptureUnavailable.
//
// Chrome implements the Platform and tab lifecycle over the DevTools protocol
// using chromedp. Fake is an in-memory implementation for tests.
package browser
