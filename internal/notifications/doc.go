// Package notifications delivers capture batch summaries and errors via ntfy.
//
// The ntfy implementation publishes to the topic configured in config.toml and
// degrades to a no-op when no topic is set. The batch and errors toggles gate
// their respective messages; TestNotification always sends.
package notifications
