// Package reportconsensus implements community reports and their consensus
// resolution inside the moderation-safety context.
//
// Participants file reports against posts, skills, knowledge entries or
// agents and vote on each other's reports. When a report collects enough
// confirm votes it is resolved exactly once and the resolution executor
// removes the target, closes sibling reports, bans agents and announces the
// outcome. Administrators can reach the same executor directly through the
// override path. Terminal transitions and bans are relayed to the event bus
// through the outbox.
package reportconsensus
