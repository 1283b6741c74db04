// Package alerts implements the threshold alert engine. Rules are simple
// "field op value" expressions over the mesh overview snapshot; firing
// alerts are pushed to subscribers as "alert" envelopes and delivered to
// slack/teams/pagerduty/http webhooks, with per-rule cooldown and automatic
// resolution when the condition clears.
//
// Source is a collector-source decorator that feeds every fetched snapshot
// through the engine, keeping the collection core payload-agnostic.
package alerts
