package model

// Package model defines domain data structures used across the bot: download
// jobs, quality options, per-chat sessions, and outcome enums. Jobs are
// immutable once enqueued and end in exactly one terminal outcome.
