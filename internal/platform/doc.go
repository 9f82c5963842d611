package platform

// Package platform contains filesystem glue for the download pipeline:
// working-directory setup, collision-free per-job file paths, and idempotent
// temp-file removal.
