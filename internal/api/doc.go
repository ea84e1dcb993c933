// Package api contains the HTTP handlers for the reminder pipeline: the
// cron-triggered batch run, the manual per-task re-trigger, the reminder log
// read path, and the provider webhook. Handlers decode and validate input,
// delegate to the service layer, and map errors to sanitized responses via
// MapErrorToStatusCode and GetSafeErrorMessage.
package api
