// Package service contains the reminder pipeline's application services: the
// dispatcher, the batch scheduler, the webhook correlator and the task
// reminder configuration service. Services receive their stores and senders
// by reference at construction; there are no hidden globals.
package service
