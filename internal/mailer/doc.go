// Package mailer provides the [authsvc.Mailer] implementations used by the
// service binary: [LogMailer] for local development and [SMTPMailer] for real
// delivery.
package mailer
