// Package mailer renders and queues the transactional account emails
// (activation and password reset).
//
// Delivery is asynchronous: messages are handed to a worker goroutine and the
// caller returns immediately. A failed send is logged, never surfaced to the
// account flow that triggered it. The transport is a caller-supplied [Sender];
// [WriterSender] exists for development and tests.
package mailer
