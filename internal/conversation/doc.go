// Package conversation runs the per-user dialog that collects an email
// (recipient, subject, recipient name, optional attachment) and hands it to a
// Deliverer. It owns session state, stage transitions, idle timeouts and the
// per-user event lanes; transport and mail delivery are injected.
package conversation
