// Package recovery gates the unauthenticated "forgot password" flow for one
// user session. Submissions pass a honeypot check, an active-cooldown check,
// and a fixed one-hour attempt window before a progressive delay and the
// dispatch to the recovery service. Cooldowns only ever grow until they
// expire, a remote reset time included. All messaging stays neutral about
// whether the address belongs to a real account.
package recovery
