// Package poller implements the Account Poller component.
//
// The Account Poller:
//   - Polls a broker for balance and positions on a fixed interval
//   - Hands each AccountSnapshot to a handler
//   - Runs at most one poll at a time, so a bridge client never sees
//     overlapping requests from it
package poller
