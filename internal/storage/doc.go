// Package storage persists the two durable tables of the bot:
//
//   - users: the audience set (recipient ids, unique)
//   - promotions: submitted promotion requests awaiting operator decision
//
// A promotion row exists exactly while its request is pending; approve and
// reject both end in deletion. Audience add/remove are idempotent so the
// delivery engine can prune a recipient it has already pruned.
package storage
