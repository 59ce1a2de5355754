// Package scheduler is the runtime heart of the bot: it turns persisted
// schedule records into live cron jobs and one-shot timers, keeps an
// in-memory registry of at most one live handle per schedule id, and owns
// the create/update/toggle/delete lifecycle.
//
// Registry mutation is always cancel-then-register: any existing handle for
// an id is cancelled before a new one may be created, so repeated enables,
// updates and restarts can never leave two live entries for the same id.
//
// One-shot (manual) schedules fire once and are then persisted as disabled
// regardless of whether the dispatch succeeded. A failed one-shot delivery
// is dropped rather than retried; recurring schedules retry naturally on
// their next tick.
package scheduler
