// Package store provides SQLite-backed storage for tenantrpc.
//
// It holds:
//   - Users, tenants and memberships (the session.Directory)
//   - Sessions keyed by token digest (the session.Store)
//   - Invoices, the tenant-scoped rows behind the demo operations
//
// # Tenant Scoping
//
// Every tenant-scoped query takes the tenant id as an explicit argument and
// fails with ErrMissingTenant when it is empty. Callers obtain that id from
// the resolved call context, never from a request payload.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Timestamps are stored as INTEGER Unix nanoseconds in UTC.
package store
