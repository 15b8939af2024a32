// Package transaction groups multi-step coordination operations into
// atomically committed or rolled-back units.
//
// Operations are appended to a pending transaction without executing. Commit
// runs them strictly in append order; if any execute fails, every previously
// executed operation is undone in reverse order and the transaction becomes
// rolled_back. Undo failures during rollback are logged, never propagated, so
// the rollback pass always completes.
package transaction
