// Package models contains the GORM models behind the ledger tables.
//
// Domain types in internal/domain stay free of GORM tags. Each model here
// converts to and from its domain counterpart (ToDomain / FromDomain), and
// the repositories in the parent package only ever touch these models.
//
// Tables:
//   - reservations, business_models, expenses, bank_transactions: source
//     facts read by the revenue and statement services
//   - statement_locks: frozen monthly statements with their snapshot hash
package models
