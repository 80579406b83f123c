// Package aggregates implements the certification request aggregate on top
// of the table-level repos in internal/data/repos.
//
// Every workflow write runs inside one transaction opened by executeWrite:
// load, authorize, check the transition, compare-and-set the request version,
// then append the audit row. A failed step rolls the whole write back.
package aggregates
