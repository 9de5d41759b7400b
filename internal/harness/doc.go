// Package harness replays POS scenarios against the real core.
//
// A scenario drives one till: a fresh SQLite store seeded from a CUE
// catalog, a fake back-office and a network switch that the scenario flips.
// Each step is a cashier or manager action; the harness records its outcome
// and the queue depth, so the order of local writes and replication can be
// asserted and compared against a golden trace.
//
// # Scenario Format
//
//	name: offline_sale_then_sync
//	description: "What this scenario validates"
//	catalog: ../../../catalog/testdata/demo
//	user: {user_id: u-mgr, role: manager, store_id: store-1}
//	start: "2026-10-17T09:00:00+07:00"
//	network: offline
//	steps:
//	  - action: start_selling
//	  - action: add_to_cart
//	    args: {item: kopi-susu, qty: 2}
//	  - action: checkout
//	    expect:
//	      result: {total: 40000, queued: true}
//	  - action: add_to_cart
//	    args: {item: es-teh, qty: 9}
//	    expect: {error: STOCK_LIMIT_EXCEEDED}
//	  - action: go_online
//	assertions:
//	  - type: pending_count
//	    count: 0
//	  - type: remote_calls
//	    kinds: [start_selling, create_transaction, update_stock]
//
// # Actions
//
//   - start_selling, end_selling, adjust_stock {item, qty}
//   - add_to_cart {item, qty}, update_quantity {item, qty}, set_payment {method},
//     clear_cart, checkout
//   - set_holiday {on}
//   - go_offline, go_online (flips the switch and drains the queue),
//     reconcile, fail_next {count}, conflict_on {kind}
//   - advance {duration}
//
// # Deterministic Testing
//
// Operation ids come from a sequence ("op-0001"), transaction ids likewise
// ("txn-0001"), and the clock only moves on advance. Two runs of a scenario
// produce byte-identical canonical traces.
package harness
