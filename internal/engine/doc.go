/*
Engine implements the event processor driving a trading strategy.

# Module
  - clock: engine time, live or advanced by event timestamps
  - state: connectivity, balances, positions, orders and market data of every instrument
  - action: operator commands sent straight to execution, bypassing risk
  - algo: strategy generated orders filtered through the risk manager
  - audit: one sequenced record per processed event

# Source
 1. market data streams
 2. account streams from execution clients
 3. operator commands and trading state updates
 4. journal replay

# Produce
  - order requests to execution clients
  - audits to the runner sink

# Sharded
  - none, one engine is a single writer
*/
package engine
