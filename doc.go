// Package ramanujan is an evolutionary search engine for elegant closed-form
// approximations of mathematical constants.
//
// The engine evolves populations of candidate expressions (strings over a
// small arithmetic grammar with the symbols pi, e, phi, gamma and zeta3),
// evaluates them with arbitrary-precision arithmetic and ranks them by
// elegance: numerical error weighted by structural complexity. Expressions
// whose error falls below a verification threshold become discoveries and
// are checked against OEIS for novelty.
//
// Key Components:
//
//   - numeric: arbitrary-precision constant registry and a never-panicking
//     expression evaluator built on math/big.
//
//   - swarm: the search core. Scorer and Candidate, the bounded elitist
//     GenePool, the strategy-mix population Generator, concurrent Producer
//     agents (grammar-backed and LLM-backed) and the session Orchestrator.
//
//   - oracle: novelty lookups against the On-Line Encyclopedia of Integer
//     Sequences.
//
//   - archive: durable SQLite discovery storage plus JSON and Parquet
//     export.
//
//   - config, logging, errors: YAML configuration with validation,
//     structured leveled logging and coded error wrapping shared by the
//     packages above.
//
// The ramanujan CLI under cmd/ramanujan wires these together into runnable
// discovery sessions.
package ramanujan
