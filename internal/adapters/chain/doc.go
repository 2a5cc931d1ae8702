// Package chain binds the clause orchestrator to an EVM JSON-RPC endpoint
//
// Contract surface
// explain_clause(string)             signed transaction, schedules the explanation
// get_explanation(string) (string)   eth_call, returns the stored text or a sentinel
//
// Wallet implements the Authorizer port, Contract implements Submitter and Querier
package chain
