// Package traceability links triggered rule results back to the compiled
// artifacts they came from.
//
// An Injector is bound to one compiled-rules directory. For every
// triggered result it looks up <rule id>.yaml (searching subdirectories
// when it is not at the root), and records the parent policy, policy
// version, compliance mapping and a stable fingerprint of the violation.
// Lookups go through a Cache handed to the constructor; each Injector owns
// its cache unless one is shared explicitly.
package traceability
