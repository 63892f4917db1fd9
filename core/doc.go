// Package core contains the bunq client: session bootstrap, signed request
// execution, the polled Status snapshot, and the typed error taxonomy.
// Transport-specific adapters depend on this package; core must not depend on
// them.
package core
