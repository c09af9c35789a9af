// Package all wires all built-in execution backends into the backend factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) runs the init functions of each concrete backend package, which
// register their constructors with the backend package. It makes the
// following targets available at runtime:
//
//   - "local"                (backend/local, embedded SQLite engine)
//   - "aws", "azure", "gcp"  (backend/remote, cloud dispatch)
//
// Binaries that only need a subset can blank-import the specific backend
// packages instead.
package all

import (
	_ "github.com/LOLA0786/Devlake/internal/backend/local"
	_ "github.com/LOLA0786/Devlake/internal/backend/remote"
)
