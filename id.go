package mtask

import "github.com/mtask/mtask/id"

// ID is the primary identifier type for all mtask entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
