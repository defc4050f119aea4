package domain

import (
	"github.com/yungbote/asset-registry/internal/domain/registry"
)

type Asset = registry.Asset
type ArchivedAsset = registry.ArchivedAsset

type Operation = registry.Operation
type OpCode = registry.OpCode
type OpState = registry.OpState
type Params = registry.Params

type Lock = registry.Lock
type TerminatedLock = registry.TerminatedLock
type LockState = registry.LockState

type ErrorCode = registry.ErrorCode

// Models lists every persisted registry table, in migration order.
func Models() []interface{} {
	return []interface{}{
		&Asset{},
		&ArchivedAsset{},
		&Operation{},
		&Lock{},
		&TerminatedLock{},
	}
}
