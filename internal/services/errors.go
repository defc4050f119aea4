package services

import (
	"errors"

	"github.com/yungbote/asset-registry/internal/domain/registry"
	"github.com/yungbote/asset-registry/internal/platform/resmutex"
)

// storeFailure tags a persistence error unless it already carries a code.
func storeFailure(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	var re *registry.Error
	if errors.As(err, &re) {
		return err
	}
	return registry.Wrap(registry.CodeStoreFailure, err, format, args...)
}

// mutexFailure maps resmutex errors onto mutex_unavailable and passes
// everything else through.
func mutexFailure(err error, resourceID string) error {
	if errors.Is(err, resmutex.ErrUnavailable) {
		return registry.Wrap(registry.CodeMutexUnavailable, err, "mutex for %s unavailable", resourceID)
	}
	return err
}

func requireCaller(field, id string) error {
	if id == "" {
		return registry.Errorf(registry.CodeMissingField, "%s is required", field)
	}
	return nil
}
