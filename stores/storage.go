package stores

import (
	"codesync-server/core"
	"codesync-server/stores/memory"
	"codesync-server/stores/sqlite"
	"os"

	"github.com/sirupsen/logrus"
)

// GetRegistry picks the room registry backend from STORAGE_TYPE. Room file
// contents always stay in memory regardless of this setting.
func GetRegistry() core.Registry {
	storageType := os.Getenv("STORAGE_TYPE")
	var registry core.Registry

	storageField := logrus.Fields{
		"storageType": storageType,
	}

	switch storageType {
	case "sqlite":
		dataSourceName := os.Getenv("DATA_SOURCE_NAME")
		if dataSourceName == "" {
			dataSourceName = "codesync.db"
		}
		storageField["dataSourceName"] = dataSourceName
		reg, err := sqlite.NewRegistry(dataSourceName)
		if err != nil {
			logrus.WithFields(storageField).WithError(err).Fatal("Failed to open sqlite registry")
		}
		registry = reg
	default:
		registry = memory.NewRegistry()
		storageField["storageType"] = "in-memory"
	}
	logrus.WithFields(storageField).Info("Use storage")
	return registry
}
