// Package version хранит сведения о сборке витрины, заданные через -ldflags:
//
//	go build -ldflags "-X github.com/vladislavdragonenkov/storefront/internal/version.version=v1.2.0"
package version

import (
	log "github.com/sirupsen/logrus"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// GetVersion возвращает версию, которую отдаёт /health.
func GetVersion() string { return version }

// Fields возвращает сведения о сборке для стартовых записей в лог storefront и app.
func Fields() log.Fields {
	return log.Fields{"version": version, "commit": commit, "build_date": date}
}
