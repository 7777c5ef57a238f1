// Package config reads reconciliation manifests and ambient settings.
package config

import (
	"os"

	"github.com/spf13/viper"
)

// GetString is a helper to get string values from Viper.
// It checks both OS environment variables and Viper configuration.
func GetString(key string) string {
	// Check OS env directly first
	osValue := os.Getenv(key)
	viperValue := viper.GetString(key)

	// If Viper doesn't have it but OS does, return OS value
	if viperValue == "" && osValue != "" {
		return osValue
	}
	return viperValue
}

// ciVariables name the repository a CI job runs for, per provider.
var ciVariables = []struct {
	provider string
	key      string
}{
	{"github", "GITHUB_REPOSITORY"},
	{"gitlab", "CI_PROJECT_PATH"},
	{"circleci", "CIRCLE_PROJECT_REPONAME"},
}

// CIContext returns the CI provider and repository of the current job, or
// empty strings outside CI. Runs log them so results can be traced back to
// the pipeline that produced them.
func CIContext() (provider, repository string) {
	for _, v := range ciVariables {
		if repo := GetString(v.key); repo != "" {
			return v.provider, repo
		}
	}
	return "", ""
}
