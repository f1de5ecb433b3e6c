package config

import "os"

// GetString returns the environment value for key, or defaultVal if unset.
// Used for settings read outside the viper-managed Config struct, such
// as the optional GitHub token consulted by the Git-Ref Engine.
func GetString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
