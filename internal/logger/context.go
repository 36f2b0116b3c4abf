package logger

// Component-specific logger functions

// Store returns a logger for database operations
func Store() Logger {
	return WithField("component", "store")
}

// HTTP returns a logger for the web server
func HTTP() Logger {
	return WithField("component", "http")
}

// CLI returns a logger for CLI operations
func CLI() Logger {
	return WithField("component", "cli")
}

// Import returns a logger for bulk kata imports
func Import() Logger {
	return WithField("component", "import")
}

// Prompt returns a logger for prompt compilation
func Prompt() Logger {
	return WithField("component", "prompt")
}
