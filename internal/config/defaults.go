package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			Workspace: "~/.cadbridge/workspace",
			LogLevel:  "info",
		},
		Bridge: BridgeConfig{
			Host:                  "localhost",
			Port:                  9876,
			DialTimeoutSeconds:    10,
			RequestTimeoutSeconds: 15,
		},
		Executor: ExecutorConfig{
			Host:         "localhost",
			Port:         9876,
			DocumentName: "Untitled",
		},
		Script: ScriptConfig{
			OutputDir: "~/.cadbridge/scripts",
		},
		History: HistoryConfig{
			Enabled:       true,
			DBPath:        "~/.cadbridge/history.db",
			RetentionDays: 90,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9877",
		},
	}
}
