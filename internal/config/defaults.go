package config

const (
	defaultDownloadDir        = "~/pictures/pixie"
	defaultLogDir             = "~/.local/share/pixie/logs"
	defaultWorkers            = 4
	defaultMaxTries           = 3
	defaultFetchMaxTries      = 3
	defaultTokenMarginSeconds = 300
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DownloadDir: defaultDownloadDir,
			LogDir:      defaultLogDir,
		},
		Pixiv: Pixiv{
			AutoRelogin:        true,
			TokenMarginSeconds: defaultTokenMarginSeconds,
		},
		Download: Download{
			Workers:       defaultWorkers,
			MaxTries:      defaultMaxTries,
			FetchMaxTries: defaultFetchMaxTries,
			ConvertUgoira: true,
		},
		Archive: Archive{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
